package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"perf-report-backend/internal/bootstrap"
	"perf-report-backend/internal/ingest"
	"perf-report-backend/internal/llm"
	"perf-report-backend/internal/shared/config"
	"perf-report-backend/internal/shared/telemetry"
)

func newAnalyzeCmd() *cobra.Command {
	var auditPath, format, rawOut, provider, modelName string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send an audit to the configured model and ingest the answer",
		Long: `Builds the prompt for an audit, calls the model configured through the
LLM_* environment variables and prints the resulting report. With --dry-run the
prompt is printed and no model is called.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			m, err := readAudit(auditPath)
			if err != nil {
				return err
			}
			req := llm.BuildRequest(m)
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "--- system ---\n%s\n--- user ---\n%s\n", req.System, req.User)
				return nil
			}

			cfg := config.Load().LLM
			if provider != "" {
				cfg.Provider = strings.ToLower(provider)
				cfg.BaseURL = ""
				cfg.Model = ""
			}
			if modelName != "" {
				cfg.Model = modelName
			}
			cfg = cfg.WithDefaults()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := bootstrap.NewLLMClient(ctx, cfg)
			if err != nil {
				return err
			}
			var usage llm.Usage
			text, callErr := client.Complete(llm.WithUsageSink(ctx, &usage), req)
			if callErr != nil && !errors.Is(callErr, llm.ErrNotConfigured) {
				telemetry.Warn("llm.failed", map[string]any{"provider": cfg.Provider, "model": cfg.Model, "error": callErr})
			}
			if rawOut != "" && text != "" {
				if err := os.WriteFile(rawOut, []byte(text), 0o644); err != nil {
					return fmt.Errorf("write raw output: %w", err)
				}
			}

			out := ingest.Ingest(text, callErr, m)
			telemetry.Info("report.ingest", map[string]any{
				"provider":      cfg.Provider,
				"model":         cfg.Model,
				"stage":         string(out.Stage),
				"fallback":      out.Fallback,
				"reason":        string(out.Reason),
				"repair_rules":  out.RepairRules,
				"prompt_tokens": usage.PromptTokens,
			})
			return writeReport(cmd.OutOrStdout(), format, m.URL, out.Report)
		},
	}
	cmd.Flags().StringVar(&auditPath, "audit", "", "audit metrics JSON file")
	cmd.Flags().StringVar(&format, "format", formatJSON, "output format: json or markdown")
	cmd.Flags().StringVar(&rawOut, "raw-out", "", "write the raw model response to this file")
	cmd.Flags().StringVar(&provider, "provider", "", "override LLM_PROVIDER")
	cmd.Flags().StringVar(&modelName, "model", "", "override LLM_MODEL")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the prompt without calling the model")
	_ = cmd.MarkFlagRequired("audit")
	return cmd
}
