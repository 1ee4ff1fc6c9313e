package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"perf-report-backend/internal/audit"
	"perf-report-backend/internal/ingest"
	"perf-report-backend/internal/shared/telemetry"
	"perf-report-backend/report/model"
	"perf-report-backend/report/render"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "reportctl",
		Short:        "Turn model responses and page audits into performance reports",
		SilenceUsage: true,
	}
	root.AddCommand(newIngestCmd(), newFallbackCmd(), newAnalyzeCmd(), newRenderCmd(), newVersionCmd())
	return root
}

func newIngestCmd() *cobra.Command {
	var auditPath, textPath, format string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse a saved model response into a report",
		Long: `Runs the ingestion pipeline on a saved model response. Responses that
cannot be recovered produce the report synthesized from the audit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			m, err := readAudit(auditPath)
			if err != nil {
				return err
			}
			text, err := readInput(cmd, textPath)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			out := ingest.Ingest(text, nil, m)
			fields := map[string]any{
				"stage":        string(out.Stage),
				"truncated":    out.Truncated,
				"fallback":     out.Fallback,
				"repair_rules": out.RepairRules,
			}
			if out.Fallback {
				fields["reason"] = string(out.Reason)
				fields["detail"] = out.Detail
			}
			telemetry.Info("report.ingest", fields)
			return writeReport(cmd.OutOrStdout(), format, m.URL, out.Report)
		},
	}
	cmd.Flags().StringVar(&auditPath, "audit", "", "audit metrics JSON file (optional)")
	cmd.Flags().StringVar(&textPath, "text", "-", `model response file, "-" for stdin`)
	cmd.Flags().StringVar(&format, "format", formatJSON, "output format: json or markdown")
	return cmd
}

func newFallbackCmd() *cobra.Command {
	var auditPath, format string
	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Synthesize the rule-based report for an audit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			m, err := readAudit(auditPath)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, m.URL, ingest.Synthesize(m))
		},
	}
	cmd.Flags().StringVar(&auditPath, "audit", "", "audit metrics JSON file")
	cmd.Flags().StringVar(&format, "format", formatJSON, "output format: json or markdown")
	_ = cmd.MarkFlagRequired("audit")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var reportPath, pageURL string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a report JSON file as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, reportPath)
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			var report model.Report
			if err := json.Unmarshal([]byte(payload), &report); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}
			if err := report.Validate(); err != nil {
				return fmt.Errorf("invalid report: %w", err)
			}
			return render.Markdown(cmd.OutOrStdout(), pageURL, report)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "-", `report JSON file, "-" for stdin`)
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL shown in the heading")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reportctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reportctl %s\n", version)
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatMarkdown:
		return nil
	default:
		return fmt.Errorf("unknown format %q, want json or markdown", format)
	}
}

func readAudit(path string) (audit.Metrics, error) {
	var m audit.Metrics
	if strings.TrimSpace(path) == "" {
		return m, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read audit: %w", err)
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return m, fmt.Errorf("decode audit: %w", err)
	}
	return m, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeReport(w io.Writer, format, pageURL string, report model.Report) error {
	if format == formatMarkdown {
		return render.Markdown(w, pageURL, report)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
