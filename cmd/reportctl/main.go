// Command reportctl runs the report ingestion pipeline on saved files.
package main

import (
	"os"

	"perf-report-backend/internal/shared/telemetry"
)

func main() {
	telemetry.SetOutput(os.Stderr)
	defer func() { _ = telemetry.Sync() }()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
