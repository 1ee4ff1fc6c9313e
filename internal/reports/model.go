package reports

import (
	"time"

	"perf-report-backend/internal/audit"
	"perf-report-backend/report/model"
)

// Record is a persisted ingestion: the audit that was analyzed, the report
// that came out and how the pipeline got there.
type Record struct {
	ID             string        `json:"id"`
	URL            string        `json:"url"`
	Stage          string        `json:"stage"`
	Truncated      bool          `json:"truncated"`
	Fallback       bool          `json:"fallback"`
	FallbackReason string        `json:"fallbackReason,omitempty"`
	RepairRules    []string      `json:"repairRules"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Audit          audit.Metrics `json:"audit"`
	Report         model.Report  `json:"report"`
	RawKey         string        `json:"rawKey,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Summary is the list view of a Record.
type Summary struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Stage       string    `json:"stage"`
	Fallback    bool      `json:"fallback"`
	Performance int       `json:"performance"`
	Problems    int       `json:"problems"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summarize returns the list view of r.
func (r Record) Summarize() Summary {
	return Summary{
		ID:          r.ID,
		URL:         r.URL,
		Stage:       r.Stage,
		Fallback:    r.Fallback,
		Performance: r.Report.Score.Performance,
		Problems:    len(r.Report.Problems),
		CreatedAt:   r.CreatedAt,
	}
}
