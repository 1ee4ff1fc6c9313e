package reports

import "context"

// Repo defines persistence operations for report records.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]Record, error)
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// clampPage bounds a page request. Limits outside 1..MaxListLimit use
// MaxListLimit.
func clampPage(limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, offset
}
