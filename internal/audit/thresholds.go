package audit

// Rating buckets a metric value against its thresholds.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs improvement"
	RatingPoor             Rating = "poor"
)

// Threshold holds the upper bounds of the good and needs-improvement buckets.
type Threshold struct {
	Good float64
	Poor float64
}

var (
	LCPThreshold        = Threshold{Good: 2500, Poor: 4000}
	FIDThreshold        = Threshold{Good: 100, Poor: 300}
	CLSThreshold        = Threshold{Good: 0.1, Poor: 0.25}
	TBTThreshold        = Threshold{Good: 200, Poor: 600}
	FCPThreshold        = Threshold{Good: 1800, Poor: 3000}
	SpeedIndexThreshold = Threshold{Good: 4000, Poor: 4000}
)

const (
	// TotalSizeBudgetKB is the page weight above which network cost is high.
	TotalSizeBudgetKB = 2000
	// ImageBudgetKB is the image weight above which images become a problem.
	ImageBudgetKB = 1000
	// ThirdPartyBudgetKB is the third-party weight above which it becomes a problem.
	ThirdPartyBudgetKB = 500
	// ThirdPartyRatioBudget is the third-party request share (percent) above
	// which it becomes a problem.
	ThirdPartyRatioBudget = 30
)

// Rate returns the bucket for v.
func (t Threshold) Rate(v float64) Rating {
	switch {
	case v <= t.Good:
		return RatingGood
	case v <= t.Poor:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}
