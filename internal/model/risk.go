package model

// RiskLabel is the bucketed form of a probability.
type RiskLabel string

const (
	RiskLow    RiskLabel = "Low"
	RiskMedium RiskLabel = "Medium"
	RiskHigh   RiskLabel = "High"
)

// Bucket boundaries. A probability equal to a boundary falls in the upper bucket.
const (
	MediumRiskThreshold = 0.33
	HighRiskThreshold   = 0.66
)

// RiskLabels lists the labels in ascending order of severity.
var RiskLabels = []RiskLabel{RiskLow, RiskMedium, RiskHigh}

// RiskFor buckets a probability into a RiskLabel.
func RiskFor(p float64) RiskLabel {
	switch {
	case p < MediumRiskThreshold:
		return RiskLow
	case p < HighRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Valid reports whether l is one of the three known labels.
func (l RiskLabel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}
