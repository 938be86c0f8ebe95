// Package score computes the security posture score of a pipeline.
//
// The score starts at 100 and is reduced by two independently capped
// penalties: one for the weighted severity of findings and one for the number
// of anomalies. The caps keep a single category from dominating the result.
package score

import (
	"math"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

const (
	MaxScore = 100

	MaxVulnPenalty    = 80
	MaxAnomalyPenalty = 30

	vulnPenaltyFactor    = 2
	anomalyPenaltyFactor = 2
)

// Details explains how a Result was computed.
type Details struct {
	TotalFindings  int `json:"totalFindings"`
	TotalRisk      int `json:"totalRisk"`
	AnomalyCount   int `json:"anomalyCount"`
	VulnPenalty    int `json:"vulnPenalty"`
	AnomalyPenalty int `json:"anomalyPenalty"`
}

// Result is a derived value and is never persisted.
type Result struct {
	Value   int     `json:"value"`
	Details Details `json:"details"`
}

// Compute returns the score for the given findings and anomaly count. It is a
// pure function of the finding severities and the anomaly count, so the order
// of findings does not matter. A negative anomaly count is treated as zero.
func Compute(findings []v1alpha1.Finding, anomalyCount int) Result {
	if anomalyCount < 0 {
		anomalyCount = 0
	}
	totalRisk := 0
	for _, f := range findings {
		totalRisk += f.Severity.Weight()
	}

	vulnPenalty := min(MaxVulnPenalty, totalRisk*vulnPenaltyFactor)
	anomalyPenalty := min(MaxAnomalyPenalty, anomalyCount*anomalyPenaltyFactor)

	value := math.Round(float64(MaxScore - vulnPenalty - anomalyPenalty))
	value = math.Max(0, math.Min(MaxScore, value))

	return Result{
		Value: int(value),
		Details: Details{
			TotalFindings:  len(findings),
			TotalRisk:      totalRisk,
			AnomalyCount:   anomalyCount,
			VulnPenalty:    vulnPenalty,
			AnomalyPenalty: anomalyPenalty,
		},
	}
}
