package templates

import (
	"time"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/score"
	"github.com/safeops/postureboard/pkg/vulnerabilityreport"
)

// ReportPage is the view model shared by the HTML and PDF reports of a
// pipeline. Both formats render the same instance.
type ReportPage struct {
	Pipeline    string
	GeneratedAt time.Time
	Mode        v1alpha1.ReportMode

	Score     score.Result
	Stats     Stats
	Penalties Penalties

	// Vulns holds the source reports newest first, each with its findings.
	Vulns []vulnerabilityreport.NormalizedReport
	// Fixes are the latest fix suggestions across all pipelines.
	Fixes     []FixSuggestion
	Anomalies int

	TopFindings []FindingWithCount
}

// Findings returns the findings of all reports in report order.
func (p *ReportPage) Findings() []v1alpha1.Finding {
	return vulnerabilityreport.Flatten(p.Vulns)
}

type Stats struct {
	Reports  int `json:"reports"`
	Findings int `json:"findings"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

type Penalties struct {
	Vuln    int `json:"vuln"`
	Anomaly int `json:"anomaly"`
}

type FixSuggestion struct {
	v1alpha1.FixReport
	// Patch is the YAML patch re-indented for display.
	Patch string
}

type FindingWithCount struct {
	v1alpha1.Finding
	Occurrences int
}
