package vulnerabilityreport

import (
	"sort"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

type Findings []v1alpha1.Finding

func (s Findings) Len() int { return len(s) }

func (s Findings) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// BySeverity implements sort.Interface by providing Less and using the
// Findings.Len and Findings.Swap methods of the embedded Findings value.
// Use it with sort.Stable to keep the normalizer order within a severity.
type BySeverity struct{ Findings }

func (s BySeverity) Less(i, j int) bool {
	return s.Findings[i].Severity.Rank() < s.Findings[j].Severity.Rank()
}

// CountBySeverity returns the number of findings per severity. All known
// severities are present in the result.
func CountBySeverity(findings []v1alpha1.Finding) map[v1alpha1.Severity]int {
	counts := make(map[v1alpha1.Severity]int, len(v1alpha1.Severities()))
	for _, s := range v1alpha1.Severities() {
		counts[s] = 0
	}
	for _, f := range findings {
		counts[v1alpha1.ParseSeverity(string(f.Severity))]++
	}
	return counts
}

// FilterBySeverity returns findings of the given severity preserving order.
func FilterBySeverity(findings []v1alpha1.Finding, severity v1alpha1.Severity) []v1alpha1.Finding {
	var filtered []v1alpha1.Finding
	for _, f := range findings {
		if f.Severity == severity {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// SortBySeverity orders a copy of findings from critical to low.
func SortBySeverity(findings []v1alpha1.Finding) []v1alpha1.Finding {
	sorted := make([]v1alpha1.Finding, len(findings))
	copy(sorted, findings)
	sort.Stable(BySeverity{Findings: sorted})
	return sorted
}
