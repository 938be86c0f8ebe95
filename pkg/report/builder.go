package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/score"
	"github.com/safeops/postureboard/pkg/store"
	"github.com/safeops/postureboard/pkg/vulnerabilityreport"
)

const (
	// AllModeReportLimit caps the reports read in ReportModeAll.
	AllModeReportLimit = 50
	// FixesLimit is the number of latest fix suggestions shown.
	FixesLimit = 10
	// TopFindingsLimit is the number of most frequent rules shown.
	TopFindingsLimit = 5
)

type Reader interface {
	store.VulnReportReader
	store.FixReportReader
	store.AnomalyReader
}

// Builder assembles the view model shared by every report format.
type Builder struct {
	reader Reader
	clock  ext.Clock
}

func NewBuilder(reader Reader, clock ext.Clock) *Builder {
	return &Builder{
		reader: reader,
		clock:  clock,
	}
}

// ReportLimit returns the number of vulnerability reports read in mode.
func ReportLimit(mode v1alpha1.ReportMode) int {
	if mode == v1alpha1.ReportModeLatest {
		return 1
	}
	return AllModeReportLimit
}

// Build reads the rows of the pipeline and returns its report page.
func (b *Builder) Build(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*templates.ReportPage, error) {
	if err := v1alpha1.ValidatePipelineID(pipeline); err != nil {
		return nil, apierrors.NewInvalid("%v", err)
	}
	if mode == "" {
		mode = v1alpha1.ReportModeAll
	}

	reports, err := b.reader.FindVulnReports(ctx, store.VulnReportFilter{
		Pipeline: pipeline,
		Limit:    ReportLimit(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("reading vulnerability reports: %w", err)
	}
	fixes, err := b.reader.LatestFixes(ctx, FixesLimit)
	if err != nil {
		return nil, fmt.Errorf("reading fix suggestions: %w", err)
	}
	anomalies, err := b.reader.CountAnomalies(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("counting anomalies: %w", err)
	}

	vulns := vulnerabilityreport.Normalize(reports)
	findings := vulnerabilityreport.Flatten(vulns)
	result := score.Compute(findings, anomalies)

	return &templates.ReportPage{
		Pipeline:    pipeline,
		GeneratedAt: b.clock.Now(),
		Mode:        mode,
		Score:       result,
		Stats:       NewStats(len(vulns), findings),
		Penalties: templates.Penalties{
			Vuln:    result.Details.VulnPenalty,
			Anomaly: result.Details.AnomalyPenalty,
		},
		Vulns:       vulns,
		Fixes:       toFixSuggestions(fixes),
		Anomalies:   anomalies,
		TopFindings: topNFindingsByOccurrences(findings, TopFindingsLimit),
	}, nil
}

// NewStats counts findings per severity.
func NewStats(reports int, findings []v1alpha1.Finding) templates.Stats {
	counts := vulnerabilityreport.CountBySeverity(findings)
	return templates.Stats{
		Reports:  reports,
		Findings: len(findings),
		Critical: counts[v1alpha1.SeverityCritical],
		High:     counts[v1alpha1.SeverityHigh],
		Medium:   counts[v1alpha1.SeverityMedium],
		Low:      counts[v1alpha1.SeverityLow],
	}
}

func toFixSuggestions(fixes []v1alpha1.FixReport) []templates.FixSuggestion {
	suggestions := make([]templates.FixSuggestion, 0, len(fixes))
	for _, fix := range fixes {
		suggestions = append(suggestions, templates.FixSuggestion{
			FixReport: fix,
			Patch:     NormalizePatch(fix.YAMLPatch),
		})
	}
	return suggestions
}

// NormalizePatch re-encodes a YAML patch with a two space indent. Text that
// is not valid YAML is returned unchanged.
func NormalizePatch(patch string) string {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(patch), &node); err != nil || node.Kind == 0 {
		return patch
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return patch
	}
	if err := encoder.Close(); err != nil {
		return patch
	}
	return strings.TrimRight(buf.String(), "\n")
}

// topNFindingsByOccurrences returns the most frequent rules. The first
// finding of each rule represents it.
func topNFindingsByOccurrences(findings []v1alpha1.Finding, n int) []templates.FindingWithCount {
	index := make(map[string]int)
	var counted []templates.FindingWithCount
	for _, f := range findings {
		if f.RuleID == "" {
			continue
		}
		if i, ok := index[f.RuleID]; ok {
			counted[i].Occurrences++
			continue
		}
		index[f.RuleID] = len(counted)
		counted = append(counted, templates.FindingWithCount{Finding: f, Occurrences: 1})
	}

	OrderedBy(findingCompareFunc...).SortDesc(counted)
	return counted[:ext.MinInt(n, len(counted))]
}
