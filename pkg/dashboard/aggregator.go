// Package dashboard composes the dashboard view of one or all pipelines from
// run metadata, vulnerability reports, fix suggestions and anomalies.
package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/score"
	"github.com/safeops/postureboard/pkg/store"
	"github.com/safeops/postureboard/pkg/vulnerabilityreport"
)

const (
	// TimelineSize is the number of most recent runs charted.
	TimelineSize = 30
	// AlertsLimit caps the critical and high findings listed as alerts.
	AlertsLimit = 50
	// FixesLimit is the number of latest fix suggestions listed.
	FixesLimit = 10
	// RecentAnomaliesLimit is the number of anomaly events listed for a
	// selected pipeline.
	RecentAnomaliesLimit = 10
)

type Aggregator struct {
	reader  store.Reader
	clock   ext.Clock
	baseURL string
	log     logr.Logger
}

func NewAggregator(reader store.Reader, clock ext.Clock, baseURL string, log logr.Logger) *Aggregator {
	return &Aggregator{
		reader:  reader,
		clock:   clock,
		baseURL: baseURL,
		log:     log.WithName("dashboard"),
	}
}

// Aggregate returns the dashboard view for the given filters. The score
// reflects the filtered findings, while the per pipeline scores always show
// the latest run of each pipeline.
func (a *Aggregator) Aggregate(ctx context.Context, filters Filters) (*View, error) {
	if filters.Limit == 0 {
		filters.Limit = DefaultLimit
	}
	filters.Limit = ext.ClampInt(filters.Limit, MinLimit, MaxLimit)

	pipelines, err := a.pipelines(ctx)
	if err != nil {
		return nil, err
	}

	latestRuns, err := a.reader.LatestRunsPerPipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading latest runs: %w", err)
	}
	pipelineScores := make([]RunScore, 0, len(latestRuns))
	for _, run := range latestRuns {
		pipelineScores = append(pipelineScores, newRunScore(run))
	}

	timeline, err := a.timeline(ctx, filters.Pipeline)
	if err != nil {
		return nil, err
	}

	reports, err := a.reader.FindVulnReports(ctx, store.VulnReportFilter{
		Pipeline: filters.Pipeline,
		Query:    filters.Query,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("reading vulnerability reports: %w", err)
	}
	vulns, findings := filterBySeverity(vulnerabilityreport.Normalize(reports), filters.Severity)

	fixes, err := a.reader.LatestFixes(ctx, FixesLimit)
	if err != nil {
		return nil, fmt.Errorf("reading fix suggestions: %w", err)
	}

	anomalies, err := a.anomalies(ctx, filters.Pipeline)
	if err != nil {
		return nil, err
	}

	var links *artifact.Links
	if filters.Pipeline != "" {
		l := artifact.NewLinks(a.baseURL, filters.Pipeline, "")
		links = &l
	}

	a.log.V(1).Info("Aggregated dashboard", "pipeline", filters.Pipeline, "severity", filters.Severity,
		"reports", len(vulns), "findings", len(findings))

	return &View{
		Meta: Meta{
			GeneratedAt:   a.clock.Now(),
			Filters:       filters,
			PipelineCount: len(pipelines),
			FindingCount:  len(findings),
		},
		Score:          score.Compute(findings, anomalies.Count),
		Pipelines:      pipelines,
		PipelineScores: pipelineScores,
		Timeline:       timeline,
		Vulns:          vulns,
		Fixes:          fixes,
		Anomalies:      anomalies,
		Alerts:         alerts(findings),
		ReportLinks:    links,
	}, nil
}

// pipelines lists pipelines with run metadata, falling back to pipelines
// that only have vulnerability reports so far.
func (a *Aggregator) pipelines(ctx context.Context) ([]string, error) {
	pipelines, err := a.reader.ListPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	if len(pipelines) > 0 {
		return pipelines, nil
	}
	pipelines, err = a.reader.ListVulnReportPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	if pipelines == nil {
		pipelines = []string{}
	}
	return pipelines, nil
}

// timeline returns the most recent runs oldest first.
func (a *Aggregator) timeline(ctx context.Context, pipeline string) ([]RunScore, error) {
	runs, err := a.reader.RecentRuns(ctx, pipeline, TimelineSize)
	if err != nil {
		return nil, fmt.Errorf("reading timeline: %w", err)
	}
	timeline := make([]RunScore, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		timeline = append(timeline, newRunScore(runs[i]))
	}
	return timeline, nil
}

// anomalies are only resolved for a selected pipeline.
func (a *Aggregator) anomalies(ctx context.Context, pipeline string) (Anomalies, error) {
	result := Anomalies{Recent: []AnomalyEvent{}}
	if pipeline == "" {
		return result, nil
	}
	count, err := a.reader.CountAnomalies(ctx, pipeline)
	if err != nil {
		return result, fmt.Errorf("counting anomalies: %w", err)
	}
	recent, err := a.reader.RecentAnomalies(ctx, pipeline, RecentAnomaliesLimit)
	if err != nil {
		return result, fmt.Errorf("reading anomalies: %w", err)
	}
	result.Count = count
	for _, r := range recent {
		result.Recent = append(result.Recent, newAnomalyEvent(r))
	}
	return result, nil
}

// filterBySeverity keeps findings of the given severity. Reports left without
// findings are dropped when a severity is set.
func filterBySeverity(reports []vulnerabilityreport.NormalizedReport, severity v1alpha1.Severity) ([]VulnReport, []v1alpha1.Finding) {
	vulns := make([]VulnReport, 0, len(reports))
	var findings []v1alpha1.Finding
	for _, r := range reports {
		selected := r.Findings
		if severity != "" {
			selected = vulnerabilityreport.FilterBySeverity(r.Findings, severity)
			if len(selected) == 0 {
				continue
			}
		}
		if selected == nil {
			selected = []v1alpha1.Finding{}
		}
		vulns = append(vulns, VulnReport{
			ID:        r.Report.ID,
			Pipeline:  r.Report.Pipeline,
			RunID:     r.Report.RunID,
			Source:    r.Report.Source,
			Status:    r.Report.Status,
			CreatedAt: r.Report.CreatedAt,
			Findings:  selected,
		})
		findings = append(findings, selected...)
	}
	return vulns, findings
}

// alerts returns critical and high findings, most severe first.
func alerts(findings []v1alpha1.Finding) []Alert {
	var severe []v1alpha1.Finding
	for _, f := range findings {
		if f.Severity == v1alpha1.SeverityCritical || f.Severity == v1alpha1.SeverityHigh {
			severe = append(severe, f)
		}
	}
	sort.Stable(vulnerabilityreport.BySeverity{Findings: severe})

	result := make([]Alert, 0, ext.MinInt(len(severe), AlertsLimit))
	for _, f := range severe[:ext.MinInt(len(severe), AlertsLimit)] {
		result = append(result, Alert{
			Pipeline:  f.Origin.Pipeline,
			RunID:     f.Origin.RunID,
			RuleID:    f.RuleID,
			Title:     f.Title,
			Severity:  f.Severity,
			CreatedAt: f.Origin.CreatedAt,
		})
	}
	return result
}
