// Package store defines the read contract of the relational datastore the
// posture engine consumes. Rows are produced by external detectors.
package store

import (
	"context"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

// VulnReportFilter narrows the vulnerability reports returned by
// VulnReportReader.FindVulnReports.
type VulnReportFilter struct {
	// Pipeline restricts results to a single pipeline when not empty.
	Pipeline string
	// Query is a case-insensitive substring matched against the pipeline
	// name, run id, status and the findings payload as text.
	Query string
	// Limit caps the number of rows, newest first. Zero means no limit.
	Limit int
}

type VulnReportReader interface {
	// FindVulnReports returns reports matching the filter ordered by
	// creation time, newest first.
	FindVulnReports(ctx context.Context, filter VulnReportFilter) ([]v1alpha1.VulnerabilityReport, error)
	ListVulnReportPipelines(ctx context.Context) ([]string, error)
}

type FixReportReader interface {
	// LatestFixes returns the most recent fix suggestions across all
	// pipelines. A missing fix_reports relation yields an empty result.
	LatestFixes(ctx context.Context, limit int) ([]v1alpha1.FixReport, error)
}

type AnomalyReader interface {
	CountAnomalies(ctx context.Context, pipeline string) (int, error)
	// RecentAnomalies returns anomaly events of the pipeline, newest first.
	RecentAnomalies(ctx context.Context, pipeline string, limit int) ([]v1alpha1.AnomalyReport, error)
}

type PipelineRunReader interface {
	ListPipelines(ctx context.Context) ([]string, error)
	// LatestRunsPerPipeline returns the most recent run of every pipeline.
	LatestRunsPerPipeline(ctx context.Context) ([]v1alpha1.PipelineRun, error)
	// RecentRuns returns runs newest first, for a single pipeline or for all
	// pipelines when pipeline is empty.
	RecentRuns(ctx context.Context, pipeline string, limit int) ([]v1alpha1.PipelineRun, error)
}

// Reader is everything the aggregator and the report generator read.
type Reader interface {
	VulnReportReader
	FixReportReader
	AnomalyReader
	PipelineRunReader
	// Ping checks that every backing database is reachable.
	Ping(ctx context.Context) error
}
