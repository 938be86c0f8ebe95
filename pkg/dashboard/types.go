package dashboard

import (
	"encoding/json"
	"time"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/score"
)

// View is the payload of the dashboard endpoint.
type View struct {
	Meta           Meta                 `json:"meta"`
	Score          score.Result         `json:"score"`
	Pipelines      []string             `json:"pipelines"`
	PipelineScores []RunScore           `json:"pipelineScores"`
	Timeline       []RunScore           `json:"timeline"`
	Vulns          []VulnReport         `json:"vulns"`
	Fixes          []v1alpha1.FixReport `json:"fixes"`
	Anomalies      Anomalies            `json:"anomalies"`
	Alerts         []Alert              `json:"alerts"`
	ReportLinks    *artifact.Links      `json:"reportLinks"`
}

type Meta struct {
	GeneratedAt   time.Time `json:"generatedAt"`
	Filters       Filters   `json:"filters"`
	PipelineCount int       `json:"pipelineCount"`
	FindingCount  int       `json:"findingCount"`
}

// RunScore is a pipeline run with both the stored risk and the derived
// security score.
type RunScore struct {
	PipelineID    string    `json:"pipelineId"`
	RunID         string    `json:"runId"`
	Timestamp     time.Time `json:"ts"`
	RiskScore     float64   `json:"riskScore"`
	SecurityScore int       `json:"securityScore"`
}

func newRunScore(run v1alpha1.PipelineRun) RunScore {
	return RunScore{
		PipelineID:    run.PipelineID,
		RunID:         run.RunID,
		Timestamp:     run.Timestamp,
		RiskScore:     run.SeverityScore,
		SecurityScore: run.SecurityScore(),
	}
}

// VulnReport is a vulnerability report with its filtered findings.
type VulnReport struct {
	ID        int64              `json:"id"`
	Pipeline  string             `json:"pipeline"`
	RunID     string             `json:"runId"`
	Source    string             `json:"source"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	Findings  []v1alpha1.Finding `json:"findings"`
}

type Anomalies struct {
	Count  int            `json:"count"`
	Recent []AnomalyEvent `json:"recent"`
}

type AnomalyEvent struct {
	v1alpha1.AnomalyReport
	Details json.RawMessage `json:"details,omitempty"`
}

func newAnomalyEvent(a v1alpha1.AnomalyReport) AnomalyEvent {
	event := AnomalyEvent{AnomalyReport: a}
	if len(a.Details) > 0 && json.Valid(a.Details) {
		event.Details = json.RawMessage(a.Details)
	}
	return event
}

type Alert struct {
	Pipeline  string            `json:"pipeline"`
	RunID     string            `json:"runId"`
	RuleID    string            `json:"ruleId"`
	Title     string            `json:"title"`
	Severity  v1alpha1.Severity `json:"severity"`
	CreatedAt time.Time         `json:"createdAt"`
}
