package v1alpha1

import (
	"math"
	"time"
)

// Mapping links a finding to external control frameworks.
type Mapping struct {
	OWASP string `json:"owasp,omitempty"`
	SLSA  string `json:"slsa,omitempty"`
}

// IsEmpty returns true if the finding is not mapped to any framework.
func (m Mapping) IsEmpty() bool {
	return m.OWASP == "" && m.SLSA == ""
}

// Finding is a single security or compliance observation embedded in a
// VulnerabilityReport.
type Finding struct {
	RuleID         string   `json:"rule_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	// Evidence is always a display string. Structured evidence is stored in
	// its canonical JSON form.
	Evidence string  `json:"evidence"`
	Mapping  Mapping `json:"mapping"`

	// Origin describes the report the finding was flattened from.
	Origin FindingOrigin `json:"origin"`
}

// FindingOrigin identifies the VulnerabilityReport a Finding belongs to.
type FindingOrigin struct {
	ReportID  int64     `json:"reportId"`
	Pipeline  string    `json:"pipeline"`
	RunID     string    `json:"runId"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// VulnerabilityReport is a row of the vuln_reports relation. Findings holds
// the raw JSON payload as persisted by the detector, nil for SQL NULL.
type VulnerabilityReport struct {
	ID        int64     `json:"id" db:"id"`
	Pipeline  string    `json:"pipeline" db:"pipeline"`
	RunID     string    `json:"runId" db:"run_id"`
	Source    string    `json:"source" db:"source"`
	Status    string    `json:"status" db:"status"`
	Findings  []byte    `json:"-" db:"findings"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// FixReport is a remediation suggestion produced by the fix suggester.
type FixReport struct {
	ID         int64     `json:"id" db:"id"`
	PipelineID string    `json:"pipelineId" db:"pipeline_id"`
	RunID      string    `json:"runId" db:"run_id"`
	RuleID     string    `json:"ruleId" db:"rule_id"`
	Title      string    `json:"title" db:"title"`
	YAMLPatch  string    `json:"yamlPatch" db:"yaml_patch"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// AnomalyReport is a single event of the anomaly_reports time series.
type AnomalyReport struct {
	Timestamp    time.Time `json:"ts" db:"ts"`
	PipelineID   string    `json:"pipelineId" db:"pipeline_id"`
	RunID        string    `json:"runId" db:"run_id"`
	JobID        string    `json:"jobId" db:"job_id"`
	ModelUsed    string    `json:"modelUsed" db:"model_used"`
	AnomalyScore float64   `json:"anomalyScore" db:"anomaly_score"`
	IsAnomaly    bool      `json:"isAnomaly" db:"is_anomaly"`
	Details      []byte    `json:"-" db:"details"`
}

// PipelineRun is run metadata. SeverityScore represents risk, so higher
// values are worse.
type PipelineRun struct {
	PipelineID    string    `json:"pipelineId" db:"pipeline_id"`
	RunID         string    `json:"runId" db:"run_id"`
	Timestamp     time.Time `json:"ts" db:"ts"`
	SeverityScore float64   `json:"riskScore" db:"severity_score"`
}

// SecurityScore converts the stored risk into the posture score shown on the
// dashboard, where higher is better.
func (r PipelineRun) SecurityScore() int {
	v := math.Round(100 - r.SeverityScore)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
