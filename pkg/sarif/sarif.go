// Package sarif converts normalized findings to the Static Analysis Results
// Interchange Format (SARIF) 2.1.0.
package sarif

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/hashicorp/go-version"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/postureboard"
)

const (
	Version = "2.1.0"
	Schema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelNote    = "note"
)

type Log struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name            string `json:"name"`
	InformationURI  string `json:"informationUri,omitempty"`
	Version         string `json:"version,omitempty"`
	SemanticVersion string `json:"semanticVersion,omitempty"`
	Rules           []Rule `json:"rules"`
}

type Rule struct {
	ID               string          `json:"id"`
	ShortDescription *Message        `json:"shortDescription,omitempty"`
	Help             *Message        `json:"help,omitempty"`
	Properties       *RuleProperties `json:"properties,omitempty"`
}

type RuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type Result struct {
	RuleID     string           `json:"ruleId"`
	Level      string           `json:"level"`
	Message    Message          `json:"message"`
	Properties ResultProperties `json:"properties"`
}

type Message struct {
	Text string `json:"text"`
}

type ResultProperties struct {
	Pipeline       string            `json:"pipeline"`
	Severity       v1alpha1.Severity `json:"severity"`
	Mapping        map[string]string `json:"mapping"`
	Recommendation string            `json:"recommendation"`
	Evidence       string            `json:"evidence"`
}

// Exporter builds SARIF logs attributed to a fixed tool identity.
type Exporter struct {
	buildInfo postureboard.BuildInfo
}

func NewExporter(buildInfo postureboard.BuildInfo) *Exporter {
	return &Exporter{buildInfo: buildInfo}
}

// Export returns a single run log for the given findings. Findings without a
// rule id are dropped and only the first finding of each rule id is kept, so
// the order of the input decides which message is reported.
func (e *Exporter) Export(pipeline string, findings []v1alpha1.Finding) Log {
	seen := hashset.New()
	results := make([]Result, 0)
	rules := make([]Rule, 0)

	for _, f := range findings {
		ruleID := strings.TrimSpace(f.RuleID)
		if ruleID == "" || seen.Contains(ruleID) {
			continue
		}
		seen.Add(ruleID)

		results = append(results, Result{
			RuleID:  ruleID,
			Level:   LevelForSeverity(f.Severity),
			Message: Message{Text: messageText(f)},
			Properties: ResultProperties{
				Pipeline:       pipeline,
				Severity:       v1alpha1.ParseSeverity(string(f.Severity)),
				Mapping:        mappingProperties(f.Mapping),
				Recommendation: f.Recommendation,
				Evidence:       f.Evidence,
			},
		})
		rules = append(rules, newRule(ruleID, f))
	}

	return Log{
		Schema:  Schema,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:            postureboard.ToolName,
						InformationURI:  postureboard.InformationURI,
						Version:         e.buildInfo.Version,
						SemanticVersion: semanticVersion(e.buildInfo.Version),
						Rules:           rules,
					},
				},
				Results: results,
			},
		},
	}
}

// Marshal exports findings and encodes the log as indented JSON.
func (e *Exporter) Marshal(pipeline string, findings []v1alpha1.Finding) ([]byte, error) {
	data, err := json.MarshalIndent(e.Export(pipeline, findings), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sarif log: %w", err)
	}
	return data, nil
}

// LevelForSeverity maps a severity to a SARIF result level.
func LevelForSeverity(severity v1alpha1.Severity) string {
	switch v1alpha1.ParseSeverity(string(severity)) {
	case v1alpha1.SeverityCritical, v1alpha1.SeverityHigh:
		return LevelError
	case v1alpha1.SeverityMedium:
		return LevelWarning
	default:
		return LevelNote
	}
}

func messageText(f v1alpha1.Finding) string {
	for _, text := range []string{f.Description, f.Title, f.RuleID} {
		if s := strings.TrimSpace(text); s != "" {
			return s
		}
	}
	return ""
}

func mappingProperties(m v1alpha1.Mapping) map[string]string {
	props := make(map[string]string, 2)
	if m.OWASP != "" {
		props["owasp"] = m.OWASP
	}
	if m.SLSA != "" {
		props["slsa"] = m.SLSA
	}
	return props
}

func newRule(id string, f v1alpha1.Finding) Rule {
	rule := Rule{ID: id}
	if f.Title != "" {
		rule.ShortDescription = &Message{Text: f.Title}
	}
	if f.Recommendation != "" {
		rule.Help = &Message{Text: f.Recommendation}
	}
	var tags []string
	if f.Mapping.OWASP != "" {
		tags = append(tags, f.Mapping.OWASP)
	}
	if f.Mapping.SLSA != "" {
		tags = append(tags, f.Mapping.SLSA)
	}
	if len(tags) > 0 {
		rule.Properties = &RuleProperties{Tags: tags}
	}
	return rule
}

// semanticVersion returns the normalized build version or an empty string for
// development builds that do not carry a semver version.
func semanticVersion(v string) string {
	parsed, err := version.NewSemver(strings.TrimPrefix(v, "v"))
	if err != nil {
		return ""
	}
	return parsed.String()
}
