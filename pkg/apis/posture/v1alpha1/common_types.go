package v1alpha1

import (
	"fmt"
	"strings"
)

// Severity level of a finding reported by a detector.
// +enum
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityWeight = map[Severity]int{
	SeverityCritical: 10,
	SeverityHigh:     7,
	SeverityMedium:   4,
	SeverityLow:      1,
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// ParseSeverity normalizes the given value. Matching is case-insensitive and
// anything that is not a known severity degrades to SeverityLow.
func ParseSeverity(value string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := severityWeight[s]; ok {
		return s
	}
	return SeverityLow
}

// ParseSeverityStrict is like ParseSeverity but rejects unknown values. It is
// meant for user supplied filters where silently widening the filter would be
// surprising.
func ParseSeverityStrict(value string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := severityWeight[s]; !ok {
		return "", fmt.Errorf("unrecognized severity: %q", value)
	}
	return s, nil
}

// Weight returns the risk contribution of the severity.
func (s Severity) Weight() int {
	if w, ok := severityWeight[s]; ok {
		return w
	}
	return severityWeight[SeverityLow]
}

// Rank orders severities from the most to the least severe.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityLow]
}

// Severities returns all known severities ordered from critical to low.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// ReportMode controls how many vulnerability reports feed a generated report.
type ReportMode string

const (
	ReportModeAll    ReportMode = "all"
	ReportModeLatest ReportMode = "latest"
)

// ParseReportMode returns ReportModeAll for an empty value.
func ParseReportMode(value string) (ReportMode, error) {
	switch ReportMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ReportModeAll:
		return ReportModeAll, nil
	case ReportModeLatest:
		return ReportModeLatest, nil
	default:
		return "", fmt.Errorf("unrecognized report mode: %q", value)
	}
}

// ArtifactFormat is the format of a persisted report artifact.
type ArtifactFormat string

const (
	ArtifactFormatHTML  ArtifactFormat = "html"
	ArtifactFormatPDF   ArtifactFormat = "pdf"
	ArtifactFormatSARIF ArtifactFormat = "sarif"
	ArtifactFormatZIP   ArtifactFormat = "zip"
)

// ArtifactFormats returns the formats persisted by a single generation.
func ArtifactFormats() []ArtifactFormat {
	return []ArtifactFormat{ArtifactFormatHTML, ArtifactFormatPDF, ArtifactFormatSARIF}
}

func ParseArtifactFormat(value string) (ArtifactFormat, error) {
	switch f := ArtifactFormat(strings.ToLower(value)); f {
	case ArtifactFormatHTML, ArtifactFormatPDF, ArtifactFormatSARIF, ArtifactFormatZIP:
		return f, nil
	default:
		return "", fmt.Errorf("unrecognized artifact format: %q", value)
	}
}

// ContentType returns the media type the artifact is served with.
func (f ArtifactFormat) ContentType() string {
	switch f {
	case ArtifactFormatHTML:
		return "text/html; charset=utf-8"
	case ArtifactFormatPDF:
		return "application/pdf"
	case ArtifactFormatSARIF:
		return "application/sarif+json"
	case ArtifactFormatZIP:
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
