package vulnerabilityreport

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

// NormalizedReport is a VulnerabilityReport together with the findings
// extracted from its JSON payload.
type NormalizedReport struct {
	Report   v1alpha1.VulnerabilityReport
	Findings []v1alpha1.Finding
}

// Normalize parses the findings of each report and returns the reports
// ordered newest first. Reports created at the same instant are ordered by
// descending id. A report whose payload cannot be interpreted yields no
// findings instead of failing the batch.
func Normalize(reports []v1alpha1.VulnerabilityReport) []NormalizedReport {
	sorted := make([]v1alpha1.VulnerabilityReport, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	normalized := make([]NormalizedReport, 0, len(sorted))
	for _, report := range sorted {
		normalized = append(normalized, NormalizedReport{
			Report:   report,
			Findings: ParseFindings(report),
		})
	}
	return normalized
}

// Flatten concatenates findings of the given reports preserving order.
func Flatten(reports []NormalizedReport) []v1alpha1.Finding {
	var findings []v1alpha1.Finding
	for _, r := range reports {
		findings = append(findings, r.Findings...)
	}
	return findings
}

// NormalizeAndFlatten is a shortcut for Flatten(Normalize(reports)).
func NormalizeAndFlatten(reports []v1alpha1.VulnerabilityReport) []v1alpha1.Finding {
	return Flatten(Normalize(reports))
}

// ParseFindings extracts findings from the payload of a single report.
//
// The payload may be a JSON array, a JSON string holding a JSON array, or
// anything else, which yields no findings. Array elements may be objects or
// plain strings; other elements are skipped.
func ParseFindings(report v1alpha1.VulnerabilityReport) []v1alpha1.Finding {
	items := decodeArray(report.Findings)
	if len(items) == 0 {
		return nil
	}
	origin := v1alpha1.FindingOrigin{
		ReportID:  report.ID,
		Pipeline:  report.Pipeline,
		RunID:     report.RunID,
		Source:    report.Source,
		CreatedAt: report.CreatedAt,
	}

	findings := make([]v1alpha1.Finding, 0, len(items))
	for _, item := range items {
		finding, ok := parseFinding(item)
		if !ok {
			continue
		}
		finding.Origin = origin
		findings = append(findings, finding)
	}
	return findings
}

func decodeArray(raw []byte) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}
	// Some producers store the array as a JSON encoded string.
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil
	}
	return items
}

func parseFinding(raw json.RawMessage) (v1alpha1.Finding, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == 'n' {
		return v1alpha1.Finding{}, false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return v1alpha1.Finding{
			Title:       text,
			Description: text,
			Severity:    v1alpha1.SeverityLow,
		}, true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return v1alpha1.Finding{}, false
	}

	finding := v1alpha1.Finding{
		RuleID:         firstText(fields, "rule_id", "ruleId", "id"),
		Title:          firstText(fields, "title"),
		Description:    firstText(fields, "description", "message"),
		Severity:       v1alpha1.ParseSeverity(firstText(fields, "severity")),
		Recommendation: firstText(fields, "recommendation", "remediation"),
		Evidence:       CanonicalEvidence(fields["evidence"]),
	}

	var mapping map[string]json.RawMessage
	if raw, ok := fields["mapping"]; ok && json.Unmarshal(raw, &mapping) == nil {
		finding.Mapping = v1alpha1.Mapping{
			OWASP: firstText(mapping, "owasp"),
			SLSA:  firstText(mapping, "slsa"),
		}
	}
	return finding, true
}

// CanonicalEvidence converts evidence to its display string. Strings are
// returned as is, null yields an empty string and any other value is encoded
// as compact JSON with sorted object keys and numbers kept verbatim, so equal
// evidence always renders identically.
func CanonicalEvidence(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return string(raw)
	}
	if value == nil {
		return ""
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return string(raw)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// firstText returns the first of the given keys holding a textual value.
// Numbers and booleans are accepted verbatim and arrays of strings are
// joined with a comma.
func firstText(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if text, ok := textValue(raw); ok {
			return text
		}
	}
	return ""
}

func textValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", "), true
	}
	switch raw[0] {
	case '{', '[':
		return "", false
	default:
		return string(raw), true
	}
}
