package dashboard

import (
	"strconv"
	"strings"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/ext"
)

const (
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 200
)

// Filters narrow the dashboard view. Zero values select everything.
type Filters struct {
	Pipeline string            `json:"pipeline"`
	Severity v1alpha1.Severity `json:"severity"`
	Query    string            `json:"q"`
	Limit    int               `json:"limit"`
}

// ParseFilters validates raw query parameters. An unknown severity, a
// malformed pipeline id or a non numeric limit is an InputError; a numeric
// limit outside the allowed range is clamped.
func ParseFilters(pipeline, severity, query, limit string) (Filters, error) {
	filters := Filters{
		Pipeline: strings.TrimSpace(pipeline),
		Query:    strings.TrimSpace(query),
		Limit:    DefaultLimit,
	}
	if filters.Pipeline != "" {
		if err := v1alpha1.ValidatePipelineID(filters.Pipeline); err != nil {
			return Filters{}, apierrors.NewInvalid("%v", err)
		}
	}
	if strings.TrimSpace(severity) != "" {
		s, err := v1alpha1.ParseSeverityStrict(severity)
		if err != nil {
			return Filters{}, apierrors.NewInvalid("%v", err)
		}
		filters.Severity = s
	}
	if strings.TrimSpace(limit) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(limit))
		if err != nil {
			return Filters{}, apierrors.NewInvalid("limit must be an integer: %q", limit)
		}
		filters.Limit = n
	}
	filters.Limit = ext.ClampInt(filters.Limit, MinLimit, MaxLimit)
	return filters, nil
}
