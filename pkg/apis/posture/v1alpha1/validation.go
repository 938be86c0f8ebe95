package v1alpha1

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	PipelineIDMinLength = 2
	PipelineIDMaxLength = 80
)

var pipelineIDPattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// ValidatePipelineID checks the length and charset of id. Slashes separate
// non-empty segments, as in "team/app".
func ValidatePipelineID(id string) error {
	if len(id) < PipelineIDMinLength || len(id) > PipelineIDMaxLength {
		return fmt.Errorf("pipeline id must be between %d and %d characters", PipelineIDMinLength, PipelineIDMaxLength)
	}
	if !pipelineIDPattern.MatchString(id) {
		return fmt.Errorf("pipeline id %q may only contain letters, digits, '.', '_', '-' and '/'", id)
	}
	if strings.HasPrefix(id, "/") || strings.HasSuffix(id, "/") || strings.Contains(id, "//") {
		return fmt.Errorf("pipeline id %q must not contain empty segments", id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("pipeline id %q must not contain '..'", id)
	}
	return nil
}
