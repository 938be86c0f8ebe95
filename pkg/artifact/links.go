package artifact

import (
	"net/url"
	"strings"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

// Links are the HTTP locations of the report endpoints of a pipeline.
type Links struct {
	Generate string `json:"generate,omitempty"`
	HTML     string `json:"html"`
	PDF      string `json:"pdf"`
	SARIF    string `json:"sarif"`
	ZIP      string `json:"zip"`
}

// NewLinks returns links relative to baseURL, or absolute paths when it is
// empty. A non-empty mode is propagated to the endpoints that regenerate.
func NewLinks(baseURL, pipeline string, mode v1alpha1.ReportMode) Links {
	base := strings.TrimRight(baseURL, "/") + "/report/" + url.PathEscape(pipeline)
	query := ""
	if mode != "" {
		query = "?mode=" + url.QueryEscape(string(mode))
	}
	return Links{
		Generate: base + query,
		HTML:     base + "/" + string(v1alpha1.ArtifactFormatHTML),
		PDF:      base + "/" + string(v1alpha1.ArtifactFormatPDF),
		SARIF:    base + "/" + string(v1alpha1.ArtifactFormatSARIF),
		ZIP:      base + "/" + string(v1alpha1.ArtifactFormatZIP) + query,
	}
}
