// Package artifact persists the generated report documents of a pipeline and
// streams them as a single archive.
//
// Artifacts are laid out one directory per pipeline:
//
//	<dir>/<pipeline>/report.html
//	<dir>/<pipeline>/report.pdf
//	<dir>/<pipeline>/report.sarif
//	<dir>/<pipeline>/manifest.json
//
// Every file is replaced atomically and writes for the same pipeline are
// serialized, so readers always observe a complete file. The file names do
// not depend on the report mode; the manifest records the mode the current
// files were generated with.
package artifact

import (
	"time"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/score"
)

// Manifest describes the artifacts currently stored for a pipeline.
type Manifest struct {
	PipelineID  string              `json:"pipelineId"`
	Mode        v1alpha1.ReportMode `json:"mode"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Score       score.Result        `json:"score"`
	Stats       templates.Stats     `json:"stats"`
}

// Generation is the outcome of a single Generate call.
type Generation struct {
	Manifest
	HTMLPath  string `json:"htmlPath"`
	PDFPath   string `json:"pdfPath"`
	SARIFPath string `json:"sarifPath"`
}

// Path returns the path of the artifact in the given format.
func (g *Generation) Path(format v1alpha1.ArtifactFormat) string {
	switch format {
	case v1alpha1.ArtifactFormatHTML:
		return g.HTMLPath
	case v1alpha1.ArtifactFormatPDF:
		return g.PDFPath
	case v1alpha1.ArtifactFormatSARIF:
		return g.SARIFPath
	default:
		return ""
	}
}
