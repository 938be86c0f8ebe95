package report

import (
	"io"

	"github.com/safeops/postureboard/pkg/report/templates"
)

// Reporter renders a report page into a specific document format.
type Reporter interface {
	Generate(page *templates.ReportPage, writer io.Writer) error
}
