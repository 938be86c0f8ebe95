package report

import (
	"io"

	"github.com/safeops/postureboard/pkg/report/templates"
)

type htmlReporter struct {
}

func NewHTMLReporter() Reporter {
	return &htmlReporter{}
}

func (h *htmlReporter) Generate(page *templates.ReportPage, writer io.Writer) error {
	templates.WritePageTemplate(writer, page)
	return nil
}
