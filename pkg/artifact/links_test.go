package artifact_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
)

var _ = Describe("Links", func() {
	It("Should build relative links", func() {
		Expect(artifact.NewLinks("", "demo", "")).To(Equal(artifact.Links{
			Generate: "/report/demo",
			HTML:     "/report/demo/html",
			PDF:      "/report/demo/pdf",
			SARIF:    "/report/demo/sarif",
			ZIP:      "/report/demo/zip",
		}))
	})

	It("Should prefix base URL and keep mode", func() {
		links := artifact.NewLinks("https://posture.example.com/", "demo", v1alpha1.ReportModeLatest)
		Expect(links.Generate).To(Equal("https://posture.example.com/report/demo?mode=latest"))
		Expect(links.PDF).To(Equal("https://posture.example.com/report/demo/pdf"))
		Expect(links.ZIP).To(Equal("https://posture.example.com/report/demo/zip?mode=latest"))
	})

	It("Should keep nested identifiers in one path segment", func() {
		links := artifact.NewLinks("", "team/app", "")
		Expect(links.HTML).To(Equal("/report/team%2Fapp/html"))
		Expect(artifact.BundleName("team/app")).To(Equal("team_app-report.zip"))
	})
})
