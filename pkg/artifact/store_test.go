package artifact_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/postureboard"
	"github.com/safeops/postureboard/pkg/report"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/sarif"
	"github.com/safeops/postureboard/pkg/store/fake"
)

var t0 = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

// steppingClock returns a time one second later on every call.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// countingBuilder records how many pages were requested.
type countingBuilder struct {
	artifact.PageBuilder
	mu    sync.Mutex
	calls int
}

func (b *countingBuilder) Build(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*templates.ReportPage, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return b.PageBuilder.Build(ctx, pipeline, mode)
}

func tempFiles(dir string) []string {
	var found []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && strings.Contains(info.Name(), ".tmp-") {
			found = append(found, path)
		}
		return nil
	})
	return found
}

var _ = Describe("Store", func() {
	var (
		dir     string
		builder *countingBuilder
		store   *artifact.Store
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "postureboard-artifacts-")
		Expect(err).ToNot(HaveOccurred())

		reader := fake.NewStore().AddVulnReports(
			v1alpha1.VulnerabilityReport{
				ID: 1, Pipeline: "demo-pipeline_01", RunID: "run-old", Source: "rules", CreatedAt: t0,
				Findings: []byte(`[{"rule_id":"R1","title":"Old finding","severity":"high"}]`),
			},
			v1alpha1.VulnerabilityReport{
				ID: 2, Pipeline: "demo-pipeline_01", RunID: "run-new", Source: "rules", CreatedAt: t0.Add(time.Hour),
				Findings: []byte(`[{"rule_id":"R2","title":"New finding","severity":"critical"}]`),
			},
		)
		builder = &countingBuilder{PageBuilder: report.NewBuilder(reader, &steppingClock{now: t0})}
		store = artifact.NewStore(dir, builder, sarif.NewExporter(postureboard.BuildInfo{Version: "dev"}), logr.Discard())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	Describe("Validating identifiers", func() {
		table.DescribeTable("Should reject unsafe identifiers before touching the filesystem",
			func(pipeline string) {
				_, err := store.Generate(ctx, pipeline, v1alpha1.ReportModeAll)
				Expect(apierrors.IsInvalid(err)).To(BeTrue())

				_, err = store.Open(pipeline, v1alpha1.ArtifactFormatHTML)
				Expect(apierrors.IsInvalid(err)).To(BeTrue())

				var buf bytes.Buffer
				_, err = store.Bundle(ctx, pipeline, v1alpha1.ReportModeAll, &buf)
				Expect(apierrors.IsInvalid(err)).To(BeTrue())
				Expect(buf.Len()).To(Equal(0))

				Expect(builder.calls).To(Equal(0))
				entries, err := os.ReadDir(dir)
				Expect(err).ToNot(HaveOccurred())
				Expect(entries).To(BeEmpty())
			},
			table.Entry("path traversal", "../../etc"),
			table.Entry("empty", ""),
			table.Entry("too long", strings.Repeat("a", 200)),
			table.Entry("absolute path", "/etc"),
			table.Entry("empty segment", "team//app"),
		)

		It("Should accept a regular identifier", func() {
			Expect(artifact.ValidateIdentifier("demo-pipeline_01")).To(Succeed())
		})

		It("Should store a nested identifier in a single directory", func() {
			generation, err := store.Generate(ctx, "team/app", v1alpha1.ReportModeAll)
			Expect(err).ToNot(HaveOccurred())
			Expect(generation.HTMLPath).To(Equal(filepath.Join(dir, "team%2Fapp", "report.html")))
			Expect(generation.HTMLPath).To(BeARegularFile())

			entries, err := os.ReadDir(dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("team%2Fapp"))

			manifest, err := store.Manifest("team/app")
			Expect(err).ToNot(HaveOccurred())
			Expect(manifest.PipelineID).To(Equal("team/app"))

			_, err = store.Manifest("team_app")
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Generating artifacts", func() {
		It("Should write every format and the manifest", func() {
			generation, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll)
			Expect(err).ToNot(HaveOccurred())

			Expect(generation.HTMLPath).To(Equal(filepath.Join(dir, "demo-pipeline_01", "report.html")))
			Expect(generation.PDFPath).To(Equal(filepath.Join(dir, "demo-pipeline_01", "report.pdf")))
			Expect(generation.SARIFPath).To(Equal(filepath.Join(dir, "demo-pipeline_01", "report.sarif")))
			Expect(generation.HTMLPath).To(BeARegularFile())
			Expect(generation.PDFPath).To(BeARegularFile())
			Expect(generation.SARIFPath).To(BeARegularFile())

			manifest, err := store.Manifest("demo-pipeline_01")
			Expect(err).ToNot(HaveOccurred())
			Expect(manifest.Mode).To(Equal(v1alpha1.ReportModeAll))
			Expect(manifest.Score).To(Equal(generation.Score))
			Expect(manifest.Stats.Findings).To(Equal(2))

			var log sarif.Log
			data, err := store.Fetch("demo-pipeline_01", v1alpha1.ArtifactFormatSARIF)
			Expect(err).ToNot(HaveOccurred())
			Expect(json.Unmarshal(data, &log)).To(Succeed())
			Expect(log.Runs[0].Results).To(HaveLen(2))

			Expect(tempFiles(dir)).To(BeEmpty())
		})

		It("Should let the last generation win", func() {
			_, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeLatest)
			Expect(err).ToNot(HaveOccurred())
			html, err := store.Fetch("demo-pipeline_01", v1alpha1.ArtifactFormatHTML)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("run-new"))
			Expect(string(html)).ToNot(ContainSubstring("run-old"))

			_, err = store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll)
			Expect(err).ToNot(HaveOccurred())
			html, err = store.Fetch("demo-pipeline_01", v1alpha1.ArtifactFormatHTML)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(html)).To(ContainSubstring("run-new"))
			Expect(string(html)).To(ContainSubstring("run-old"))

			manifest, err := store.Manifest("demo-pipeline_01")
			Expect(err).ToNot(HaveOccurred())
			Expect(manifest.Mode).To(Equal(v1alpha1.ReportModeAll))
		})

		It("Should produce the same score for repeated generations", func() {
			first, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll)
			Expect(err).ToNot(HaveOccurred())
			second, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll)
			Expect(err).ToNot(HaveOccurred())

			Expect(second.GeneratedAt).ToNot(Equal(first.GeneratedAt))
			Expect(second.Score).To(Equal(first.Score))
			Expect(second.Stats).To(Equal(first.Stats))
		})

		It("Should serialize concurrent generations of the same pipeline", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				mode := v1alpha1.ReportModeAll
				if i%2 == 0 {
					mode = v1alpha1.ReportModeLatest
				}
				wg.Add(1)
				go func(mode v1alpha1.ReportMode) {
					defer wg.Done()
					_, err := store.Generate(ctx, "demo-pipeline_01", mode)
					errs <- err
				}(mode)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).ToNot(HaveOccurred())
			}

			manifest, err := store.Manifest("demo-pipeline_01")
			Expect(err).ToNot(HaveOccurred())
			data, err := store.Fetch("demo-pipeline_01", v1alpha1.ArtifactFormatSARIF)
			Expect(err).ToNot(HaveOccurred())
			Expect(json.Valid(data)).To(BeTrue())
			Expect(manifest.Mode).To(BeElementOf(v1alpha1.ReportModeAll, v1alpha1.ReportModeLatest))
			Expect(tempFiles(dir)).To(BeEmpty())
		})
	})

	Describe("Reading artifacts", func() {
		It("Should return NotFound before the first generation", func() {
			_, err := store.Fetch("demo-pipeline_01", v1alpha1.ArtifactFormatPDF)
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			_, err = store.Manifest("demo-pipeline_01")
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})

		It("Should reject the zip format", func() {
			_, err := store.Open("demo-pipeline_01", v1alpha1.ArtifactFormatZIP)
			Expect(apierrors.IsInvalid(err)).To(BeTrue())
		})
	})

	Describe("Bundling artifacts", func() {
		It("Should stream a fresh archive of every artifact", func() {
			_, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeLatest)
			Expect(err).ToNot(HaveOccurred())

			var buf bytes.Buffer
			generation, err := store.Bundle(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll, &buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(generation.Mode).To(Equal(v1alpha1.ReportModeAll))

			archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).ToNot(HaveOccurred())

			var names []string
			for _, f := range archive.File {
				names = append(names, f.Name)
			}
			Expect(names).To(Equal([]string{"report.html", "report.pdf", "report.sarif", "manifest.json"}))

			manifest, err := archive.Open("manifest.json")
			Expect(err).ToNot(HaveOccurred())
			defer manifest.Close()
			var m artifact.Manifest
			Expect(json.NewDecoder(manifest).Decode(&m)).To(Succeed())
			Expect(m.Mode).To(Equal(v1alpha1.ReportModeAll))
		})

		It("Should archive its own generation while other modes regenerate", func() {
			done := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					for {
						select {
						case <-done:
							return
						default:
						}
						_, err := store.Generate(ctx, "demo-pipeline_01", v1alpha1.ReportModeLatest)
						Expect(err).ToNot(HaveOccurred())
					}
				}()
			}

			for i := 0; i < 5; i++ {
				var buf bytes.Buffer
				generation, err := store.Bundle(ctx, "demo-pipeline_01", v1alpha1.ReportModeAll, &buf)
				Expect(err).ToNot(HaveOccurred())

				archive, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
				Expect(err).ToNot(HaveOccurred())
				manifest, err := archive.Open("manifest.json")
				Expect(err).ToNot(HaveOccurred())
				var m artifact.Manifest
				Expect(json.NewDecoder(manifest).Decode(&m)).To(Succeed())
				Expect(manifest.Close()).To(Succeed())

				Expect(m.Mode).To(Equal(v1alpha1.ReportModeAll))
				Expect(m.GeneratedAt).To(BeTemporally("==", generation.GeneratedAt))
			}
			close(done)
			wg.Wait()
		})

		It("Should abort when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			var buf bytes.Buffer
			_, err := store.Bundle(cancelled, "demo-pipeline_01", v1alpha1.ReportModeAll, &buf)
			Expect(err).To(MatchError(context.Canceled))

			_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			Expect(err).To(HaveOccurred(), "central directory must not be written")
			Expect(tempFiles(dir)).To(BeEmpty())
		})
	})
})
