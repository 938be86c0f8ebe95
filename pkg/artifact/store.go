package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/etc"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/report"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/sarif"
)

// PageBuilder builds the view model rendered into every artifact.
type PageBuilder interface {
	Build(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*templates.ReportPage, error)
}

type Store struct {
	dir      string
	builder  PageBuilder
	html     report.Reporter
	pdf      report.Reporter
	exporter *sarif.Exporter
	locks    *ext.KeyedMutex
	log      logr.Logger
}

func NewStore(dir string, builder PageBuilder, exporter *sarif.Exporter, log logr.Logger) *Store {
	return &Store{
		dir:      dir,
		builder:  builder,
		html:     report.NewHTMLReporter(),
		pdf:      report.NewPDFReporter(),
		exporter: exporter,
		locks:    ext.NewKeyedMutex(),
		log:      log.WithName("artifact-store"),
	}
}

// ValidateIdentifier returns an InputError unless pipeline is a valid
// pipeline identifier.
func ValidateIdentifier(pipeline string) error {
	if err := v1alpha1.ValidatePipelineID(pipeline); err != nil {
		return apierrors.NewInvalid("%v", err)
	}
	return nil
}

// FileName returns the base name of the artifact in the given format.
func FileName(format v1alpha1.ArtifactFormat) string {
	return etc.ReportFileBase + "." + string(format)
}

// pipelineDir keeps every pipeline in one directory of s.dir. Slashes are
// escaped, and since '%' is not a valid identifier character the mapping
// never maps two identifiers to the same directory.
func (s *Store) pipelineDir(pipeline string) string {
	return filepath.Join(s.dir, url.PathEscape(pipeline))
}

// Path returns where the artifact of the pipeline is stored.
func (s *Store) Path(pipeline string, format v1alpha1.ArtifactFormat) (string, error) {
	if err := ValidateIdentifier(pipeline); err != nil {
		return "", err
	}
	if !ext.SliceContains(v1alpha1.ArtifactFormats(), format) {
		return "", apierrors.NewInvalid("unsupported artifact format: %q", format)
	}
	return filepath.Join(s.pipelineDir(pipeline), FileName(format)), nil
}

// Generate renders the HTML, PDF and SARIF artifacts of the pipeline from a
// single view model and replaces the stored ones.
func (s *Store) Generate(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*Generation, error) {
	return s.generate(ctx, pipeline, mode, nil)
}

// generate is Generate with a hook that runs on the new generation before
// the pipeline's write lock is released.
func (s *Store) generate(ctx context.Context, pipeline string, mode v1alpha1.ReportMode, locked func(dir string) error) (*Generation, error) {
	if err := ValidateIdentifier(pipeline); err != nil {
		return nil, err
	}
	page, err := s.builder.Build(ctx, pipeline, mode)
	if err != nil {
		return nil, err
	}

	rendered, err := s.render(page)
	if err != nil {
		return nil, apierrors.NewInternal("rendering report", err)
	}
	manifest := Manifest{
		PipelineID:  pipeline,
		Mode:        page.Mode,
		GeneratedAt: page.GeneratedAt,
		Score:       page.Score,
		Stats:       page.Stats,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, apierrors.NewInternal("encoding manifest", err)
	}

	dir := s.pipelineDir(pipeline)
	unlock := s.locks.Lock(pipeline)
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierrors.NewInternal("creating artifact directory", err)
	}
	for _, format := range v1alpha1.ArtifactFormats() {
		if err := writeFileAtomic(dir, FileName(format), rendered[format]); err != nil {
			return nil, apierrors.NewInternal(fmt.Sprintf("writing %s report", format), err)
		}
	}
	// The manifest goes last so it never describes files that were not
	// written.
	if err := writeFileAtomic(dir, etc.ManifestFileName, manifestJSON); err != nil {
		return nil, apierrors.NewInternal("writing manifest", err)
	}

	s.log.Info("Generated report artifacts", "pipeline", pipeline, "mode", page.Mode,
		"score", page.Score.Value, "findings", page.Stats.Findings)

	if locked != nil {
		if err := locked(dir); err != nil {
			return nil, err
		}
	}

	return &Generation{
		Manifest:  manifest,
		HTMLPath:  filepath.Join(dir, FileName(v1alpha1.ArtifactFormatHTML)),
		PDFPath:   filepath.Join(dir, FileName(v1alpha1.ArtifactFormatPDF)),
		SARIFPath: filepath.Join(dir, FileName(v1alpha1.ArtifactFormatSARIF)),
	}, nil
}

func (s *Store) render(page *templates.ReportPage) (map[v1alpha1.ArtifactFormat][]byte, error) {
	var html, pdf bytes.Buffer
	if err := s.html.Generate(page, &html); err != nil {
		return nil, err
	}
	if err := s.pdf.Generate(page, &pdf); err != nil {
		return nil, err
	}
	sarifJSON, err := s.exporter.Marshal(page.Pipeline, page.Findings())
	if err != nil {
		return nil, err
	}
	return map[v1alpha1.ArtifactFormat][]byte{
		v1alpha1.ArtifactFormatHTML:  html.Bytes(),
		v1alpha1.ArtifactFormatPDF:   pdf.Bytes(),
		v1alpha1.ArtifactFormatSARIF: sarifJSON,
	}, nil
}

// File is an opened artifact. The caller must close it.
type File struct {
	*os.File
	Name    string
	ModTime time.Time
	Size    int64
}

// Open returns the stored artifact of the pipeline. It fails with a
// NotFoundError if the artifact has never been generated.
func (s *Store) Open(pipeline string, format v1alpha1.ArtifactFormat) (*File, error) {
	path, err := s.Path(pipeline, format)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(pipeline)
	defer unlock()
	return openFile(path, fmt.Sprintf("%s report", format), pipeline)
}

// Fetch returns the content of the stored artifact.
func (s *Store) Fetch(pipeline string, format v1alpha1.ArtifactFormat) ([]byte, error) {
	f, err := s.Open(pipeline, format)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierrors.NewInternal("reading artifact", err)
	}
	return data, nil
}

// Manifest returns the manifest of the current artifacts of the pipeline.
func (s *Store) Manifest(pipeline string) (*Manifest, error) {
	if err := ValidateIdentifier(pipeline); err != nil {
		return nil, err
	}
	unlock := s.locks.RLock(pipeline)
	data, err := os.ReadFile(filepath.Join(s.pipelineDir(pipeline), etc.ManifestFileName))
	unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apierrors.NewNotFound("report manifest", pipeline)
	}
	if err != nil {
		return nil, apierrors.NewInternal("reading manifest", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, apierrors.NewInternal("decoding manifest", err)
	}
	return &manifest, nil
}

func openFile(path, kind, pipeline string) (*File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apierrors.NewNotFound(kind, pipeline)
	}
	if err != nil {
		return nil, apierrors.NewInternal("opening artifact", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, apierrors.NewInternal("opening artifact", err)
	}
	return &File{
		File:    f,
		Name:    filepath.Base(path),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// writeFileAtomic writes data to a temporary file in dir and renames it over
// name once it is synced.
func writeFileAtomic(dir, name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
