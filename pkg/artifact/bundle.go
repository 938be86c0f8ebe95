package artifact

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/etc"
)

const copyBufferSize = 32 * 1024

// BundleName returns the file name of the archive of the pipeline.
func BundleName(pipeline string) string {
	return SafeFileName(pipeline) + "-report.zip"
}

// SafeFileName turns a pipeline identifier into a download file name.
func SafeFileName(pipeline string) string {
	return strings.ReplaceAll(pipeline, "/", "_")
}

// Bundle regenerates the artifacts of the pipeline in the given mode and
// streams them with the manifest as a zip archive to w.
//
// The archive is written as it is produced. If ctx is cancelled, for example
// because the client went away, copying stops and ctx.Err() is returned; the
// zip central directory is only written when every entry was copied, so a
// truncated archive is never mistaken for a complete one.
func (s *Store) Bundle(ctx context.Context, pipeline string, mode v1alpha1.ReportMode, w io.Writer) (*Generation, error) {
	// The files are opened before another generation can replace them;
	// the open descriptors survive later renames.
	var files []*File
	generation, err := s.generate(ctx, pipeline, mode, func(dir string) error {
		var err error
		files, err = openBundleFiles(dir, pipeline)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	zw := zip.NewWriter(w)
	for _, f := range files {
		header := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: generation.GeneratedAt,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", f.Name, err)
		}
		if err := copyContext(ctx, entry, f); err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return generation, nil
}

// openBundleFiles opens the artifacts and the manifest in dir. The caller
// holds the pipeline lock.
func openBundleFiles(dir, pipeline string) ([]*File, error) {
	names := make([]string, 0, len(v1alpha1.ArtifactFormats())+1)
	for _, format := range v1alpha1.ArtifactFormats() {
		names = append(names, FileName(format))
	}
	names = append(names, etc.ManifestFileName)

	files := make([]*File, 0, len(names))
	for _, name := range names {
		f, err := openFile(filepath.Join(dir, name), name, pipeline)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// copyContext copies src to dst and checks ctx between chunks.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
