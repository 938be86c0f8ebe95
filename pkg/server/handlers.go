package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/dashboard"
	"github.com/safeops/postureboard/pkg/report/templates"
	"github.com/safeops/postureboard/pkg/score"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
	datastoreOK          = "ok"
	datastoreUnreachable = "unreachable"
)

type healthResponse struct {
	Status    string `json:"status"`
	Datastore string `json:"datastore"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.datastore.Ping(r.Context()); err != nil {
		logFor(r, s.log).Error(err, "Datastore unreachable")
		s.writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{
			Status:    healthStatusDegraded,
			Datastore: datastoreUnreachable,
		})
		return
	}
	s.writeJSON(w, r, http.StatusOK, healthResponse{Status: healthStatusOK, Datastore: datastoreOK})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := dashboard.ParseFilters(q.Get("pipeline"), q.Get("severity"), q.Get("q"), q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.aggregator.Aggregate(r.Context(), filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

// reportResponse describes a completed generation.
type reportResponse struct {
	PipelineID  string              `json:"pipelineId"`
	Mode        v1alpha1.ReportMode `json:"mode"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Score       score.Result        `json:"score"`
	Stats       templates.Stats     `json:"stats"`
	Files       artifact.Links      `json:"files"`
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	pipeline, mode, err := pipelineAndMode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	generation, err := s.artifacts.Generate(r.Context(), pipeline, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	files := artifact.NewLinks(s.opts.BaseURL, pipeline, generation.Mode)
	files.Generate = ""
	s.writeJSON(w, r, http.StatusOK, reportResponse{
		PipelineID:  pipeline,
		Mode:        generation.Mode,
		GeneratedAt: generation.GeneratedAt,
		Score:       generation.Score,
		Stats:       generation.Stats,
		Files:       files,
	})
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request) {
	pipeline, err := pipelineID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := v1alpha1.ParseArtifactFormat(mux.Vars(r)["format"])
	if err != nil || format == v1alpha1.ArtifactFormatZIP {
		s.writeError(w, r, apierrors.NewNotFound("report format", mux.Vars(r)["format"]))
		return
	}

	f, err := s.artifacts.Open(pipeline, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	w.Header().Set(headerContentType, format.ContentType())
	if format != v1alpha1.ArtifactFormatHTML {
		w.Header().Set(headerContentDisposition, attachment(fmt.Sprintf("%s.%s", artifact.SafeFileName(pipeline), format)))
	}
	http.ServeContent(w, r, f.Name, f.ModTime, f)
}

func (s *Server) bundleReport(w http.ResponseWriter, r *http.Request) {
	pipeline, mode, err := pipelineAndMode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	zw := &streamWriter{
		ResponseWriter: w,
		header: map[string]string{
			headerContentType:        v1alpha1.ArtifactFormatZIP.ContentType(),
			headerContentDisposition: attachment(artifact.BundleName(pipeline)),
		},
	}
	if _, err := s.artifacts.Bundle(r.Context(), pipeline, mode, zw); err != nil {
		if !zw.started {
			s.writeError(w, r, err)
			return
		}
		// Part of the archive is already on the wire, so the only signal
		// left is a broken response.
		logFor(r, s.log).Error(err, "Streaming archive aborted", "pipeline", pipeline, "bytes", zw.written)
		panic(http.ErrAbortHandler)
	}
}

// pipelineID returns the validated pipeline identifier of the route. The
// router matches escaped paths, so "team%2Fapp" names the pipeline
// "team/app".
func pipelineID(r *http.Request) (string, error) {
	raw := mux.Vars(r)["pipelineId"]
	pipeline, err := url.PathUnescape(raw)
	if err != nil {
		return "", apierrors.NewInvalid("malformed pipeline id %q", raw)
	}
	if err := artifact.ValidateIdentifier(pipeline); err != nil {
		return "", err
	}
	return pipeline, nil
}

func pipelineAndMode(r *http.Request) (string, v1alpha1.ReportMode, error) {
	pipeline, err := pipelineID(r)
	if err != nil {
		return "", "", err
	}
	mode, err := v1alpha1.ParseReportMode(r.URL.Query().Get("mode"))
	if err != nil {
		return "", "", apierrors.NewInvalid("%v", err)
	}
	return pipeline, mode, nil
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// streamWriter sends the response headers with the first written byte, so a
// failure before that can still be reported as a JSON error.
type streamWriter struct {
	http.ResponseWriter
	header  map[string]string
	started bool
	written int64
}

func (w *streamWriter) Write(b []byte) (int, error) {
	if !w.started {
		for k, v := range w.header {
			w.ResponseWriter.Header().Set(k, v)
		}
		w.ResponseWriter.WriteHeader(http.StatusOK)
		w.started = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}
