// Package server exposes the dashboard and report artifacts over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/dashboard"
	"github.com/safeops/postureboard/pkg/ext"
)

const (
	headerRequestID          = "X-Request-ID"
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"

	contentTypeJSON = "application/json"
)

// Aggregator composes the dashboard view.
type Aggregator interface {
	Aggregate(ctx context.Context, filters dashboard.Filters) (*dashboard.View, error)
}

// ArtifactStore generates, stores and bundles report artifacts.
type ArtifactStore interface {
	Generate(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*artifact.Generation, error)
	Open(pipeline string, format v1alpha1.ArtifactFormat) (*artifact.File, error)
	Bundle(ctx context.Context, pipeline string, mode v1alpha1.ReportMode, w io.Writer) (*artifact.Generation, error)
}

// Pinger checks datastore reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// BaseURL prefixes the links returned to clients.
	BaseURL string
}

type Server struct {
	aggregator Aggregator
	artifacts  ArtifactStore
	datastore  Pinger
	ids        ext.IDGenerator
	opts       Options
	log        logr.Logger
}

func NewServer(aggregator Aggregator, artifacts ArtifactStore, datastore Pinger, ids ext.IDGenerator, opts Options, log logr.Logger) *Server {
	return &Server{
		aggregator: aggregator,
		artifacts:  artifacts,
		datastore:  datastore,
		ids:        ids,
		opts:       opts,
		log:        log.WithName("server"),
	}
}

// Handler returns the routed handler with request id, access log and panic
// recovery middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)
	r.HandleFunc("/report/{pipelineId}", s.generateReport).Methods(http.MethodGet)
	r.HandleFunc("/report/{pipelineId}/zip", s.bundleReport).Methods(http.MethodGet)
	r.HandleFunc("/report/{pipelineId}/{format}", s.serveArtifact).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, apierrors.NewNotFound("route", req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeJSON(w, req, http.StatusMethodNotAllowed, errorResponse{
			Code:   "method_not_allowed",
			Detail: req.Method + " is not allowed",
		})
	})
	return s.withRequestID(s.withAccessLog(s.withRecovery(r)))
}

type errorResponse struct {
	Code   apierrors.StatusReason `json:"code"`
	Detail string                 `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logFor(r, s.log).Error(err, "Writing response")
	}
}

// writeError renders err as {code, detail}. The cause of server side errors
// is logged and never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierrors.AsStatus(err)
	code := apierrors.HTTPStatus(status)
	if code >= http.StatusInternalServerError {
		logFor(r, s.log).Error(err, "Request failed", "code", status.Reason)
	}
	s.writeJSON(w, r, code, errorResponse{Code: status.Reason, Detail: status.Detail})
}
