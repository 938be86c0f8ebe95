package server_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/dashboard"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/postureboard"
	"github.com/safeops/postureboard/pkg/report"
	"github.com/safeops/postureboard/pkg/sarif"
	"github.com/safeops/postureboard/pkg/server"
	"github.com/safeops/postureboard/pkg/store/fake"
)

var now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *fake.Store
	artifacts *artifact.Store
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := fake.NewStore().
		AddRuns(v1alpha1.PipelineRun{PipelineID: "api", RunID: "api-1", Timestamp: now, SeverityScore: 30}).
		AddVulnReports(v1alpha1.VulnerabilityReport{
			ID: 1, Pipeline: "api", RunID: "api-1", Status: "failed", CreatedAt: now,
			Findings: []byte(`[{"rule_id":"SECRET","title":"Leaked token","severity":"critical"},{"rule_id":"PIN","severity":"medium"}]`),
		})
	clock := ext.NewFixedClock(now)
	artifacts := artifact.NewStore(t.TempDir(), report.NewBuilder(s, clock),
		sarif.NewExporter(postureboard.BuildInfo{Version: "1.0.0"}), logr.Discard())
	srv := server.NewServer(
		dashboard.NewAggregator(s, clock, "", logr.Discard()),
		artifacts,
		s,
		ext.NewSequentialIDGenerator("req"),
		server.Options{},
		logr.Discard(),
	)
	return &fixture{store: s, artifacts: artifacts, handler: srv.Handler()}
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	t.Run("Should report healthy datastore", func(t *testing.T) {
		rr := newFixture(t).get("/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","datastore":"ok"}`, rr.Body.String())
	})

	t.Run("Should report unreachable datastore", func(t *testing.T) {
		f := newFixture(t)
		f.store.Err = errors.New("dial tcp: connection refused")

		rr := f.get("/health")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","datastore":"unreachable"}`, rr.Body.String())
	})
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	rr := f.get("/health")
	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestDashboard(t *testing.T) {
	t.Run("Should return dashboard view", func(t *testing.T) {
		rr := newFixture(t).get("/dashboard?pipeline=api&limit=500")
		require.Equal(t, http.StatusOK, rr.Code)

		var view dashboard.View
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
		assert.Equal(t, []string{"api"}, view.Pipelines)
		assert.Equal(t, dashboard.MaxLimit, view.Meta.Filters.Limit)
		assert.Equal(t, 72, view.Score.Value)
		require.NotNil(t, view.ReportLinks)
		assert.Equal(t, "/report/api/zip", view.ReportLinks.ZIP)
	})

	t.Run("Should reject unknown severity", func(t *testing.T) {
		rr := newFixture(t).get("/dashboard?severity=urgent")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_input", decodeError(t, rr)["code"])
	})

	t.Run("Should hide datastore errors", func(t *testing.T) {
		f := newFixture(t)
		f.store.Err = apierrors.NewDependency("datastore unavailable", errors.New("pq: password authentication failed"))

		rr := f.get("/dashboard")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "dependency_failure", body["code"])
		assert.Equal(t, "datastore unavailable", body["detail"])
		assert.NotContains(t, rr.Body.String(), "password")
	})
}

func TestReport(t *testing.T) {
	t.Run("Should generate artifacts", func(t *testing.T) {
		rr := newFixture(t).get("/report/api?mode=latest")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{
			"pipelineId": "api",
			"mode": "latest",
			"generatedAt": "2025-03-01T12:00:00Z",
			"score": {"value": 72, "details": {"totalFindings": 2, "totalRisk": 14, "anomalyCount": 0, "vulnPenalty": 28, "anomalyPenalty": 0}},
			"stats": {"reports": 1, "findings": 2, "critical": 1, "high": 0, "medium": 1, "low": 0},
			"files": {
				"html": "/report/api/html",
				"pdf": "/report/api/pdf",
				"sarif": "/report/api/sarif",
				"zip": "/report/api/zip?mode=latest"
			}
		}`, rr.Body.String())
	})

	t.Run("Should accept an escaped nested identifier", func(t *testing.T) {
		f := newFixture(t)
		rr := f.get("/report/team%2Fapp")
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			PipelineID string            `json:"pipelineId"`
			Files      map[string]string `json:"files"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "team/app", body.PipelineID)
		assert.Equal(t, "/report/team%2Fapp/pdf", body.Files["pdf"])

		rr = f.get(body.Files["pdf"])
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="team_app.pdf"`, rr.Header().Get("Content-Disposition"))

		rr = f.get("/report/team%2Fapp/zip")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="team_app-report.zip"`, rr.Header().Get("Content-Disposition"))
	})

	t.Run("Should reject invalid identifier before any access", func(t *testing.T) {
		for _, target := range []string{"/report/a", "/report/bad%20id", "/report/a..b/pdf", "/report/x/zip", "/report/team%2F%2Fapp", "/report/%2Fetc/pdf"} {
			rr := newFixture(t).get(target)
			assert.Equal(t, http.StatusBadRequest, rr.Code, target)
			assert.Equal(t, "invalid_input", decodeError(t, rr)["code"], target)
		}
	})

	t.Run("Should reject unknown mode", func(t *testing.T) {
		rr := newFixture(t).get("/report/api?mode=some")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestServeArtifact(t *testing.T) {
	t.Run("Should return not found before generation", func(t *testing.T) {
		rr := newFixture(t).get("/report/api/pdf")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decodeError(t, rr)["code"])
	})

	t.Run("Should serve generated artifacts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.artifacts.Generate(context.Background(), "api", v1alpha1.ReportModeAll)
		require.NoError(t, err)

		rr := f.get("/report/api/html")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Empty(t, rr.Header().Get("Content-Disposition"))
		assert.Contains(t, rr.Body.String(), "Leaked token")

		rr = f.get("/report/api/pdf")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="api.pdf"`, rr.Header().Get("Content-Disposition"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))

		rr = f.get("/report/api/sarif")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/sarif+json", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="api.sarif"`, rr.Header().Get("Content-Disposition"))
		var log sarif.Log
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &log))
		assert.Equal(t, "2.1.0", log.Version)
	})

	t.Run("Should return not found for unknown format", func(t *testing.T) {
		rr := newFixture(t).get("/report/api/docx")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestBundle(t *testing.T) {
	t.Run("Should stream archive", func(t *testing.T) {
		rr := newFixture(t).get("/report/api/zip?mode=all")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="api-report.zip"`, rr.Header().Get("Content-Disposition"))

		zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
		require.NoError(t, err)
		var names []string
		for _, file := range zr.File {
			names = append(names, file.Name)
		}
		assert.Equal(t, []string{"report.html", "report.pdf", "report.sarif", "manifest.json"}, names)
	})

	t.Run("Should report error before first byte as JSON", func(t *testing.T) {
		f := newFixture(t)
		f.store.Err = apierrors.NewDependency("datastore unavailable", errors.New("timeout"))

		rr := f.get("/report/api/zip")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "dependency_failure", decodeError(t, rr)["code"])
	})

	t.Run("Should terminate response on failure after first byte", func(t *testing.T) {
		srv := server.NewServer(nil, &brokenBundler{}, fake.NewStore(),
			ext.NewSequentialIDGenerator("req"), server.Options{}, logr.Discard())
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/report/api/zip")
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_, err = io.ReadAll(resp.Body)
		assert.Error(t, err)
	})
}

func TestRecovery(t *testing.T) {
	srv := server.NewServer(&panickingAggregator{}, nil, fake.NewStore(),
		ext.NewSequentialIDGenerator("req"), server.Options{}, logr.Discard())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "internal", body["code"])
	assert.Equal(t, "internal error", body["detail"])
	assert.False(t, strings.Contains(rr.Body.String(), "goroutine"))
}

func TestNotFoundRoute(t *testing.T) {
	rr := newFixture(t).get("/nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr)["code"])
}

type brokenBundler struct{}

func (b *brokenBundler) Generate(context.Context, string, v1alpha1.ReportMode) (*artifact.Generation, error) {
	return nil, errors.New("not implemented")
}

func (b *brokenBundler) Open(string, v1alpha1.ArtifactFormat) (*artifact.File, error) {
	return nil, errors.New("not implemented")
}

func (b *brokenBundler) Bundle(_ context.Context, _ string, _ v1alpha1.ReportMode, w io.Writer) (*artifact.Generation, error) {
	if _, err := w.Write(bytes.Repeat([]byte{'P'}, 64*1024)); err != nil {
		return nil, err
	}
	return nil, errors.New("reading report.pdf: input/output error")
}

type panickingAggregator struct{}

func (a *panickingAggregator) Aggregate(context.Context, dashboard.Filters) (*dashboard.View, error) {
	panic("boom")
}
