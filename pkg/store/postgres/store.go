// Package postgres implements store.Reader on PostgreSQL. Vulnerability and
// fix reports live in the security database, anomalies and pipeline runs in
// a time-series database that may be the same one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/store"
	"github.com/safeops/postureboard/pkg/store/query"
)

const driverName = "postgres"

// undefinedTable is the SQLSTATE reported for a missing relation.
const undefinedTable = "42P01"

// PoolOptions bounds a connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open returns a bounded pool for dsn. It does not connect; use Store.Ping.
func Open(dsn string, opts PoolOptions) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db, nil
}

type Options struct {
	// AcquireTimeout bounds waiting for a pooled connection.
	AcquireTimeout time.Duration
	// QueryTimeout bounds a single statement.
	QueryTimeout time.Duration
}

type Store struct {
	security   *sqlx.DB
	timeSeries *sqlx.DB
	opts       Options
}

var _ store.Reader = &Store{}

// NewStore returns a Store. When timeSeries is nil the security database
// serves every relation.
func NewStore(security, timeSeries *sqlx.DB, opts Options) *Store {
	if timeSeries == nil {
		timeSeries = security
	}
	return &Store{
		security:   security,
		timeSeries: timeSeries,
		opts:       opts,
	}
}

// withConn runs fn on a dedicated connection acquired within the acquire
// timeout, with a context bounded by the query timeout.
func (s *Store) withConn(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, conn *sqlx.Conn) error) error {
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, s.opts.AcquireTimeout)
	conn, err := db.Connx(acquireCtx)
	cancelAcquire()
	if err != nil {
		return apierrors.NewDependency("datastore unavailable", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	queryCtx, cancelQuery := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancelQuery()
	return fn(queryCtx, conn)
}

func (s *Store) selectRows(ctx context.Context, db *sqlx.DB, relation string, dest interface{}, q string, args ...interface{}) error {
	return s.withConn(ctx, db, func(ctx context.Context, conn *sqlx.Conn) error {
		if err := conn.SelectContext(ctx, dest, q, args...); err != nil {
			return apierrors.NewDependency(fmt.Sprintf("querying %s", relation), err)
		}
		return nil
	})
}

func (s *Store) FindVulnReports(ctx context.Context, filter store.VulnReportFilter) ([]v1alpha1.VulnerabilityReport, error) {
	b := query.NewBuilder()
	if filter.Pipeline != "" {
		b.WhereEq("pipeline", filter.Pipeline)
	}
	if filter.Query != "" {
		b.WhereContainsAny(filter.Query, "pipeline", "COALESCE(run_id, '')", "COALESCE(status, '')", "COALESCE(findings::text, '')")
	}
	q := `SELECT id, pipeline, COALESCE(run_id, '') AS run_id, COALESCE(source, '') AS source,
       COALESCE(status, '') AS status, findings, created_at
FROM vuln_reports` + b.WhereClause() + `
ORDER BY created_at DESC, id DESC` + b.Limit(filter.Limit)

	var reports []v1alpha1.VulnerabilityReport
	if err := s.selectRows(ctx, s.security, "vuln_reports", &reports, q, b.Args()...); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Store) ListVulnReportPipelines(ctx context.Context) ([]string, error) {
	var pipelines []string
	err := s.selectRows(ctx, s.security, "vuln_reports", &pipelines,
		`SELECT DISTINCT pipeline FROM vuln_reports ORDER BY pipeline`)
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (s *Store) LatestFixes(ctx context.Context, limit int) ([]v1alpha1.FixReport, error) {
	b := query.NewBuilder()
	q := `SELECT id, COALESCE(pipeline_id, '') AS pipeline_id, COALESCE(run_id, '') AS run_id,
       COALESCE(rule_id, '') AS rule_id, COALESCE(title, '') AS title,
       COALESCE(yaml_patch, '') AS yaml_patch, created_at
FROM fix_reports
ORDER BY created_at DESC, id DESC` + b.Limit(limit)

	fixes := []v1alpha1.FixReport{}
	err := s.selectRows(ctx, s.security, "fix_reports", &fixes, q, b.Args()...)
	if isUndefinedTable(err) {
		return []v1alpha1.FixReport{}, nil
	}
	if err != nil {
		return nil, err
	}
	return fixes, nil
}

func (s *Store) CountAnomalies(ctx context.Context, pipeline string) (int, error) {
	var count int
	err := s.withConn(ctx, s.timeSeries, func(ctx context.Context, conn *sqlx.Conn) error {
		if err := conn.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM anomaly_reports WHERE pipeline_id = $1 AND is_anomaly`, pipeline); err != nil {
			return apierrors.NewDependency("querying anomaly_reports", err)
		}
		return nil
	})
	return count, err
}

func (s *Store) RecentAnomalies(ctx context.Context, pipeline string, limit int) ([]v1alpha1.AnomalyReport, error) {
	b := query.NewBuilder()
	b.WhereEq("pipeline_id", pipeline)
	q := `SELECT ts, pipeline_id, COALESCE(run_id, '') AS run_id, COALESCE(job_id, '') AS job_id,
       COALESCE(model_used, '') AS model_used, COALESCE(anomaly_score, 0) AS anomaly_score,
       COALESCE(is_anomaly, FALSE) AS is_anomaly, details
FROM anomaly_reports` + b.WhereClause() + `
ORDER BY ts DESC` + b.Limit(limit)

	anomalies := []v1alpha1.AnomalyReport{}
	if err := s.selectRows(ctx, s.timeSeries, "anomaly_reports", &anomalies, q, b.Args()...); err != nil {
		return nil, err
	}
	return anomalies, nil
}

func (s *Store) ListPipelines(ctx context.Context) ([]string, error) {
	var pipelines []string
	err := s.selectRows(ctx, s.timeSeries, "pipeline_runs", &pipelines,
		`SELECT DISTINCT pipeline_id FROM pipeline_runs ORDER BY pipeline_id`)
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (s *Store) LatestRunsPerPipeline(ctx context.Context) ([]v1alpha1.PipelineRun, error) {
	q := `SELECT DISTINCT ON (pipeline_id) pipeline_id, COALESCE(run_id, '') AS run_id, ts,
       COALESCE(severity_score, 0) AS severity_score
FROM pipeline_runs
ORDER BY pipeline_id, ts DESC`

	var runs []v1alpha1.PipelineRun
	if err := s.selectRows(ctx, s.timeSeries, "pipeline_runs", &runs, q); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) RecentRuns(ctx context.Context, pipeline string, limit int) ([]v1alpha1.PipelineRun, error) {
	b := query.NewBuilder()
	if pipeline != "" {
		b.WhereEq("pipeline_id", pipeline)
	}
	q := `SELECT pipeline_id, COALESCE(run_id, '') AS run_id, ts, COALESCE(severity_score, 0) AS severity_score
FROM pipeline_runs` + b.WhereClause() + `
ORDER BY ts DESC` + b.Limit(limit)

	var runs []v1alpha1.PipelineRun
	if err := s.selectRows(ctx, s.timeSeries, "pipeline_runs", &runs, q, b.Args()...); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	dbs := []*sqlx.DB{s.security}
	if s.timeSeries != s.security {
		dbs = append(dbs, s.timeSeries)
	}
	for _, db := range dbs {
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.AcquireTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return apierrors.NewDependency("datastore unreachable", err)
		}
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == undefinedTable
}
