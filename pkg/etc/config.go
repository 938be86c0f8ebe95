package etc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/gorhill/cronexpr"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
)

type Config struct {
	Server     Server
	Artifacts  Artifacts
	Security   Database
	TimeSeries TimeSeriesDatabase
	Pool       Pool
	Log        Log
	Refresh    Refresh
}

type Server struct {
	ListenAddress   string        `env:"POSTURE_LISTEN_ADDRESS" envDefault:":8000"`
	ReadTimeout     time.Duration `env:"POSTURE_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"POSTURE_WRITE_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"POSTURE_SHUTDOWN_TIMEOUT" envDefault:"20s"`
	// PublicBaseURL prefixes generated links. Links are relative when empty.
	PublicBaseURL string `env:"POSTURE_PUBLIC_BASE_URL"`
}

type Artifacts struct {
	Dir string `env:"POSTURE_ARTIFACTS_DIR" envDefault:"reports"`
}

// Database holds connection settings of the store with vuln_reports and
// fix_reports.
type Database struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5433"`
	Name     string `env:"POSTGRES_DB" envDefault:"safeops_security"`
	User     string `env:"POSTGRES_USER" envDefault:"safeops"`
	Password string `env:"POSTGRES_PASSWORD"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

// TimeSeriesDatabase holds connection settings of the optional store with
// anomaly_reports and pipeline_runs.
type TimeSeriesDatabase struct {
	Host     string `env:"TS_HOST"`
	Port     int    `env:"TS_PORT" envDefault:"5432"`
	Name     string `env:"TS_DB" envDefault:"safeops_ts"`
	User     string `env:"TS_USER" envDefault:"postgres"`
	Password string `env:"TS_PASSWORD"`
	SSLMode  string `env:"TS_SSLMODE" envDefault:"disable"`
}

type Pool struct {
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"5"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AcquireTimeout  time.Duration `env:"DB_ACQUIRE_TIMEOUT" envDefault:"5s"`
	QueryTimeout    time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"10s"`
}

type Log struct {
	DevMode bool   `env:"POSTURE_LOG_DEV_MODE" envDefault:"false"`
	Level   string `env:"POSTURE_LOG_LEVEL" envDefault:"info"`
	File    string `env:"POSTURE_LOG_FILE"`
}

type Refresh struct {
	Schedule string `env:"POSTURE_REFRESH_SCHEDULE"`
	Mode     string `env:"POSTURE_REFRESH_MODE" envDefault:"all"`
	// MinAge skips pipelines whose artifacts were generated more recently.
	MinAge time.Duration `env:"POSTURE_REFRESH_MIN_AGE" envDefault:"0s"`
	// Timeout bounds a single sweep over all pipelines.
	Timeout time.Duration `env:"POSTURE_REFRESH_TIMEOUT" envDefault:"30m"`
}

// GetConfig parses the configuration from environment variables.
func GetConfig() (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []string
	if c.Pool.MaxOpenConns <= 0 {
		errs = append(errs, "DB_MAX_OPEN_CONNS must be positive")
	}
	if c.Pool.MaxIdleConns < 0 {
		errs = append(errs, "DB_MAX_IDLE_CONNS must not be negative")
	}
	if c.Pool.AcquireTimeout <= 0 {
		errs = append(errs, "DB_ACQUIRE_TIMEOUT must be positive")
	}
	if c.Pool.QueryTimeout <= 0 {
		errs = append(errs, "DB_QUERY_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		errs = append(errs, "POSTURE_ARTIFACTS_DIR must be set")
	}
	if _, err := v1alpha1.ParseReportMode(c.Refresh.Mode); err != nil {
		errs = append(errs, fmt.Sprintf("POSTURE_REFRESH_MODE: %v", err))
	}
	if c.Refresh.Timeout < 0 {
		errs = append(errs, "POSTURE_REFRESH_TIMEOUT must not be negative")
	}
	if c.Refresh.MinAge < 0 {
		errs = append(errs, "POSTURE_REFRESH_MIN_AGE must not be negative")
	}
	if c.Refresh.Schedule != "" {
		if _, err := cronexpr.Parse(c.Refresh.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("POSTURE_REFRESH_SCHEDULE: %v", err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// SecurityDSN returns the lib/pq connection string of the security store.
func (c Config) SecurityDSN() string {
	return dsn(c.Security.Host, c.Security.Port, c.Security.Name, c.Security.User, c.Security.Password, c.Security.SSLMode)
}

// HasTimeSeries returns true if anomalies and runs live in a separate store.
func (c Config) HasTimeSeries() bool {
	return c.TimeSeries.Host != ""
}

// TimeSeriesDSN returns the connection string of the time-series store, or
// the security store DSN when no separate store is configured.
func (c Config) TimeSeriesDSN() string {
	if !c.HasTimeSeries() {
		return c.SecurityDSN()
	}
	ts := c.TimeSeries
	return dsn(ts.Host, ts.Port, ts.Name, ts.User, ts.Password, ts.SSLMode)
}

func dsn(host string, port int, name, user, password, sslMode string) string {
	params := []struct{ key, value string }{
		{"host", host},
		{"port", fmt.Sprintf("%d", port)},
		{"dbname", name},
		{"user", user},
		{"password", password},
		{"sslmode", sslMode},
	}
	var parts []string
	for _, p := range params {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue quotes values with spaces or quotes as lib/pq expects.
func quoteDSNValue(value string) string {
	if !strings.ContainsAny(value, ` '\`) {
		return value
	}
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(value) + "'"
}
