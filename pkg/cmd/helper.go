package cmd

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/etc"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/logging"
	"github.com/safeops/postureboard/pkg/postureboard"
	"github.com/safeops/postureboard/pkg/report"
	"github.com/safeops/postureboard/pkg/sarif"
	"github.com/safeops/postureboard/pkg/store/postgres"
)

const modeFlag = "mode"

// components are the collaborators shared by the commands that read the
// datastore.
type components struct {
	config    etc.Config
	log       logr.Logger
	clock     ext.Clock
	store     *postgres.Store
	builder   *report.Builder
	exporter  *sarif.Exporter
	artifacts *artifact.Store

	closers []func()
}

func newComponents(buildInfo postureboard.BuildInfo) (*components, error) {
	config, err := etc.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("getting config: %w", err)
	}
	log, flush, err := logging.New(logging.Options{
		DevMode: config.Log.DevMode,
		Level:   config.Log.Level,
		File:    config.Log.File,
	})
	if err != nil {
		return nil, err
	}
	c := &components{
		config:  config,
		log:     log,
		clock:   ext.NewSystemClock(),
		closers: []func(){flush},
	}

	pool := postgres.PoolOptions{
		MaxOpenConns:    config.Pool.MaxOpenConns,
		MaxIdleConns:    config.Pool.MaxIdleConns,
		ConnMaxLifetime: config.Pool.ConnMaxLifetime,
	}
	security, err := c.open(config.SecurityDSN(), pool)
	if err != nil {
		c.Close()
		return nil, err
	}
	var timeSeries *sqlx.DB
	if config.HasTimeSeries() {
		if timeSeries, err = c.open(config.TimeSeriesDSN(), pool); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.store = postgres.NewStore(security, timeSeries, postgres.Options{
		AcquireTimeout: config.Pool.AcquireTimeout,
		QueryTimeout:   config.Pool.QueryTimeout,
	})
	c.builder = report.NewBuilder(c.store, c.clock)
	c.exporter = sarif.NewExporter(buildInfo)
	c.artifacts = artifact.NewStore(config.Artifacts.Dir, c.builder, c.exporter, log)
	return c, nil
}

func (c *components) open(dsn string, pool postgres.PoolOptions) (*sqlx.DB, error) {
	db, err := postgres.Open(dsn, pool)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() {
		_ = db.Close()
	})
	return db, nil
}

// Close releases the pools and flushes the logger, in reverse order.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func registerModeFlag(flags *pflag.FlagSet) {
	flags.String(modeFlag, string(v1alpha1.ReportModeAll), "Report mode, either all or latest")
}

func getMode(cmd *cobra.Command) (v1alpha1.ReportMode, error) {
	value, err := cmd.Flags().GetString(modeFlag)
	if err != nil {
		return "", err
	}
	return v1alpha1.ParseReportMode(value)
}
