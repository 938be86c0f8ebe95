package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/dashboard"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/postureboard"
	"github.com/safeops/postureboard/pkg/scheduler"
	"github.com/safeops/postureboard/pkg/server"
)

func NewServeCmd(buildInfo postureboard.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and report endpoints",
		Long: `Serve the dashboard and report endpoints over HTTP. Settings are read
from POSTURE_*, POSTGRES_*, TS_* and DB_* environment variables. When
POSTURE_REFRESH_SCHEDULE is set, report artifacts of every pipeline are
regenerated on that cron schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := newComponents(buildInfo)
			if err != nil {
				return err
			}
			defer c.Close()
			return serve(ctx, buildInfo, c)
		},
	}
}

func serve(ctx context.Context, buildInfo postureboard.BuildInfo, c *components) error {
	setupLog := c.log.WithName("serve")
	setupLog.Info("Starting postureboard", "buildInfo", buildInfo,
		"listenAddress", c.config.Server.ListenAddress, "artifactsDir", c.config.Artifacts.Dir,
		"separateTimeSeries", c.config.HasTimeSeries())

	if err := c.store.Ping(ctx); err != nil {
		// The service still starts; /health reports the datastore as
		// unreachable until it comes up.
		setupLog.Error(err, "Datastore unreachable at startup")
	}

	aggregator := dashboard.NewAggregator(c.store, c.clock, c.config.Server.PublicBaseURL, c.log)
	handler := server.NewServer(aggregator, c.artifacts, c.store, ext.NewGoogleUUIDGenerator(),
		server.Options{BaseURL: c.config.Server.PublicBaseURL}, c.log).Handler()

	httpServer := &http.Server{
		Addr:         c.config.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}

	errs := make(chan error, 2)
	go func() {
		setupLog.Info("Listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serving http: %w", err)
		}
	}()

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	if c.config.Refresh.Schedule != "" {
		mode, _ := v1alpha1.ParseReportMode(c.config.Refresh.Mode)
		refresher := scheduler.NewRefresher(scheduler.Options{
			Schedule: c.config.Refresh.Schedule,
			Mode:     mode,
			MinAge:   c.config.Refresh.MinAge,
			Timeout:  c.config.Refresh.Timeout,
		}, c.artifacts, c.store, c.clock, c.log)
		go func() {
			if err := refresher.Run(refreshCtx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		setupLog.Info("Shutting down")
	case runErr = <-errs:
		setupLog.Error(runErr, "Stopping")
	}
	cancelRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.config.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return runErr
}
