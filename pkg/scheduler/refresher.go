// Package scheduler periodically regenerates report artifacts of every known
// pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/safeops/postureboard/pkg/apierrors"
	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/ext"
	"github.com/safeops/postureboard/pkg/runner"
	"github.com/safeops/postureboard/pkg/utils"
)

// Generator regenerates and describes persisted artifacts.
type Generator interface {
	Generate(ctx context.Context, pipeline string, mode v1alpha1.ReportMode) (*artifact.Generation, error)
	Manifest(pipeline string) (*artifact.Manifest, error)
}

// PipelineLister lists known pipelines.
type PipelineLister interface {
	ListPipelines(ctx context.Context) ([]string, error)
	ListVulnReportPipelines(ctx context.Context) ([]string, error)
}

type Options struct {
	Schedule string
	Mode     v1alpha1.ReportMode
	// MinAge skips pipelines whose current artifacts are younger.
	MinAge time.Duration
	// Timeout bounds a single sweep. Zero disables it.
	Timeout time.Duration
}

// Summary describes a single sweep.
type Summary struct {
	Generated int
	Skipped   int
	Failed    int
}

type Refresher struct {
	opts      Options
	generator Generator
	lister    PipelineLister
	clock     ext.Clock
	log       logr.Logger

	afterSweep func(Summary)
}

func NewRefresher(opts Options, generator Generator, lister PipelineLister, clock ext.Clock, log logr.Logger) *Refresher {
	if opts.Mode == "" {
		opts.Mode = v1alpha1.ReportModeAll
	}
	return &Refresher{
		opts:      opts,
		generator: generator,
		lister:    lister,
		clock:     clock,
		log:       log.WithName("refresher"),
	}
}

// Run sweeps on every activation of the schedule until ctx is done. It
// returns the context error on cancellation and a non-nil error when the
// schedule cannot be evaluated.
func (r *Refresher) Run(ctx context.Context) error {
	r.log.Info("Starting artifacts refresher", "schedule", r.opts.Schedule, "mode", r.opts.Mode)
	for {
		now := r.clock.Now()
		wait, err := utils.NextCronDuration(r.opts.Schedule, now, r.clock)
		if err != nil {
			return fmt.Errorf("evaluating refresh schedule %q: %w", r.opts.Schedule, err)
		}
		if utils.DurationExceeded(wait) {
			wait = 0
		}
		r.log.V(1).Info("Waiting for next refresh", "after", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("Stopping artifacts refresher")
			return ctx.Err()
		case <-timer.C:
		}

		summary, err := r.sweepWithTimeout(ctx)
		if ctx.Err() != nil {
			r.log.Info("Stopping artifacts refresher")
			return ctx.Err()
		}
		if err != nil {
			r.log.Error(err, "Refresh sweep failed", "timeout", r.opts.Timeout)
		}
		if r.afterSweep != nil {
			r.afterSweep(summary)
		}
	}
}

// sweepWithTimeout runs Sweep bounded by the configured timeout. The summary
// is empty when the sweep did not finish in time.
func (r *Refresher) sweepWithTimeout(ctx context.Context) (Summary, error) {
	results := make(chan Summary, 1)
	err := runner.NewWithTimeout(r.opts.Timeout).Run(ctx, runner.RunnableFunc(func(ctx context.Context) error {
		summary, err := r.Sweep(ctx)
		results <- summary
		return err
	}))
	select {
	case summary := <-results:
		return summary, err
	default:
		return Summary{}, err
	}
}

// Sweep regenerates artifacts for every known pipeline. A failing pipeline is
// logged and does not stop the sweep. The returned error is only set when the
// pipelines cannot be listed or ctx is done.
func (r *Refresher) Sweep(ctx context.Context) (Summary, error) {
	var summary Summary
	pipelines, err := r.pipelines(ctx)
	if err != nil {
		return summary, err
	}
	for _, pipeline := range pipelines {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		log := r.log.WithValues("pipeline", pipeline)
		if r.fresh(pipeline) {
			log.V(1).Info("Skipping fresh artifacts")
			summary.Skipped++
			continue
		}
		generation, err := r.generator.Generate(ctx, pipeline, r.opts.Mode)
		if err != nil {
			log.Error(err, "Regenerating artifacts")
			summary.Failed++
			continue
		}
		log.V(1).Info("Regenerated artifacts", "score", generation.Manifest.Score.Value)
		summary.Generated++
	}
	r.log.Info("Refresh sweep finished", "generated", summary.Generated,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func (r *Refresher) pipelines(ctx context.Context) ([]string, error) {
	pipelines, err := r.lister.ListPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	if len(pipelines) > 0 {
		return pipelines, nil
	}
	pipelines, err = r.lister.ListVulnReportPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	return pipelines, nil
}

// fresh returns true if the current artifacts are younger than MinAge.
func (r *Refresher) fresh(pipeline string) bool {
	if r.opts.MinAge <= 0 {
		return false
	}
	manifest, err := r.generator.Manifest(pipeline)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			r.log.Error(err, "Reading manifest", "pipeline", pipeline)
		}
		return false
	}
	expired, _ := utils.IsTTLExpired(r.opts.MinAge, manifest.GeneratedAt, r.clock)
	return !expired
}
