// Package worker drains pending tag jobs: it claims each one, runs the tagging
// rules over its bookmark and records the rescaled suggestions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/jobs"
	"github.com/lesterapp/lester/internal/logger"
	"github.com/lesterapp/lester/internal/tagging"
)

// Options configures the loop.
type Options struct {
	// PollInterval is the idle wait after an empty fetch.
	PollInterval time.Duration
	// BatchSize caps the jobs fetched per batch. Must be positive.
	BatchSize int
	// Once drains the currently pending jobs and returns instead of polling.
	Once bool
}

// Worker processes tag jobs from a Store.
type Worker struct {
	store  Store
	rules  *tagging.Rules
	policy tagging.Policy
	opts   Options
	log    *slog.Logger
}

// New creates a worker.
func New(store Store, policy tagging.Policy, opts Options, log *slog.Logger) (*Worker, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.NewInvalidRequest("batch size must be positive")
	}
	if !opts.Once && opts.PollInterval <= 0 {
		return nil, errors.NewInvalidRequest("poll interval must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		store:  store,
		rules:  tagging.NewRules(policy),
		policy: policy,
		opts:   opts,
		log:    log.With("component", "worker"),
	}, nil
}

// Run processes batches until ctx is cancelled or, with Once, until no pending
// jobs remain.
//
// A failed batch is logged and the loop keeps polling. If the store then
// reports itself unhealthy, Run returns the error so the process can exit.
// Cancellation is only observed between jobs; a claimed job always reaches a
// terminal state first.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started",
		"batch_size", w.opts.BatchSize,
		"poll_interval", w.opts.PollInterval,
		"once", w.opts.Once,
	)
	total := 0
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped", "processed", total)
			return nil
		}

		fetched, processed, err := w.runBatch(ctx, w.opts.BatchSize)
		total += processed
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker stopped", "processed", total)
				return nil
			}
			w.log.Error("batch failed", "processed", processed, "err", err, logger.Cause(err))
			if herr := w.store.Healthy(ctx); herr != nil {
				w.log.Error("store unhealthy, stopping", "err", herr, logger.Cause(herr))
				return fmt.Errorf("store unhealthy: %w", herr)
			}
			if w.opts.Once {
				return err
			}
			w.sleep(ctx)
			continue
		}

		if processed > 0 {
			w.log.Info("batch done", "fetched", fetched, "processed", processed)
		}
		if fetched > 0 {
			continue
		}
		if w.opts.Once {
			w.log.Info("no pending jobs, exiting", "processed", total)
			return nil
		}
		w.sleep(ctx)
	}
}

// RunOnce processes one batch of at most batchSize pending jobs, oldest first.
// It returns the number of jobs this worker claimed and drove to a terminal
// state. Jobs claimed elsewhere first are skipped and not counted.
func (w *Worker) RunOnce(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, errors.NewInvalidRequest("batch size must be positive")
	}
	_, processed, err := w.runBatch(ctx, batchSize)
	return processed, err
}

func (w *Worker) runBatch(ctx context.Context, batchSize int) (fetched, processed int, err error) {
	pending, err := w.store.FetchPendingJobs(ctx, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			return len(pending), processed, err
		}
		done, err := w.processJob(ctx, job)
		if done {
			processed++
		}
		if err != nil {
			return len(pending), processed, err
		}
	}
	return len(pending), processed, nil
}

// processJob reports whether this worker claimed the job and moved it to a
// terminal state.
func (w *Worker) processJob(ctx context.Context, job jobs.TagJob) (bool, error) {
	log := w.log.With("job_id", job.ID, "bookmark_id", job.BookmarkID)

	claimed, err := w.store.TransitionJob(ctx, job.ID, jobs.StatusPending, jobs.StatusRunning)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		log.Debug("job already claimed, skipping")
		return false, nil
	}

	// Once claimed, the job runs to completion even if ctx is cancelled.
	ctx = context.WithoutCancel(ctx)

	b, err := w.store.GetBookmark(ctx, job.BookmarkID)
	if errors.Is(err, errors.ErrNotFound) {
		log.Warn("bookmark missing, failing job")
		return w.finish(ctx, log, job, jobs.StatusFailed)
	}
	if err != nil {
		w.abandon(ctx, log, job)
		return false, fmt.Errorf("job %s: get bookmark: %w", job.ID, err)
	}

	suggestions := w.policy.Rescale(w.rules.Suggest(b.URL, b.Title))
	if _, err := w.store.UpsertTagsForBookmark(ctx, b.ID, suggestions); err != nil {
		w.abandon(ctx, log, job)
		return false, fmt.Errorf("job %s: upsert tags: %w", job.ID, err)
	}

	log.Debug("tags recorded", "count", len(suggestions))
	return w.finish(ctx, log, job, jobs.StatusDone)
}

func (w *Worker) finish(ctx context.Context, log *slog.Logger, job jobs.TagJob, to jobs.Status) (bool, error) {
	ok, err := w.store.TransitionJob(ctx, job.ID, jobs.StatusRunning, to)
	if err != nil {
		return false, fmt.Errorf("job %s: mark %s: %w", job.ID, to, err)
	}
	if !ok {
		// Someone moved the job out of running under us; nothing left to do.
		log.Warn("job left running state unexpectedly", "want", to)
		return false, nil
	}
	log.Info("job finished", "status", to)
	return true, nil
}

// abandon makes a best-effort attempt to fail a claimed job after a store
// error so it does not linger in running.
func (w *Worker) abandon(ctx context.Context, log *slog.Logger, job jobs.TagJob) {
	if _, err := w.store.TransitionJob(ctx, job.ID, jobs.StatusRunning, jobs.StatusFailed); err != nil {
		log.Error("could not mark job failed", "err", err, logger.Cause(err))
	}
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
