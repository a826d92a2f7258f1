// Package jobs runs queued linkage jobs in the background. The API enqueues
// pending jobs; the runner claims them one at a time per worker and drives
// the linkage engine end to end.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/linkagejob"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/linkage"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config holds the runner settings
type Config struct {
	Workers      int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// Runner claims pending linkage jobs and executes them
type Runner struct {
	logger  ectologger.Logger
	engine  *linkage.Engine
	repo    *linkagejob.Repository
	emitter *events.Emitter
	config  Config

	wg sync.WaitGroup
}

// NewRunner creates a job runner. emitter may be nil to disable events.
func NewRunner(logger ectologger.Logger, engine *linkage.Engine, repo *linkagejob.Repository, emitter *events.Emitter, config Config) *Runner {
	return &Runner{
		logger:  logger,
		engine:  engine,
		repo:    repo,
		emitter: emitter,
		config:  config.withDefaults(),
	}
}

// Start launches the worker loops. They run until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			r.workerLoop(ctx, worker)
		}(i)
	}
}

// Wait blocks until all workers have stopped
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	log := r.logger.WithFields(map[string]any{"worker": worker})
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Job worker stopping")
			return
		case <-ticker.C:
			// Drain the queue before sleeping again.
			for {
				claimed, err := r.runNext(ctx)
				if err != nil {
					log.WithError(err).Error("Job execution failed")
					break
				}
				if !claimed {
					break
				}
			}
		}
	}
}

// runNext claims and executes one pending job. Returns false when the queue
// is empty.
func (r *Runner) runNext(ctx context.Context) (bool, error) {
	job, err := r.repo.ClaimPending(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	r.Execute(ctx, job)
	return true, nil
}

// Execute runs one claimed job and records its outcome. Run failures are
// persisted on the job, not returned.
func (r *Runner) Execute(ctx context.Context, job *models.LinkageJob) {
	ctx, span := tracing.StartSpan(ctx, "jobs.Runner.Execute")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":      job.ID,
		"tenant_id":   job.TenantID,
		"record_type": job.RecordType,
	})
	log.Info("Linkage job started")

	if r.emitter != nil {
		if err := r.emitter.EmitJobStarted(ctx, job); err != nil {
			log.WithError(err).Warn("Failed to emit job started event")
		}
	}

	result, err := r.runJob(ctx, job)
	if err != nil {
		log.WithError(err).Error("Linkage job failed")
		if failErr := r.repo.Fail(ctx, job.TenantID, job.ID, err); failErr != nil {
			log.WithError(failErr).Error("Failed to record job failure")
		}
		if r.emitter != nil {
			if emitErr := r.emitter.EmitJobFailed(ctx, job, err); emitErr != nil {
				log.WithError(emitErr).Warn("Failed to emit job failed event")
			}
		}
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		log.WithError(err).Error("Failed to serialize job result")
		if failErr := r.repo.Fail(ctx, job.TenantID, job.ID, err); failErr != nil {
			log.WithError(failErr).Error("Failed to record job failure")
		}
		return
	}

	if err := r.repo.Complete(ctx, job.TenantID, job.ID, resultJSON); err != nil {
		log.WithError(err).Error("Failed to record job completion")
		return
	}

	if r.emitter != nil {
		if err := r.emitter.EmitJobCompleted(ctx, job, result.Stats); err != nil {
			log.WithError(err).Warn("Failed to emit job completed event")
		}
		if err := r.emitter.EmitMatchedPairs(ctx, job, result); err != nil {
			log.WithError(err).Warn("Failed to emit matched pair events")
		}
	}

	log.WithFields(map[string]any{
		"rows":          len(result.Rows),
		"labeled_pairs": result.Stats.LabeledPairs,
	}).Info("Linkage job completed")
}

func (r *Runner) runJob(ctx context.Context, job *models.LinkageJob) (*models.LinkageResult, error) {
	var spec models.LinkageSpec
	if err := json.Unmarshal(job.Spec, &spec); err != nil {
		return nil, fmt.Errorf("invalid job spec: %w", err)
	}

	return r.engine.Run(ctx, job.TenantID, spec)
}
