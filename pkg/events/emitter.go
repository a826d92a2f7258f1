// Package events handles event emission for linkage job lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter handles event emission for linkage runs
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitJobStarted emits a linkage.started event
func (e *Emitter) EmitJobStarted(ctx context.Context, job *models.LinkageJob) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitJobStarted")
	defer span.End()

	event := &kafka.JobEvent{
		EventType:     string(EventTypeJobStarted),
		TenantID:      job.TenantID,
		JobID:         job.ID,
		RecordType:    job.RecordType,
		CorrelationID: NewCorrelationID(),
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit linkage.started event")
		return err
	}

	return nil
}

// EmitJobCompleted emits a linkage.completed event carrying the run stats
func (e *Emitter) EmitJobCompleted(ctx context.Context, job *models.LinkageJob, stats models.RunStats) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitJobCompleted")
	defer span.End()

	statsJSON, _ := json.Marshal(CompletedPayload{
		SchemaVersion: SchemaVersion,
		Stats:         stats,
	})

	event := &kafka.JobEvent{
		EventType:     string(EventTypeJobCompleted),
		TenantID:      job.TenantID,
		JobID:         job.ID,
		RecordType:    job.RecordType,
		Stats:         statsJSON,
		CorrelationID: NewCorrelationID(),
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit linkage.completed event")
		return err
	}

	return nil
}

// EmitJobFailed emits a linkage.failed event
func (e *Emitter) EmitJobFailed(ctx context.Context, job *models.LinkageJob, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitJobFailed")
	defer span.End()

	event := &kafka.JobEvent{
		EventType:     string(EventTypeJobFailed),
		TenantID:      job.TenantID,
		JobID:         job.ID,
		RecordType:    job.RecordType,
		Error:         runErr.Error(),
		CorrelationID: NewCorrelationID(),
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit linkage.failed event")
		return err
	}

	return nil
}

// EmitMatchedPairs emits one pair.matched event per accepted match in the
// result. Unmatched outer-join rows are skipped; row-expanded duplicates of
// the same logical pair collapse to one event.
func (e *Emitter) EmitMatchedPairs(ctx context.Context, job *models.LinkageJob, result *models.LinkageResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchedPairs")
	defer span.End()

	correlationID := NewCorrelationID()

	seen := make(map[models.PairKey]bool)
	var events []*kafka.PairEvent
	for _, row := range result.Rows {
		if row.BRow == nil || row.MatchProbability == nil {
			continue
		}
		key := models.PairKey{A: row.ItemA, B: row.ItemB}
		if seen[key] {
			continue
		}
		seen[key] = true

		events = append(events, &kafka.PairEvent{
			EventType:     string(EventTypePairMatched),
			TenantID:      job.TenantID,
			JobID:         job.ID,
			RecordType:    job.RecordType,
			ItemA:         row.ItemA,
			ItemB:         row.ItemB,
			Probability:   *row.MatchProbability,
			LabelSource:   string(row.LabelSource),
			CorrelationID: correlationID,
		})
	}

	if err := e.producer.PublishPairEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit pair.matched events")
		return err
	}

	return nil
}
