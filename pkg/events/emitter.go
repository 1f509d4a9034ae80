// Package events handles event emission for group lifecycle changes
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for Clover
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

// EmitGroupResults emits a group event for every resolved group in a run
func (e *Emitter) EmitGroupResults(ctx context.Context, runID string, results []models.GroupResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitGroupResults")
	defer span.End()

	if len(results) == 0 {
		return nil
	}

	events := make([]*kafka.GroupEvent, 0, len(results))
	for _, res := range results {
		events = append(events, &kafka.GroupEvent{
			EventType:         string(EventTypeGroupCreated),
			GroupID:           res.GroupID,
			RunID:             runID,
			MemberIDs:         res.MemberIDs,
			CanonicalRecordID: res.CanonicalRecordID,
			CanonicalName:     res.CanonicalName,
			Reason:            res.Reason,
		})
	}

	if err := e.producer.PublishGroupEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit group events")
		return err
	}

	return nil
}

// EmitRunStarted emits a run.started event
func (e *Emitter) EmitRunStarted(ctx context.Context, run *models.DedupeRun) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	event := &kafka.RunEvent{
		EventType: string(EventTypeRunStarted),
		RunID:     run.ID,
		Status:    string(run.Status),
		Timestamp: time.Now().UTC(),
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.started event")
		return err
	}

	return nil
}

// EmitRunCompleted emits a run.completed or run.failed event with counters
func (e *Emitter) EmitRunCompleted(ctx context.Context, run *models.DedupeRun) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	eventType := EventTypeRunCompleted
	if run.Status == models.DedupeRunStatusFailed {
		eventType = EventTypeRunFailed
	}

	event := &kafka.RunEvent{
		EventType:     string(eventType),
		RunID:         run.ID,
		Status:        string(run.Status),
		RecordCount:   run.RecordCount,
		GroupCount:    run.GroupCount,
		OracleCalls:   run.OracleCalls,
		FallbackCount: run.FallbackCount,
		Timestamp:     time.Now().UTC(),
	}

	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run completion event")
		return err
	}

	return nil
}
