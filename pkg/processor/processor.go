// Package processor handles incoming listing messages and runs the dedupe
// pipeline. This is the ingestion layer - it writes raw listings and reacts
// to run triggers; grouping itself is done by the RunService.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/listing"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Processor handles message processing for listing ingestion
type Processor struct {
	logger      ectologger.Logger
	listingRepo *listing.Repository
	runService  *RunService
}

// NewProcessor creates a new message processor for ingestion
func NewProcessor(
	logger ectologger.Logger,
	listingRepo *listing.Repository,
	runService *RunService,
) *Processor {
	return &Processor{
		logger:      logger,
		listingRepo: listingRepo,
		runService:  runService,
	}
}

// ProcessMessage routes an incoming Kafka message
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessMessage")
	defer span.End()

	if msg.IsRunTrigger() {
		return p.processRunTrigger(ctx, msg)
	}

	return p.processListing(ctx, msg)
}

func (p *Processor) processListing(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.processListing")
	defer span.End()

	req := msg.ToCreateRequest()
	if req == nil {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"offset": msg.Offset,
		}).Warn("Skipping unparsed listing message")
		return nil
	}

	rec, err := p.listingRepo.Create(ctx, req)
	if err != nil {
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"listing_id":  rec.ID,
		"retailer_id": rec.RetailerID,
	}).Debug("Ingested listing")
	return nil
}

func (p *Processor) processRunTrigger(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.processRunTrigger")
	defer span.End()

	trigger, err := msg.ParseRunTrigger()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to parse run trigger")
		// Commit malformed triggers rather than retrying them forever.
		return nil
	}

	run, err := p.runService.Trigger(ctx, trigger.Profile)
	if err != nil {
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":  run.ID,
		"profile": run.Profile,
	}).Info("Triggered dedupe run from Kafka")
	return nil
}
