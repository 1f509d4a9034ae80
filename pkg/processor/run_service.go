package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/listing"
	"github.com/Ramsey-B/clover/internal/repositories/productgroup"
	runrepo "github.com/Ramsey-B/clover/internal/repositories/run"
	"github.com/Ramsey-B/clover/internal/repositories/verdict"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/checkpoint"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/pipeline"
	"github.com/Ramsey-B/clover/pkg/rules"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Oracle is the full arbitration surface the run service needs
type Oracle interface {
	pipeline.Arbiter
	canonical.Oracle
}

// RunService orchestrates one dedupe run end to end: load listings, run
// the pipeline, persist groups and verdicts, then emit and project.
type RunService struct {
	logger      ectologger.Logger
	cfg         config.Config
	listingRepo *listing.Repository
	verdictRepo *verdict.Repository
	groupRepo   *productgroup.Repository
	runRepo     *runrepo.Repository
	oracle      Oracle
	emitter     *events.Emitter
	projector   *graph.Projector

	// Runs mutate the shared checkpoint file, so only one may be live.
	mu sync.Mutex
}

// NewRunService creates a new run service. Emitter and projector are
// optional and skipped when nil.
func NewRunService(
	logger ectologger.Logger,
	cfg config.Config,
	listingRepo *listing.Repository,
	verdictRepo *verdict.Repository,
	groupRepo *productgroup.Repository,
	runRepo *runrepo.Repository,
	oracle Oracle,
	emitter *events.Emitter,
	projector *graph.Projector,
) *RunService {
	return &RunService{
		logger:      logger,
		cfg:         cfg,
		listingRepo: listingRepo,
		verdictRepo: verdictRepo,
		groupRepo:   groupRepo,
		runRepo:     runRepo,
		oracle:      oracle,
		emitter:     emitter,
		projector:   projector,
	}
}

// Trigger starts a run in the background and returns its row immediately
func (s *RunService) Trigger(ctx context.Context, profile string) (*models.DedupeRun, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.RunService.Trigger")
	defer span.End()

	if !s.mu.TryLock() {
		return nil, httperror.NewHTTPError(http.StatusConflict, "a dedupe run is already in progress")
	}

	dr, err := s.createRun(ctx, profile)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	go func() {
		defer s.mu.Unlock()
		// Detach from the request context so the run survives the response.
		if _, err := s.execute(context.Background(), dr); err != nil {
			s.logger.WithError(err).WithFields(map[string]any{
				"run_id": dr.ID,
			}).Error("Dedupe run failed")
		}
	}()

	return dr, nil
}

// Execute runs a dedupe synchronously and returns the result
func (s *RunService) Execute(ctx context.Context, profile string) (*pipeline.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.RunService.Execute")
	defer span.End()

	if !s.mu.TryLock() {
		return nil, httperror.NewHTTPError(http.StatusConflict, "a dedupe run is already in progress")
	}
	defer s.mu.Unlock()

	dr, err := s.createRun(ctx, profile)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, dr)
}

func (s *RunService) createRun(ctx context.Context, profile string) (*models.DedupeRun, error) {
	if profile == "" {
		profile = s.cfg.RuleProfile
	}
	return s.runRepo.Create(ctx, profile)
}

func (s *RunService) execute(ctx context.Context, dr *models.DedupeRun) (*pipeline.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.RunService.execute")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":  dr.ID,
		"profile": dr.Profile,
	})

	if err := s.runRepo.SetStatus(ctx, dr.ID, models.DedupeRunStatusRunning); err != nil {
		return nil, err
	}
	dr.Status = models.DedupeRunStatusRunning

	if s.emitter != nil {
		if err := s.emitter.EmitRunStarted(ctx, dr); err != nil {
			log.WithError(err).Warn("Failed to emit run.started, continuing")
		}
	}

	records, err := s.loadRecords(ctx)
	if err != nil {
		s.fail(ctx, dr, err)
		return nil, err
	}

	log.WithFields(map[string]any{"records": len(records)}).Info("Starting dedupe run")

	pipe, store := s.buildPipeline(dr.Profile)
	result, err := pipe.Run(ctx, dr.ID, records)
	if err != nil {
		s.fail(ctx, dr, err)
		return nil, err
	}

	// Mirror the checkpoint verdicts into Postgres for the audit API.
	// The checkpoint file stays the resume source of truth.
	verdicts := make([]models.Verdict, 0, store.Len())
	for _, v := range store.Verdicts() {
		verdicts = append(verdicts, v)
	}
	if err := s.verdictRepo.UpsertBatch(ctx, verdicts); err != nil {
		log.WithError(err).Warn("Failed to mirror verdicts, continuing")
	}

	if err := s.groupRepo.SaveResults(ctx, dr.ID, result.Outputs); err != nil {
		s.fail(ctx, dr, err)
		return nil, err
	}

	if s.emitter != nil {
		if err := s.emitter.EmitGroupResults(ctx, dr.ID, result.Outputs); err != nil {
			log.WithError(err).Warn("Failed to emit group events, continuing")
		}
	}

	if s.projector != nil {
		if err := s.projector.ProjectListings(ctx, records); err != nil {
			log.WithError(err).Warn("Failed to project listings, continuing")
		} else if err := s.projector.ProjectGroups(ctx, dr.ID, result.Outputs); err != nil {
			log.WithError(err).Warn("Failed to project groups, continuing")
		}
	}

	dr.Status = models.DedupeRunStatusCompleted
	dr.RecordCount = len(records)
	dr.PairCount = result.Pairs
	dr.GroupCount = len(result.Outputs)
	dr.OracleCalls = result.Counters.OracleVerdicts
	dr.FallbackCount = result.Counters.Fallbacks

	if err := s.runRepo.Complete(ctx, dr.ID, dr.Status, dr.RecordCount, dr.PairCount, dr.GroupCount, dr.OracleCalls, dr.FallbackCount, nil); err != nil {
		log.WithError(err).Error("Failed to record run completion")
	}

	if s.emitter != nil {
		if err := s.emitter.EmitRunCompleted(ctx, dr); err != nil {
			log.WithError(err).Warn("Failed to emit run completion event")
		}
	}

	log.WithFields(map[string]any{
		"groups":    dr.GroupCount,
		"pairs":     dr.PairCount,
		"fallbacks": dr.FallbackCount,
	}).Info("Dedupe run completed")

	return result, nil
}

func (s *RunService) fail(ctx context.Context, dr *models.DedupeRun, cause error) {
	dr.Status = models.DedupeRunStatusFailed
	if err := s.runRepo.Complete(ctx, dr.ID, dr.Status, dr.RecordCount, dr.PairCount, dr.GroupCount, dr.OracleCalls, dr.FallbackCount, cause); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to record run failure")
	}
	if s.emitter != nil {
		if err := s.emitter.EmitRunCompleted(ctx, dr); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit run failure event")
		}
	}
}

func (s *RunService) buildPipeline(profile string) (*pipeline.Pipeline, *checkpoint.Store) {
	extractor := features.New(features.DefaultConfig())

	rcfg := rules.DefaultConfig()
	if profile == string(rules.ProfileLenient) {
		rcfg.Profile = rules.ProfileLenient
	}
	classifier := rules.New(rcfg)

	store := checkpoint.New(s.cfg.CheckpointPath, s.cfg.CheckpointEvery, s.logger)
	selector := canonical.New(s.oracle, s.logger)

	pcfg := pipeline.DefaultConfig()
	pcfg.BlockCap = s.cfg.BlockCap
	pcfg.Workers = s.cfg.DedupeWorkerCount
	pcfg.MaxBatchSize = s.cfg.OracleMaxBatchSize

	return pipeline.New(s.logger, extractor, classifier, s.oracle, store, selector, pcfg), store
}

// loadRecords reads listings from the configured JSON file when set,
// otherwise from Postgres.
func (s *RunService) loadRecords(ctx context.Context) ([]*models.RawRecord, error) {
	if s.cfg.DedupeInputFile != "" {
		return LoadRecordsFromFile(s.cfg.DedupeInputFile)
	}
	return s.listingRepo.List(ctx)
}

// LoadRecordsFromFile reads a JSON array of raw records from disk
func LoadRecordsFromFile(path string) ([]*models.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records := make([]*models.RawRecord, 0)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
