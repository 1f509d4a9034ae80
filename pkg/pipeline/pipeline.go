// Package pipeline orchestrates the dedupe run end to end
package pipeline

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/blocking"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/checkpoint"
	"github.com/Ramsey-B/clover/pkg/cluster"
	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/oracle"
	"github.com/Ramsey-B/clover/pkg/rules"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Arbiter is the oracle surface the pipeline needs.
type Arbiter interface {
	ArbitratePair(ctx context.Context, a, b *models.RawRecord) oracle.Outcome
	ArbitrateBatch(ctx context.Context, records []*models.RawRecord) ([]oracle.BatchMatch, error)
}

// Config contains pipeline settings. Construct once, never mutate.
type Config struct {
	BlockCap            int
	Workers             int
	UseBatchArbitration bool
	MaxBatchSize        int
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		BlockCap:            blocking.DefaultBlockCap,
		Workers:             1,
		UseBatchArbitration: false,
		MaxBatchSize:        150,
	}
}

// Result is the output of one pipeline run.
type Result struct {
	Groups   []models.DuplicateGroup
	Choices  []models.CanonicalChoice
	Outputs  []models.GroupResult
	Pairs    int
	Counters models.CheckpointCounters
}

// Pipeline wires the extractor, blocker, classifier, oracle, store and
// selector into one run.
type Pipeline struct {
	logger     ectologger.Logger
	extractor  *features.Extractor
	classifier *rules.Classifier
	arbiter    Arbiter
	store      *checkpoint.Store
	selector   *canonical.Selector
	cfg        Config
}

// New creates a pipeline
func New(
	logger ectologger.Logger,
	extractor *features.Extractor,
	classifier *rules.Classifier,
	arbiter Arbiter,
	store *checkpoint.Store,
	selector *canonical.Selector,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		extractor:  extractor,
		classifier: classifier,
		arbiter:    arbiter,
		store:      store,
		selector:   selector,
		cfg:        cfg,
	}
}

// Run executes the full dedupe over the given records. An interrupt at
// any point flushes the checkpoint before returning; already-keyed
// pairs are never re-arbitrated.
func (p *Pipeline) Run(ctx context.Context, runID string, records []*models.RawRecord) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":  runID,
		"records": len(records),
	})

	if err := p.store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	fp := fingerprint.Records(records)
	if prev := p.store.InputFingerprint(); prev != "" && fingerprint.HasChanged(prev, fp) {
		log.Warn("Input set changed since last checkpoint, keeping existing verdicts")
	}
	p.store.SetInputFingerprint(fp)

	byID := make(map[int64]*models.RawRecord, len(records))
	profiles := make(map[int64]models.FeatureProfile, len(records))
	for _, r := range records {
		byID[r.ID] = r
		profiles[r.ID] = p.extractor.Extract(r.Name)
	}

	pairs := blocking.Build(profiles, p.cfg.BlockCap).Pairs()
	log.WithFields(map[string]any{"pairs": len(pairs)}).Info("Generated candidate pairs")

	if p.cfg.UseBatchArbitration {
		p.runBatchArbitration(ctx, records, pairs)
	}

	var err error
	if p.cfg.Workers > 1 {
		err = p.classifyParallel(ctx, pairs, byID, profiles)
	} else {
		err = p.classifySequential(ctx, pairs, byID, profiles)
	}

	// Flush unconditionally, cancellation included. Partially processed
	// batches are safe to re-run because of ask-once lookup.
	if ferr := p.store.Flush(); ferr != nil {
		log.WithError(ferr).Error("Failed to flush checkpoint")
	}
	if err != nil {
		return nil, err
	}

	result := p.finalize(ctx, runID, records, byID)
	result.Pairs = len(pairs)

	log.WithFields(map[string]any{
		"groups":       len(result.Groups),
		"oracle_calls": result.Counters.OracleVerdicts,
		"fallbacks":    result.Counters.Fallbacks,
	}).Info("Dedupe run completed")
	return result, nil
}

// classifySequential processes pairs one at a time in stable order.
func (p *Pipeline) classifySequential(ctx context.Context, pairs []models.CandidatePair, byID map[int64]*models.RawRecord, profiles map[int64]models.FeatureProfile) error {
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, resolved := p.store.Get(pair.Key()); resolved {
			continue
		}

		verdict, fallback := p.resolvePair(ctx, pair, byID, profiles)
		if fallback {
			p.store.CountFallback()
		}
		if err := p.store.Put(verdict); err != nil {
			// Checkpoint write failures are non-fatal to classification;
			// the in-memory verdict survives for the next flush attempt.
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to persist verdict")
		}
	}
	return nil
}

// resolvePair classifies one pair, delegating UNCERTAIN to the oracle.
func (p *Pipeline) resolvePair(ctx context.Context, pair models.CandidatePair, byID map[int64]*models.RawRecord, profiles map[int64]models.FeatureProfile) (models.Verdict, bool) {
	a, b := byID[pair.LowID], byID[pair.HighID]
	result := p.classifier.Classify(a, b, profiles[pair.LowID], profiles[pair.HighID])

	switch result.Decision {
	case rules.DecisionMatch:
		return models.Verdict{
			PairKey: pair.Key(),
			Outcome: models.VerdictMatch,
			Reason:  result.Reason,
			Source:  result.Source,
		}, false
	case rules.DecisionNoMatch:
		return models.Verdict{
			PairKey: pair.Key(),
			Outcome: models.VerdictNoMatch,
			Reason:  result.Reason,
			Source:  result.Source,
		}, false
	default:
		outcome := p.arbiter.ArbitratePair(ctx, a, b)
		return outcome.Verdict, outcome.Fallback()
	}
}

// runBatchArbitration resolves whole brand/keyword batches ahead of the
// pairwise loop. Batch failures are non-fatal; unresolved pairs fall
// through to pairwise arbitration.
func (p *Pipeline) runBatchArbitration(ctx context.Context, records []*models.RawRecord, pairs []models.CandidatePair) {
	candidate := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		candidate[pair.Key()] = struct{}{}
	}

	for _, batch := range oracle.GroupForBatching(records, p.cfg.MaxBatchSize) {
		if allResolved(p.store, batch) {
			continue
		}

		matches, err := p.arbiter.ArbitrateBatch(ctx, batch)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("Batch arbitration failed, deferring to pairwise")
			continue
		}

		verdicts := make([]models.Verdict, 0)
		for _, m := range matches {
			for i := 0; i < len(m.ProductIDs); i++ {
				for j := i + 1; j < len(m.ProductIDs); j++ {
					pair := models.NewCandidatePair(m.ProductIDs[i], m.ProductIDs[j])
					if _, isCandidate := candidate[pair.Key()]; !isCandidate {
						continue
					}
					verdicts = append(verdicts, models.Verdict{
						PairKey: pair.Key(),
						Outcome: models.VerdictMatch,
						Reason:  fmt.Sprintf("batch match (%s confidence)", m.Confidence),
						Source:  models.VerdictSourceOracle,
					})
				}
			}
		}
		if err := p.store.PutAll(verdicts); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to persist batch verdicts")
		}
	}
}

// allResolved reports whether every pair inside the batch is already keyed.
func allResolved(store *checkpoint.Store, batch []*models.RawRecord) bool {
	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			key := models.NewCandidatePair(batch[i].ID, batch[j].ID).Key()
			if _, ok := store.Get(key); !ok {
				return false
			}
		}
	}
	return true
}

// finalize clusters the verdict set and selects canonical names.
func (p *Pipeline) finalize(ctx context.Context, runID string, records []*models.RawRecord, byID map[int64]*models.RawRecord) *Result {
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	graph := cluster.NewGraph(ids)
	graph.AddMatchVerdicts(p.store.Verdicts())
	groups := graph.Components(runID)

	result := &Result{
		Groups:   groups,
		Choices:  make([]models.CanonicalChoice, 0, len(groups)),
		Outputs:  make([]models.GroupResult, 0, len(groups)),
		Counters: p.store.Counters(),
	}

	for _, group := range groups {
		choice := p.selector.Select(ctx, group, byID)
		if !group.Contains(choice.CanonicalRecordID) {
			// Must not happen; the selector only picks members.
			p.logger.WithContext(ctx).WithFields(map[string]any{
				"group_id":  group.GroupID,
				"record_id": choice.CanonicalRecordID,
			}).Error("Canonical record is not a group member, forcing first member")
			choice.CanonicalRecordID = group.MemberIDs[0]
			if r, ok := byID[choice.CanonicalRecordID]; ok {
				choice.CanonicalName = r.Name
			}
			choice.Reason = "fallback: membership invariant violated"
		}

		result.Choices = append(result.Choices, choice)
		result.Outputs = append(result.Outputs, models.GroupResult{
			GroupID:           group.GroupID,
			MemberIDs:         group.MemberIDs,
			CanonicalRecordID: choice.CanonicalRecordID,
			CanonicalName:     choice.CanonicalName,
			Reason:            choice.Reason,
		})
	}
	return result
}
