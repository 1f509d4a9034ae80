package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/models"
)

// classifyParallel fans pairs out to workers. Workers share only a
// lock-guarded progress counter and a pending-verdict buffer that is
// flushed as a batch write; verdict application is commutative so
// scheduling order does not affect the final clustering.
func (p *Pipeline) classifyParallel(ctx context.Context, pairs []models.CandidatePair, byID map[int64]*models.RawRecord, profiles map[int64]models.FeatureProfile) error {
	work := make([]models.CandidatePair, 0, len(pairs))
	for _, pair := range pairs {
		if _, resolved := p.store.Get(pair.Key()); !resolved {
			work = append(work, pair)
		}
	}
	if len(work) == 0 {
		return nil
	}

	var (
		mu        sync.Mutex // guards pending and the progress counters
		flushMu   sync.Mutex // serializes checkpoint writes; the store is not safe for concurrent use
		pending   []models.Verdict
		fallbacks int
		processed int
	)

	flushPending := func() error {
		flushMu.Lock()
		defer flushMu.Unlock()

		mu.Lock()
		batch := pending
		pending = nil
		mu.Unlock()
		if len(batch) == 0 {
			return nil
		}
		return p.store.PutAll(batch)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan models.CandidatePair)

	g.Go(func() error {
		defer close(jobs)
		for _, pair := range work {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- pair:
			}
		}
		return nil
	})

	for w := 0; w < p.cfg.Workers; w++ {
		g.Go(func() error {
			for pair := range jobs {
				verdict, fallback := p.resolvePair(gctx, pair, byID, profiles)

				mu.Lock()
				pending = append(pending, verdict)
				if fallback {
					fallbacks++
				}
				processed++
				shouldFlush := len(pending) >= checkpointBatchSize
				mu.Unlock()

				if shouldFlush {
					if err := flushPending(); err != nil {
						p.logger.WithContext(gctx).WithError(err).Warn("Failed to persist verdict batch")
					}
				}
			}
			return nil
		})
	}

	err := g.Wait()

	if ferr := flushPending(); ferr != nil {
		p.logger.WithContext(ctx).WithError(ferr).Warn("Failed to persist final verdict batch")
	}
	for i := 0; i < fallbacks; i++ {
		p.store.CountFallback()
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"workers":   p.cfg.Workers,
		"processed": processed,
	}).Info("Parallel classification finished")
	return err
}

// checkpointBatchSize bounds the pending-updates buffer across workers.
const checkpointBatchSize = 50
