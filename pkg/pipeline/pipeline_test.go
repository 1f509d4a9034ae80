package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/checkpoint"
	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/oracle"
	"github.com/Ramsey-B/clover/pkg/rules"
)

const runID = "c2f3b9aa-55e1-4ce1-8d0a-000000000001"

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// stubArbiter decides by a scripted map and counts calls.
type stubArbiter struct {
	mu       sync.Mutex
	matches  map[string]bool
	fail     bool
	calls    int
	canCalls int
}

func (s *stubArbiter) ArbitratePair(_ context.Context, a, b *models.RawRecord) oracle.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	pair := models.NewCandidatePair(a.ID, b.ID)
	if s.fail {
		return oracle.Outcome{
			Verdict: models.Verdict{
				PairKey: pair.Key(),
				Outcome: models.VerdictNoMatch,
				Reason:  "fallback: transient error after 3 attempts",
				Source:  models.VerdictSourceOracle,
			},
			Kind: oracle.ErrorKindTransient,
			Err:  errors.New("unavailable"),
		}
	}

	outcome := models.VerdictNoMatch
	if s.matches[pair.Key()] {
		outcome = models.VerdictMatch
	}
	return oracle.Outcome{Verdict: models.Verdict{
		PairKey: pair.Key(),
		Outcome: outcome,
		Reason:  "scripted",
		Source:  models.VerdictSourceOracle,
	}}
}

func (s *stubArbiter) ArbitrateBatch(_ context.Context, _ []*models.RawRecord) ([]oracle.BatchMatch, error) {
	return nil, errors.New("batch not scripted")
}

func (s *stubArbiter) PickCanonical(_ context.Context, names []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canCalls++
	return names[len(names)-1], nil
}

func newPipeline(t *testing.T, arbiter *stubArbiter, cfg Config, checkpointPath string) *Pipeline {
	t.Helper()
	logger := testLogger()
	store := checkpoint.New(checkpointPath, 5, logger)
	return New(
		logger,
		features.New(features.DefaultConfig()),
		rules.New(rules.DefaultConfig()),
		arbiter,
		store,
		canonical.New(arbiter, logger),
		cfg,
	)
}

func listings(names map[int64]string) []*models.RawRecord {
	records := make([]*models.RawRecord, 0, len(names))
	for id, name := range names {
		records = append(records, &models.RawRecord{ID: id, Name: name, RetailerID: id % 3})
	}
	return records
}

func TestRuleDecisionsSkipTheOracle(t *testing.T) {
	arbiter := &stubArbiter{}
	p := newPipeline(t, arbiter, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(map[int64]string{
		1: "Shampoo X 400ml",
		2: "Shampoo X 200ml",
	}))

	require.NoError(t, err)
	assert.Equal(t, 0, arbiter.calls, "pack size mismatch must not reach the oracle")
	assert.Len(t, result.Groups, 2)
}

func TestUncertainPairsAreArbitrated(t *testing.T) {
	arbiter := &stubArbiter{matches: map[string]bool{"1-2": true}}
	p := newPipeline(t, arbiter, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(map[int64]string{
		1: "Olive Oil Extra Virgin Spanish",
		2: "Olive Oil Extra Virgin",
	}))

	require.NoError(t, err)
	assert.Equal(t, 1, arbiter.calls)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, []int64{1, 2}, result.Groups[0].MemberIDs)
}

func TestAskOnceAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	records := listings(map[int64]string{
		1: "Olive Oil Extra Virgin Spanish",
		2: "Olive Oil Extra Virgin",
	})

	first := &stubArbiter{matches: map[string]bool{"1-2": true}}
	firstResult, err := newPipeline(t, first, DefaultConfig(), path).Run(context.Background(), runID, records)
	require.NoError(t, err)
	require.Equal(t, 1, first.calls)

	second := &stubArbiter{matches: map[string]bool{"1-2": true}}
	secondResult, err := newPipeline(t, second, DefaultConfig(), path).Run(context.Background(), runID, records)
	require.NoError(t, err)

	assert.Equal(t, 0, second.calls, "populated checkpoint must not trigger oracle calls")
	assert.Equal(t, firstResult.Groups, secondResult.Groups)
}

func TestTransitiveClosureWithoutDirectEdge(t *testing.T) {
	// (1,2) and (2,3) matched by the oracle, (1,3) resolved NO_MATCH;
	// clustering still joins all three.
	arbiter := &stubArbiter{matches: map[string]bool{"1-2": true, "2-3": true}}
	p := newPipeline(t, arbiter, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(map[int64]string{
		1: "Tomato Paste Classic Rich",
		2: "Tomato Paste Classic",
		3: "Tomato Paste Classic Premium",
	}))

	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, []int64{1, 2, 3}, result.Groups[0].MemberIDs)
}

func TestOracleFailureRecordsFallbackVerdict(t *testing.T) {
	arbiter := &stubArbiter{fail: true}
	p := newPipeline(t, arbiter, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(map[int64]string{
		5: "Olive Oil Extra Virgin Spanish",
		6: "Olive Oil Extra Virgin",
	}))

	require.NoError(t, err, "fallbacks must not propagate out of the batch")
	assert.Len(t, result.Groups, 2)
	assert.Equal(t, 1, result.Counters.Fallbacks)

	// The verdict itself carries the diagnostic prefix.
	found := false
	for key, v := range p.store.Verdicts() {
		if key == "5-6" {
			found = true
			assert.Equal(t, models.VerdictNoMatch, v.Outcome)
			assert.Contains(t, v.Reason, "fallback")
		}
	}
	assert.True(t, found)
}

func TestParallelMatchesSequentialGroups(t *testing.T) {
	records := listings(map[int64]string{
		1: "Olive Oil Extra Virgin Spanish",
		2: "Olive Oil Extra Virgin",
		3: "Tomato Paste Classic Rich",
		4: "Tomato Paste Classic",
		5: "Sunscreen SPF 50",
	})
	matches := map[string]bool{"1-2": true, "3-4": true}

	seq, err := newPipeline(t, &stubArbiter{matches: matches}, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json")).
		Run(context.Background(), runID, records)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 4
	par, err := newPipeline(t, &stubArbiter{matches: matches}, cfg, filepath.Join(t.TempDir(), "cp.json")).
		Run(context.Background(), runID, records)
	require.NoError(t, err)

	assert.Equal(t, seq.Groups, par.Groups)
}

func TestParallelFlushKeepsEveryVerdict(t *testing.T) {
	// 40 listings sharing seven tokens produce 780 uncertain pairs, far
	// past the batch flush threshold, so several workers flush at once.
	// Run with -race: checkpoint writes must stay serialized.
	names := make(map[int64]string, 40)
	for i := int64(0); i < 40; i++ {
		names[i+1] = fmt.Sprintf("olive oil extra virgin cold pressed imported v%c%c", 'a'+i/26, 'a'+i%26)
	}

	arbiter := &stubArbiter{}
	cfg := DefaultConfig()
	cfg.Workers = 8
	p := newPipeline(t, arbiter, cfg, filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(names))
	require.NoError(t, err)

	assert.Equal(t, 780, arbiter.calls)
	assert.Len(t, p.store.Verdicts(), 780, "no verdict may be lost across concurrent flushes")
	assert.Len(t, result.Groups, 40)
}

func TestSingletonCanonicalWithoutOracle(t *testing.T) {
	arbiter := &stubArbiter{}
	p := newPipeline(t, arbiter, DefaultConfig(), filepath.Join(t.TempDir(), "cp.json"))

	result, err := p.Run(context.Background(), runID, listings(map[int64]string{
		1: "Unique Product Alpha",
	}))

	require.NoError(t, err)
	require.Len(t, result.Choices, 1)
	assert.Equal(t, "single item, automatically canonical", result.Choices[0].Reason)
	assert.Equal(t, 0, arbiter.canCalls)
}
