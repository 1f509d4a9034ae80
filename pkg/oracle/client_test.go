package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// stubChat replays scripted responses and counts calls.
type stubChat struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubChat) Complete(_ context.Context, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.CallsPerSec = 10000
	return cfg
}

func rec(id int64, name string) *models.RawRecord {
	return &models.RawRecord{ID: id, Name: name, RetailerID: 1}
}

func TestArbitratePairMatch(t *testing.T) {
	chat := &stubChat{responses: []string{`{"is_core_product_match": true, "match_reason": "same product"}`}}
	client := NewWithChat(chat, fastConfig(), testLogger())

	outcome := client.ArbitratePair(context.Background(), rec(1, "Shampoo X"), rec(2, "Shampoo X 2024"))

	assert.False(t, outcome.Fallback())
	assert.Equal(t, models.VerdictMatch, outcome.Verdict.Outcome)
	assert.Equal(t, "1-2", outcome.Verdict.PairKey)
	assert.Equal(t, models.VerdictSourceOracle, outcome.Verdict.Source)
	assert.Equal(t, 1, chat.calls)
}

func TestArbitratePairStripsMarkdownFences(t *testing.T) {
	chat := &stubChat{responses: []string{
		"```json\n{\"is_core_product_match\": false, \"match_reason\": \"different sizes\"}\n```",
	}}
	client := NewWithChat(chat, fastConfig(), testLogger())

	outcome := client.ArbitratePair(context.Background(), rec(1, "a"), rec(2, "b"))

	assert.False(t, outcome.Fallback())
	assert.Equal(t, models.VerdictNoMatch, outcome.Verdict.Outcome)
	assert.Equal(t, "different sizes", outcome.Verdict.Reason)
}

func TestArbitratePairRetriesThenSucceeds(t *testing.T) {
	chat := &stubChat{
		responses: []string{"", "not json", `{"is_core_product_match": true, "match_reason": "ok"}`},
		errs:      []error{errors.New("connection reset"), nil, nil},
	}
	client := NewWithChat(chat, fastConfig(), testLogger())

	outcome := client.ArbitratePair(context.Background(), rec(1, "a"), rec(2, "b"))

	assert.False(t, outcome.Fallback())
	assert.Equal(t, 3, chat.calls)
}

func TestArbitratePairFallbackAfterRetries(t *testing.T) {
	chat := &stubChat{
		responses: []string{""},
		errs:      []error{errors.New("rate limited")},
	}
	client := NewWithChat(chat, fastConfig(), testLogger())

	outcome := client.ArbitratePair(context.Background(), rec(5, "a"), rec(6, "b"))

	assert.True(t, outcome.Fallback())
	assert.Equal(t, ErrorKindTransient, outcome.Kind)
	assert.Equal(t, models.VerdictNoMatch, outcome.Verdict.Outcome)
	assert.True(t, len(outcome.Verdict.Reason) > 0)
	assert.Contains(t, outcome.Verdict.Reason, "fallback")
	assert.Equal(t, "5-6", outcome.Verdict.PairKey)
	assert.Equal(t, 3, chat.calls)
}

func TestArbitratePairMalformedBodyIsParseFallback(t *testing.T) {
	chat := &stubChat{responses: []string{"I cannot answer that"}}
	client := NewWithChat(chat, fastConfig(), testLogger())

	outcome := client.ArbitratePair(context.Background(), rec(1, "a"), rec(2, "b"))

	assert.True(t, outcome.Fallback())
	assert.Equal(t, ErrorKindParse, outcome.Kind)
	assert.Equal(t, 3, chat.calls)
}

func TestArbitrateBatchDropsUnknownIDs(t *testing.T) {
	chat := &stubChat{responses: []string{
		`{"matches": [
			{"product_ids": [1, 2], "canonical_name": "Shampoo X", "confidence": "HIGH"},
			{"product_ids": [1, 99], "canonical_name": "Ghost", "confidence": "LOW"},
			{"product_ids": [3], "canonical_name": "Single", "confidence": "HIGH"}
		], "unmatched": [3]}`,
	}}
	client := NewWithChat(chat, fastConfig(), testLogger())

	matches, err := client.ArbitrateBatch(context.Background(), []*models.RawRecord{
		rec(1, "Shampoo X"), rec(2, "Shampoo X 400"), rec(3, "Soap"),
	})

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []int64{1, 2}, matches[0].ProductIDs)
}

func TestPickCanonical(t *testing.T) {
	chat := &stubChat{responses: []string{`{"canonical_name": "Shampoo X 400ml", "reason": "most complete"}`}}
	client := NewWithChat(chat, fastConfig(), testLogger())

	name, err := client.PickCanonical(context.Background(), []string{"Shampoo X", "Shampoo X 400ml"})

	require.NoError(t, err)
	assert.Equal(t, "Shampoo X 400ml", name)
}

func TestGroupForBatching(t *testing.T) {
	brand := func(b string) *string { return &b }

	t.Run("grouped by brand", func(t *testing.T) {
		records := []*models.RawRecord{
			{ID: 1, Name: "Shampoo", Brand: brand("Acme")},
			{ID: 2, Name: "Shampoo 400", Brand: brand("acme")},
			{ID: 3, Name: "Soap", Brand: brand("Other")},
		}

		batches := GroupForBatching(records, 150)

		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 2)
	})

	t.Run("oversized brand subdivided by keyword", func(t *testing.T) {
		records := make([]*models.RawRecord, 0, 8)
		for i := int64(1); i <= 4; i++ {
			records = append(records, &models.RawRecord{ID: i, Name: "Shampoo variant", Brand: brand("Acme")})
		}
		for i := int64(5); i <= 8; i++ {
			records = append(records, &models.RawRecord{ID: i, Name: "Soap variant", Brand: brand("Acme")})
		}

		batches := GroupForBatching(records, 4)

		require.Len(t, batches, 2)
		for _, batch := range batches {
			assert.LessOrEqual(t, len(batch), 4)
		}
	})
}
