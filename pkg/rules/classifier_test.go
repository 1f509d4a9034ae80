package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/features"
	"github.com/Ramsey-B/clover/pkg/models"
)

func record(id int64, name string) *models.RawRecord {
	return &models.RawRecord{ID: id, Name: name, RetailerID: 1}
}

func classify(t *testing.T, cfg Config, nameA, nameB string) Result {
	t.Helper()
	e := features.New(features.DefaultConfig())
	a, b := record(1, nameA), record(2, nameB)
	return New(cfg).Classify(a, b, e.Extract(a.Name), e.Extract(b.Name))
}

func TestJaccard(t *testing.T) {
	set := func(tokens ...string) map[string]struct{} {
		s := make(map[string]struct{})
		for _, tok := range tokens {
			s[tok] = struct{}{}
		}
		return s
	}

	t.Run("symmetric", func(t *testing.T) {
		a, b := set("x", "y", "z"), set("y", "z", "w")
		assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
		assert.InDelta(t, 0.5, Jaccard(a, b), 1e-9)
	})

	t.Run("both empty is one", func(t *testing.T) {
		assert.Equal(t, 1.0, Jaccard(set(), set()))
	})

	t.Run("one empty is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Jaccard(set("x"), set()))
		assert.Equal(t, 0.0, Jaccard(set(), set("x")))
	})
}

func TestPackSizeMismatch(t *testing.T) {
	// Same tokens, different container size.
	result := classify(t, DefaultConfig(), "Shampoo X 400ml", "Shampoo X 200ml")

	assert.Equal(t, DecisionNoMatch, result.Decision)
	assert.Contains(t, result.Reason, "pack size differs")
}

func TestConflictPairBeatsTokenOverlap(t *testing.T) {
	result := classify(t, DefaultConfig(), "Night Cream Brand Y", "Day Cream Brand Y")

	assert.Equal(t, DecisionNoMatch, result.Decision)
	assert.Contains(t, result.Reason, "conflicting attributes")
}

func TestAuxiliaryCodeMismatch(t *testing.T) {
	result := classify(t, DefaultConfig(), "Sunscreen SPF 50", "Sunscreen SPF 30")

	assert.Equal(t, DecisionNoMatch, result.Decision)
	assert.Equal(t, "auxiliary codes differ", result.Reason)
}

func TestDealBreakerSetMismatch(t *testing.T) {
	result := classify(t, DefaultConfig(), "Yogurt Coconut Organic", "Yogurt Coconut")

	assert.Equal(t, DecisionNoMatch, result.Decision)
	assert.Equal(t, "deal breaker tokens differ", result.Reason)
}

func TestLowSimilarityIsNoMatch(t *testing.T) {
	result := classify(t, DefaultConfig(), "Shampoo Coconut Moisture", "Shampoo Almond Repair Blend")

	assert.Equal(t, DecisionNoMatch, result.Decision)
	assert.Contains(t, result.Reason, "below threshold")
}

func TestStrictNeverAutoMatches(t *testing.T) {
	result := classify(t, DefaultConfig(), "Olive Oil Extra Virgin Spanish", "Olive Oil Extra Virgin")

	assert.Equal(t, DecisionUncertain, result.Decision)
}

func TestLenientSubsetAutoMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile = ProfileLenient

	result := classify(t, cfg, "Olive Oil Extra Virgin Spanish", "Olive Oil Extra Virgin")

	assert.Equal(t, DecisionMatch, result.Decision)
	assert.Equal(t, models.VerdictSourceRule, result.Source)
	assert.Contains(t, result.Reason, "token subset")
}

func TestBarcodeBypassesRules(t *testing.T) {
	e := features.New(features.DefaultConfig())
	barcode := "7290000123456"
	a := &models.RawRecord{ID: 1, Name: "Shampoo Day 400ml", RetailerID: 1, Barcode: &barcode}
	b := &models.RawRecord{ID: 2, Name: "Conditioner Night 200ml", RetailerID: 2, Barcode: &barcode}

	result := New(DefaultConfig()).Classify(a, b, e.Extract(a.Name), e.Extract(b.Name))

	assert.Equal(t, DecisionMatch, result.Decision)
	assert.Equal(t, models.VerdictSourceIdentifier, result.Source)
}
