package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func profileWith(tokens ...string) models.FeatureProfile {
	p := models.FeatureProfile{Tokens: make(map[string]struct{})}
	for _, t := range tokens {
		p.Tokens[t] = struct{}{}
	}
	return p
}

func TestPairsFromSharedTokens(t *testing.T) {
	profiles := map[int64]models.FeatureProfile{
		1: profileWith("shampoo", "coconut"),
		2: profileWith("shampoo", "lavender"),
		3: profileWith("soap", "lavender"),
	}

	pairs := Build(profiles, 150).Pairs()

	assert.Equal(t, []models.CandidatePair{
		{LowID: 1, HighID: 2},
		{LowID: 2, HighID: 3},
	}, pairs)
}

func TestSingleHolderProducesNoPairs(t *testing.T) {
	profiles := map[int64]models.FeatureProfile{
		1: profileWith("unique"),
		2: profileWith("other"),
	}

	pairs := Build(profiles, 150).Pairs()

	assert.Empty(t, pairs)
}

func TestZeroSharedVocabularyNeverPairs(t *testing.T) {
	// Two listings for the same product in different languages share no
	// surface tokens, so no candidate pair is generated. Known recall
	// limitation of token blocking.
	profiles := map[int64]models.FeatureProfile{
		1: profileWith("bar", "soap", "lavender"),
		2: profileWith("savon", "lavande"),
	}

	pairs := Build(profiles, 150).Pairs()

	assert.Empty(t, pairs)
}

func TestBlockCapSkipsCommonTokens(t *testing.T) {
	profiles := make(map[int64]models.FeatureProfile)
	for id := int64(1); id <= 10; id++ {
		profiles[id] = profileWith("common")
	}

	pairs := Build(profiles, 5).Pairs()

	assert.Empty(t, pairs)
}

func TestPairsDeduplicatedAcrossTokens(t *testing.T) {
	profiles := map[int64]models.FeatureProfile{
		1: profileWith("olive", "oil"),
		2: profileWith("olive", "oil"),
	}

	pairs := Build(profiles, 150).Pairs()

	require.Len(t, pairs, 1)
	assert.Equal(t, models.CandidatePair{LowID: 1, HighID: 2}, pairs[0])
}

func TestPairCanonicalization(t *testing.T) {
	assert.Equal(t, models.NewCandidatePair(7, 3), models.NewCandidatePair(3, 7))
	assert.Equal(t, "3-7", models.NewCandidatePair(7, 3).Key())
}
