// Package blocking generates candidate pairs from shared tokens
package blocking

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultBlockCap is the posting-list size above which a token is
// considered non-discriminating and skipped.
const DefaultBlockCap = 150

// Index is an inverted index from token to the record ids holding it.
type Index struct {
	postings map[string][]int64
	blockCap int
}

// New creates an empty index with the given cap. A cap below 2 falls
// back to the default.
func New(blockCap int) *Index {
	if blockCap < 2 {
		blockCap = DefaultBlockCap
	}
	return &Index{
		postings: make(map[string][]int64),
		blockCap: blockCap,
	}
}

// Add registers a record's tokens.
func (ix *Index) Add(id int64, profile models.FeatureProfile) {
	for token := range profile.Tokens {
		ix.postings[token] = append(ix.postings[token], id)
	}
}

// Build indexes a whole id -> profile map.
func Build(profiles map[int64]models.FeatureProfile, blockCap int) *Index {
	ix := New(blockCap)

	ids := make([]int64, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		ix.Add(id, profiles[id])
	}
	return ix
}

// TokenCount returns the number of distinct indexed tokens.
func (ix *Index) TokenCount() int {
	return len(ix.postings)
}

// Pairs emits every pairwise combination of ids for tokens whose
// posting list length is within [2, blockCap], canonicalized and
// deduplicated across tokens. Output order is deterministic.
func (ix *Index) Pairs() []models.CandidatePair {
	seen := make(map[models.CandidatePair]struct{})

	tokens := make([]string, 0, len(ix.postings))
	for token := range ix.postings {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	pairs := make([]models.CandidatePair, 0)
	for _, token := range tokens {
		ids := ix.postings[token]
		if len(ids) < 2 || len(ids) > ix.blockCap {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pair := models.NewCandidatePair(ids[i], ids[j])
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				pairs = append(pairs, pair)
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].LowID != pairs[j].LowID {
			return pairs[i].LowID < pairs[j].LowID
		}
		return pairs[i].HighID < pairs[j].HighID
	})
	return pairs
}
