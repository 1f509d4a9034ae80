package models

import (
	"fmt"
	"strconv"
	"strings"
)

// CandidatePair is an unordered pair of record ids. (a,b) and (b,a)
// canonicalize to the same value.
type CandidatePair struct {
	LowID  int64 `json:"low_id"`
	HighID int64 `json:"high_id"`
}

// NewCandidatePair canonicalizes a pair of distinct ids as (min, max).
func NewCandidatePair(a, b int64) CandidatePair {
	if a > b {
		a, b = b, a
	}
	return CandidatePair{LowID: a, HighID: b}
}

// Key returns the stable checkpoint key for the pair.
func (p CandidatePair) Key() string {
	return fmt.Sprintf("%d-%d", p.LowID, p.HighID)
}

// ParsePairKey parses a "{id1}-{id2}" checkpoint key back into its ids.
func ParsePairKey(key string) (int64, int64, bool) {
	left, right, found := strings.Cut(key, "-")
	if !found {
		return 0, 0, false
	}
	a, errA := strconv.ParseInt(left, 10, 64)
	b, errB := strconv.ParseInt(right, 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}
