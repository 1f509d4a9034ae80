// Package rules implements the deterministic pair classifier
package rules

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Profile selects which rule ladder the classifier runs.
type Profile string

const (
	// ProfileStrict never emits an automatic MATCH; every surviving pair
	// goes to arbitration.
	ProfileStrict Profile = "strict"
	// ProfileLenient is the legacy ladder: one token set being a subset
	// of the other with high enough similarity auto-MATCHes.
	ProfileLenient Profile = "lenient"
)

// Decision is a classifier outcome for a candidate pair.
type Decision string

const (
	DecisionMatch     Decision = "MATCH"
	DecisionNoMatch   Decision = "NO_MATCH"
	DecisionUncertain Decision = "UNCERTAIN"
)

// Result carries the decision and its provenance.
type Result struct {
	Decision Decision
	Reason   string
	Source   models.VerdictSource
}

// Config contains classifier thresholds. Construct once, never mutate.
type Config struct {
	Profile             Profile
	JaccardFloor        float64     // strict floor below which pairs are NO_MATCH
	LenientJaccardFloor float64     // lenient floor
	SubsetThreshold     float64     // lenient auto-MATCH similarity
	ConflictPairs       [][2]string // mutually exclusive attribute tokens
}

// DefaultConfig returns the default classifier configuration
func DefaultConfig() Config {
	return Config{
		Profile:             ProfileStrict,
		JaccardFloor:        0.75,
		LenientJaccardFloor: 0.72,
		SubsetThreshold:     0.80,
		ConflictPairs: [][2]string{
			{"shampoo", "conditioner"},
			{"day", "night"},
			{"men", "women"},
			{"שמפו", "מרכך"},
			{"יום", "לילה"},
			{"גברים", "נשים"},
		},
	}
}

// Classifier resolves candidate pairs to MATCH, NO_MATCH or UNCERTAIN.
type Classifier struct {
	cfg Config
}

// New creates a classifier with the given configuration
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify evaluates the rule ladder in strict priority order; the
// first decisive rule wins.
func (c *Classifier) Classify(a, b *models.RawRecord, pa, pb models.FeatureProfile) Result {
	// Exact external identifier bypasses every heuristic.
	if a.Barcode != nil && b.Barcode != nil && *a.Barcode != "" && *a.Barcode == *b.Barcode {
		return Result{
			Decision: DecisionMatch,
			Reason:   "identical barcode",
			Source:   models.VerdictSourceIdentifier,
		}
	}

	// Rule 1: differing variant/strength codes.
	if (len(pa.AuxiliaryCodes) > 0 || len(pb.AuxiliaryCodes) > 0) && !intCodesEqual(pa.AuxiliaryCodes, pb.AuxiliaryCodes) {
		return noMatch("auxiliary codes differ")
	}

	// Rule 2: both resolved a pack size and they disagree.
	if pa.HasPack() && pb.HasPack() {
		if pa.PackUnit != pb.PackUnit || *pa.PackAmount != *pb.PackAmount {
			return noMatch(fmt.Sprintf("pack size differs: %g%s vs %g%s", *pa.PackAmount, pa.PackUnit, *pb.PackAmount, pb.PackUnit))
		}
	}

	// Rule 3: mutually exclusive attributes on opposite sides.
	for _, pair := range c.cfg.ConflictPairs {
		x, y := pair[0], pair[1]
		if (hasToken(pa.DealBreakerTokens, x) && hasToken(pb.DealBreakerTokens, y)) ||
			(hasToken(pa.DealBreakerTokens, y) && hasToken(pb.DealBreakerTokens, x)) {
			return noMatch(fmt.Sprintf("conflicting attributes: %s vs %s", x, y))
		}
	}

	// Rule 4: deal-breaker vocabularies must agree exactly.
	if !setsEqual(pa.DealBreakerTokens, pb.DealBreakerTokens) {
		return noMatch("deal breaker tokens differ")
	}

	// Rule 5: token overlap floor.
	sim := Jaccard(pa.Tokens, pb.Tokens)
	floor := c.cfg.JaccardFloor
	if c.cfg.Profile == ProfileLenient {
		floor = c.cfg.LenientJaccardFloor
	}
	if sim < floor {
		return noMatch(fmt.Sprintf("similarity %.2f below threshold %.2f", sim, floor))
	}

	// Lenient legacy ladder: subset containment with high similarity is
	// decisive on its own.
	if c.cfg.Profile == ProfileLenient && sim >= c.cfg.SubsetThreshold &&
		(isSubset(pa.Tokens, pb.Tokens) || isSubset(pb.Tokens, pa.Tokens)) {
		return Result{
			Decision: DecisionMatch,
			Reason:   fmt.Sprintf("token subset with similarity %.2f", sim),
			Source:   models.VerdictSourceRule,
		}
	}

	return Result{
		Decision: DecisionUncertain,
		Reason:   fmt.Sprintf("similarity %.2f, needs arbitration", sim),
		Source:   models.VerdictSourceRule,
	}
}

func noMatch(reason string) Result {
	return Result{
		Decision: DecisionNoMatch,
		Reason:   reason,
		Source:   models.VerdictSourceRule,
	}
}

func hasToken(set map[string]struct{}, token string) bool {
	_, ok := set[token]
	return ok
}
