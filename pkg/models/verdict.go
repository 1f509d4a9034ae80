package models

import "time"

// VerdictOutcome is the recorded decision for a candidate pair.
type VerdictOutcome string

const (
	VerdictMatch   VerdictOutcome = "MATCH"
	VerdictNoMatch VerdictOutcome = "NO_MATCH"
)

// VerdictSource records which component produced a verdict.
type VerdictSource string

const (
	VerdictSourceRule       VerdictSource = "RULE"
	VerdictSourceOracle     VerdictSource = "ORACLE"
	VerdictSourceIdentifier VerdictSource = "IDENTIFIER"
)

// Verdict is the final decision for a pair key. Once written it is
// never recomputed or overwritten by a later run.
type Verdict struct {
	PairKey   string         `json:"pair_key" db:"pair_key"`
	Outcome   VerdictOutcome `json:"outcome" db:"outcome"`
	Reason    string         `json:"reason" db:"reason"`
	Source    VerdictSource  `json:"source" db:"source"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// IsMatch reports whether the verdict links its pair.
func (v Verdict) IsMatch() bool {
	return v.Outcome == VerdictMatch
}
