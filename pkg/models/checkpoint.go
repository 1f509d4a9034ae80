package models

import "time"

// CheckpointCounters are aggregate run statistics stored with the checkpoint.
type CheckpointCounters struct {
	PairsProcessed int `json:"pairs_processed"`
	RuleVerdicts   int `json:"rule_verdicts"`
	OracleVerdicts int `json:"oracle_verdicts"`
	Fallbacks      int `json:"fallbacks"`
}

// Checkpoint is the durable ask-once state of a dedupe run. The verdict
// map is loaded at start and every keyed pair is treated as resolved.
type Checkpoint struct {
	LastProcessedKey string             `json:"last_processed_key"`
	Verdicts         map[string]Verdict `json:"verdicts"`
	InputFingerprint string             `json:"input_fingerprint,omitempty"`
	Counters         CheckpointCounters `json:"counters"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Verdicts: make(map[string]Verdict),
	}
}
