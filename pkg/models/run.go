package models

import "time"

// DedupeRunStatus tracks the lifecycle of a pipeline run.
type DedupeRunStatus string

const (
	DedupeRunStatusPending   DedupeRunStatus = "pending"
	DedupeRunStatusRunning   DedupeRunStatus = "running"
	DedupeRunStatusCompleted DedupeRunStatus = "completed"
	DedupeRunStatusFailed    DedupeRunStatus = "failed"
	DedupeRunStatusCanceled  DedupeRunStatus = "canceled"
)

// DedupeRun records one execution of the dedupe pipeline.
type DedupeRun struct {
	ID            string          `json:"id" db:"id"`
	Status        DedupeRunStatus `json:"status" db:"status"`
	Profile       string          `json:"profile" db:"profile"`
	RecordCount   int             `json:"record_count" db:"record_count"`
	PairCount     int             `json:"pair_count" db:"pair_count"`
	GroupCount    int             `json:"group_count" db:"group_count"`
	OracleCalls   int             `json:"oracle_calls" db:"oracle_calls"`
	FallbackCount int             `json:"fallback_count" db:"fallback_count"`
	Error         *string         `json:"error,omitempty" db:"error"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// CreateDedupeRunRequest triggers a new run over the current listings.
type CreateDedupeRunRequest struct {
	Profile string `json:"profile,omitempty" validate:"omitempty,oneof=strict lenient"`
}
