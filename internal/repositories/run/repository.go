package run

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository tracks dedupe run lifecycles
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create registers a new pending run
func (r *Repository) Create(ctx context.Context, profile string) (*models.DedupeRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Create")
	defer span.End()

	dr := &models.DedupeRun{
		ID:        uuid.New().String(),
		Status:    models.DedupeRunStatusPending,
		Profile:   profile,
		StartedAt: time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("dedupe_runs")
	sb.Cols("id", "status", "profile", "started_at")
	sb.Values(dr.ID, dr.Status, dr.Profile, dr.StartedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create dedupe run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create run")
	}
	return dr, nil
}

// SetStatus updates a run's status
func (r *Repository) SetStatus(ctx context.Context, id string, status models.DedupeRunStatus) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.SetStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("dedupe_runs")
	ub.Set(ub.Assign("status", status))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update run status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update run")
	}
	return nil
}

// Complete finalizes a run with its counters
func (r *Repository) Complete(ctx context.Context, id string, status models.DedupeRunStatus, recordCount, pairCount, groupCount, oracleCalls, fallbackCount int, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Complete")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("dedupe_runs")
	assignments := []string{
		ub.Assign("status", status),
		ub.Assign("record_count", recordCount),
		ub.Assign("pair_count", pairCount),
		ub.Assign("group_count", groupCount),
		ub.Assign("oracle_calls", oracleCalls),
		ub.Assign("fallback_count", fallbackCount),
		ub.Assign("completed_at", time.Now().UTC()),
	}
	if runErr != nil {
		assignments = append(assignments, ub.Assign("error", runErr.Error()))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to complete run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete run")
	}
	return nil
}

// Get retrieves a run by id
func (r *Repository) Get(ctx context.Context, id string) (*models.DedupeRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "profile", "record_count", "pair_count", "group_count", "oracle_calls", "fallback_count", "error", "started_at", "completed_at")
	sb.From("dedupe_runs")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var dr models.DedupeRun
	if err := r.db.GetContext(ctx, &dr, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "run not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}
	return &dr, nil
}

// List returns recent runs, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]models.DedupeRun, error) {
	ctx, span := tracing.StartSpan(ctx, "run.Repository.List")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "profile", "record_count", "pair_count", "group_count", "oracle_calls", "fallback_count", "error", "started_at", "completed_at")
	sb.From("dedupe_runs")
	sb.OrderBy("started_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	runs := make([]models.DedupeRun, 0)
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}
	return runs, nil
}
