package verdict

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository mirrors checkpoint verdicts to Postgres so the API can
// audit them. The checkpoint file stays the source of truth for resume.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new verdict repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch writes verdicts, keeping the first write for each key.
func (r *Repository) UpsertBatch(ctx context.Context, verdicts []models.Verdict) error {
	ctx, span := tracing.StartSpan(ctx, "verdict.Repository.UpsertBatch")
	defer span.End()

	if len(verdicts) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("verdicts")
	sb.Cols("pair_key", "outcome", "reason", "source", "created_at")
	for _, v := range verdicts {
		createdAt := v.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		sb.Values(v.PairKey, v.Outcome, v.Reason, v.Source, createdAt)
	}

	query, args := sb.Build()
	// First write wins; a verdict is never overwritten by a later run.
	query += " ON CONFLICT (pair_key) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert verdicts batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store verdicts")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(verdicts)}).Debug("Stored verdicts batch")
	return nil
}

// Get retrieves a verdict by pair key
func (r *Repository) Get(ctx context.Context, pairKey string) (*models.Verdict, error) {
	ctx, span := tracing.StartSpan(ctx, "verdict.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("pair_key", "outcome", "reason", "source", "created_at")
	sb.From("verdicts")
	sb.Where(sb.Equal("pair_key", pairKey))

	query, args := sb.Build()
	var v models.Verdict
	if err := r.db.GetContext(ctx, &v, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "verdict not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get verdict")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get verdict")
	}
	return &v, nil
}

// ListBySource returns verdicts produced by the given source
func (r *Repository) ListBySource(ctx context.Context, source models.VerdictSource, limit int) ([]models.Verdict, error) {
	ctx, span := tracing.StartSpan(ctx, "verdict.Repository.ListBySource")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("pair_key", "outcome", "reason", "source", "created_at")
	sb.From("verdicts")
	sb.Where(sb.Equal("source", source))
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	verdicts := make([]models.Verdict, 0)
	if err := r.db.SelectContext(ctx, &verdicts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list verdicts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list verdicts")
	}
	return verdicts, nil
}

// Count returns the number of stored verdicts
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "verdict.Repository.Count")
	defer span.End()

	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM verdicts"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count verdicts")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count verdicts")
	}
	return count, nil
}
