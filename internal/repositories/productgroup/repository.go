package productgroup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository persists duplicate groups and their canonical choices
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new product group repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// SaveResults stores the groups of one completed run. The membership
// invariant is checked on write: a canonical record id outside its own
// group rejects the whole batch.
func (r *Repository) SaveResults(ctx context.Context, runID string, results []models.GroupResult) error {
	ctx, span := tracing.StartSpan(ctx, "productgroup.Repository.SaveResults")
	defer span.End()

	if len(results) == 0 {
		return nil
	}

	for _, res := range results {
		member := false
		for _, id := range res.MemberIDs {
			if id == res.CanonicalRecordID {
				member = true
				break
			}
		}
		if !member {
			return httperror.NewHTTPError(http.StatusInternalServerError,
				fmt.Sprintf("canonical record %d is not a member of group %s", res.CanonicalRecordID, res.GroupID))
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to begin transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store groups")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	gb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	gb.InsertInto("product_groups")
	gb.Cols("group_id", "run_id", "canonical_record_id", "canonical_name", "reason", "created_at")
	for _, res := range results {
		gb.Values(res.GroupID, runID, res.CanonicalRecordID, res.CanonicalName, res.Reason, now)
	}
	query, args := gb.Build()
	query += " ON CONFLICT (group_id) DO UPDATE SET canonical_record_id = EXCLUDED.canonical_record_id, canonical_name = EXCLUDED.canonical_name, reason = EXCLUDED.reason"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to store product groups")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store groups")
	}

	mb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	mb.InsertInto("product_group_members")
	mb.Cols("group_id", "record_id")
	for _, res := range results {
		for _, id := range res.MemberIDs {
			mb.Values(res.GroupID, id)
		}
	}
	query, args = mb.Build()
	query += " ON CONFLICT (group_id, record_id) DO NOTHING"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to store group members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store group members")
	}

	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit group results")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store groups")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"groups": len(results),
	}).Debug("Stored group results")
	return nil
}

// Get retrieves one group with its members
func (r *Repository) Get(ctx context.Context, groupID string) (*models.GroupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "productgroup.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("group_id", "canonical_record_id", "canonical_name", "reason")
	sb.From("product_groups")
	sb.Where(sb.Equal("group_id", groupID))

	query, args := sb.Build()
	var row struct {
		GroupID           string `db:"group_id"`
		CanonicalRecordID int64  `db:"canonical_record_id"`
		CanonicalName     string `db:"canonical_name"`
		Reason            string `db:"reason"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("group %s not found", groupID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get product group")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group")
	}

	members, err := r.members(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return &models.GroupResult{
		GroupID:           row.GroupID,
		MemberIDs:         members,
		CanonicalRecordID: row.CanonicalRecordID,
		CanonicalName:     row.CanonicalName,
		Reason:            row.Reason,
	}, nil
}

// ListByRun returns all groups of a run
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.GroupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "productgroup.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("group_id", "canonical_record_id", "canonical_name", "reason")
	sb.From("product_groups")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("group_id")

	query, args := sb.Build()
	rows := make([]struct {
		GroupID           string `db:"group_id"`
		CanonicalRecordID int64  `db:"canonical_record_id"`
		CanonicalName     string `db:"canonical_name"`
		Reason            string `db:"reason"`
	}, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list product groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list groups")
	}

	results := make([]models.GroupResult, 0, len(rows))
	for _, row := range rows {
		members, err := r.members(ctx, row.GroupID)
		if err != nil {
			return nil, err
		}
		results = append(results, models.GroupResult{
			GroupID:           row.GroupID,
			MemberIDs:         members,
			CanonicalRecordID: row.CanonicalRecordID,
			CanonicalName:     row.CanonicalName,
			Reason:            row.Reason,
		})
	}
	return results, nil
}

func (r *Repository) members(ctx context.Context, groupID string) ([]int64, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("record_id")
	sb.From("product_group_members")
	sb.Where(sb.Equal("group_id", groupID))
	sb.OrderBy("record_id")

	query, args := sb.Build()
	members := make([]int64, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list group members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list group members")
	}
	return members, nil
}
