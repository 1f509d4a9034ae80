package listing

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

// Repository handles raw listing persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a single listing
func (r *Repository) Create(ctx context.Context, req *models.CreateListingRequest) (*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols("name", "brand", "retailer_id", "price", "barcode", "created_at")
	sb.Values(req.Name, req.Brand, req.RetailerID, req.Price, req.Barcode, now)

	query, args := sb.Build()
	query += " RETURNING id"

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create listing")
	}

	return &models.RawRecord{
		ID:         id,
		Name:       req.Name,
		Brand:      req.Brand,
		RetailerID: req.RetailerID,
		Price:      req.Price,
		Barcode:    req.Barcode,
		CreatedAt:  now,
	}, nil
}

// CreateBatch inserts multiple listings efficiently
func (r *Repository) CreateBatch(ctx context.Context, reqs []*models.CreateListingRequest) error {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.CreateBatch")
	defer span.End()

	if len(reqs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("listings")
	sb.Cols("name", "brand", "retailer_id", "price", "barcode", "created_at")
	for _, req := range reqs {
		sb.Values(req.Name, req.Brand, req.RetailerID, req.Price, req.Barcode, now)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create listings batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create listings")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(reqs)}).Debug("Created listings batch")
	return nil
}

// Get retrieves a listing by id
func (r *Repository) Get(ctx context.Context, id int64) (*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "brand", "retailer_id", "price", "barcode", "created_at")
	sb.From("listings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var record models.RawRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "listing not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}
	return &record, nil
}

// List returns all listings ordered by id
func (r *Repository) List(ctx context.Context) ([]*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "brand", "retailer_id", "price", "barcode", "created_at")
	sb.From("listings")
	sb.OrderBy("id")

	query, args := sb.Build()
	records := make([]*models.RawRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}
	return records, nil
}

// ListByRetailer returns listings for one retailer ordered by id
func (r *Repository) ListByRetailer(ctx context.Context, retailerID int64) ([]*models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListByRetailer")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "brand", "retailer_id", "price", "barcode", "created_at")
	sb.From("listings")
	sb.Where(sb.Equal("retailer_id", retailerID))
	sb.OrderBy("id")

	query, args := sb.Build()
	records := make([]*models.RawRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list listings by retailer")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}
	return records, nil
}
