package models

import "time"

// RawRecord is a single retailer listing as produced by ingestion.
// Records are read-only to the dedupe pipeline.
type RawRecord struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Brand      *string   `json:"brand,omitempty" db:"brand"`
	RetailerID int64     `json:"retailer_id" db:"retailer_id"`
	Price      *float64  `json:"price,omitempty" db:"price"`
	Barcode    *string   `json:"barcode,omitempty" db:"barcode"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CreateListingRequest is the payload for ingesting a listing.
type CreateListingRequest struct {
	Name       string   `json:"name" validate:"required"`
	Brand      *string  `json:"brand,omitempty"`
	RetailerID int64    `json:"retailer_id" validate:"required"`
	Price      *float64 `json:"price,omitempty"`
	Barcode    *string  `json:"barcode,omitempty"`
}

// BrandOrEmpty returns the brand or "" when unset.
func (r *RawRecord) BrandOrEmpty() string {
	if r.Brand == nil {
		return ""
	}
	return *r.Brand
}
