package listing

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/listing"
	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New()

// Register registers listing routes
func Register(g *echo.Group) {
	g.POST("", CreateListing)
	g.GET("", ListListings)
	g.GET("/:id", GetListing)
}

// CreateListing ingests a single raw listing
func CreateListing(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*listing.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rec, err := repo.Create(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, rec)
}

// ListListings lists listings, optionally filtered by retailer
func ListListings(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*listing.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if retailer := c.QueryParam("retailer_id"); retailer != "" {
		retailerID, err := strconv.ParseInt(retailer, 10, 64)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "retailer_id must be an integer")
		}
		records, err := repo.ListByRetailer(ctx, retailerID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, records)
	}

	records, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

// GetListing gets a listing by id
func GetListing(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}

	ctx, repo, err := ectoinject.GetContext[*listing.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rec, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rec)
}
