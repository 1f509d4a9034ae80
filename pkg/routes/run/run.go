package run

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	runrepo "github.com/Ramsey-B/clover/internal/repositories/run"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
)

var validate = validator.New()

// Register registers dedupe run routes
func Register(g *echo.Group) {
	g.POST("", TriggerRun)
	g.GET("", ListRuns)
	g.GET("/:id", GetRun)
}

// TriggerRun starts a new dedupe run in the background
func TriggerRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateDedupeRunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*processor.RunService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dr, err := service.Trigger(ctx, req.Profile)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, dr)
}

// ListRuns lists recent dedupe runs
func ListRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*runrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	runs, err := repo.List(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}

// GetRun gets a dedupe run by id
func GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*runrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dr, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dr)
}
