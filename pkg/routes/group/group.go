package group

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/productgroup"
)

// Register registers product group routes
func Register(g *echo.Group) {
	g.GET("", ListGroups)
	g.GET("/:id", GetGroup)
}

// ListGroups lists product groups for a run
func ListGroups(c echo.Context) error {
	ctx := c.Request().Context()

	runID := c.QueryParam("run_id")
	if runID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "run_id query parameter is required")
	}

	ctx, repo, err := ectoinject.GetContext[*productgroup.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	groups, err := repo.ListByRun(ctx, runID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, groups)
}

// GetGroup gets a product group by id
func GetGroup(c echo.Context) error {
	ctx := c.Request().Context()

	groupID := c.Param("id")
	if groupID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*productgroup.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	res, err := repo.Get(ctx, groupID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, res)
}
