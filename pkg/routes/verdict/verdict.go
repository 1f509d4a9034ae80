package verdict

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	verdictrepo "github.com/Ramsey-B/clover/internal/repositories/verdict"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Register registers verdict audit routes
func Register(g *echo.Group) {
	g.GET("", ListVerdicts)
	g.GET("/:pairKey", GetVerdict)
}

// ListVerdicts lists verdicts filtered by source
func ListVerdicts(c echo.Context) error {
	ctx := c.Request().Context()

	source := models.VerdictSource(c.QueryParam("source"))
	switch source {
	case models.VerdictSourceRule, models.VerdictSourceOracle, models.VerdictSourceIdentifier:
	default:
		return httperror.NewHTTPError(http.StatusBadRequest, "source must be one of RULE, ORACLE, IDENTIFIER")
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*verdictrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	verdicts, err := repo.ListBySource(ctx, source, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, verdicts)
}

// GetVerdict gets a verdict by its pair key
func GetVerdict(c echo.Context) error {
	ctx := c.Request().Context()

	pairKey := c.Param("pairKey")
	if _, _, ok := models.ParsePairKey(pairKey); !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, "pair key must look like \"12-34\"")
	}

	ctx, repo, err := ectoinject.GetContext[*verdictrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	v, err := repo.Get(ctx, pairKey)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, v)
}
