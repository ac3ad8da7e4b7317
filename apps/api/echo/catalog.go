package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/evalplan"
)

// catalogApi exposes the read-only career / period / plan structure the
// grading and panel screens are built from.
type catalogApi struct {
	careers *career.Service
	plans   *evalplan.Service
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, careers *career.Service, plans *evalplan.Service) {
	api := catalogApi{careers: careers, plans: plans}

	cg := g.Group("/careers", jwt)
	cg.GET("", api.queryCareers)
	cg.GET("/:id", api.retrieveCareer)
	cg.GET("/:id/periods", api.queryPeriods)
	cg.GET("/:id/periods/active", api.activePeriod)

	pg := g.Group("/periods", jwt)
	pg.GET("/:id/plan", api.activePlan)
}

func (api *catalogApi) queryCareers(ctx echo.Context) error {
	careers, err := api.careers.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying careers")
	}
	if careers == nil {
		careers = []career.Career{}
	}
	return ctx.JSON(http.StatusOK, careers)
}

func (api *catalogApi) retrieveCareer(ctx echo.Context) error {
	c, err := api.careers.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) queryPeriods(ctx echo.Context) error {
	periods, err := api.careers.QueryPeriods(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying career periods")
	}
	if periods == nil {
		periods = []career.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *catalogApi) activePeriod(ctx echo.Context) error {
	p, err := api.careers.ActivePeriod(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

// activePlan returns the period's active plan with its ordered items.
func (api *catalogApi) activePlan(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	plan, err := api.plans.ActivePlan(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	items, err := api.plans.Items(rctx, plan.ID)
	if err != nil {
		return errors.Wrap(err, "querying plan items")
	}
	if items == nil {
		items = []evalplan.Item{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"plan": plan, "items": items})
}
