package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/user"
)

// gradingApi is the examiner surface: the materialized grading structure and
// the grade submission endpoint. The grader is always the token subject; panel
// membership is re-checked inside the service on every call.
type gradingApi struct {
	svc *grading.Service
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grading.Service) {
	api := gradingApi{svc: svc}

	ag := g.Group("/assignments/:id/grading", jwt, activeRoleMiddleware(user.RoleExaminer, user.RoleGrader))
	ag.GET("", api.structure)
	ag.POST("/grades", api.submit)
}

// structure returns the grading view for the authenticated grader.
func (api *gradingApi) structure(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	st, err := api.svc.BuildStructure(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// submit validates and upserts a grade batch, then returns the refreshed
// structure so the client renders confirmed state.
func (api *gradingApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data grading.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	st, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}
