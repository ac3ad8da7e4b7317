package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
)

// panelApi carries the tribunal administration surface: panels, their rosters,
// student case assignments and the certificate lifecycle. All of it is
// admin-scope only.
type panelApi struct {
	svc     *panel.Service
	certs   *certificate.Service
	grading *grading.Service
}

func registerPanelAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *panel.Service, certs *certificate.Service, gradingSvc *grading.Service) {
	api := panelApi{svc: svc, certs: certs, grading: gradingSvc}

	pg := g.Group("/panels", jwt, adminMiddleware())
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.GET("/:id/members", api.queryMembers)
	pg.GET("/:id/assignments", api.queryAssignments)

	ag := g.Group("/assignments", jwt, adminMiddleware())
	ag.POST("", api.schedule)
	ag.GET("/:id", api.retrieveAssignment)
	ag.POST("/:id/lock", api.lock)
	ag.POST("/:id/reopen", api.reopen)
	ag.GET("/:id/entries", api.queryEntries)
	ag.GET("/:id/certificate", api.retrieveCertificate)
	ag.POST("/:id/certificate/generate", api.generateCertificate)
	ag.POST("/:id/certificate/sign", api.signCertificate)
}

func (api *panelApi) create(ctx echo.Context) error {
	var data panel.NewPanel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPanel")
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *panelApi) query(ctx echo.Context) error {
	periodID := ctx.QueryParam("period")
	if periodID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "period query parameter is required")
	}
	panels, err := api.svc.QueryByPeriod(ctx.Request().Context(), periodID)
	if err != nil {
		return errors.Wrap(err, "querying panels")
	}
	if panels == nil {
		panels = []panel.Panel{}
	}
	return ctx.JSON(http.StatusOK, panels)
}

func (api *panelApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *panelApi) update(ctx echo.Context) error {
	var data panel.UpdatePanel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePanel")
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *panelApi) queryMembers(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying panel members")
	}
	if members == nil {
		members = []panel.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *panelApi) queryAssignments(ctx echo.Context) error {
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying panel assignments")
	}
	if assignments == nil {
		assignments = []panel.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *panelApi) schedule(ctx echo.Context) error {
	var data panel.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	a, err := api.svc.ScheduleAssignment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *panelApi) retrieveAssignment(ctx echo.Context) error {
	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *panelApi) lock(ctx echo.Context) error {
	a, err := api.svc.LockAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *panelApi) reopen(ctx echo.Context) error {
	a, err := api.svc.ReopenAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

// queryEntries exposes every grader's finalized entries of a locked assignment.
func (api *panelApi) queryEntries(ctx echo.Context) error {
	entries, err := api.grading.AssignmentEntries(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []grading.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *panelApi) retrieveCertificate(ctx echo.Context) error {
	cert, err := api.certs.GetByAssignment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *panelApi) generateCertificate(ctx echo.Context) error {
	cert, err := api.certs.Generate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *panelApi) signCertificate(ctx echo.Context) error {
	cert, err := api.certs.Sign(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}
