package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc     *user.Service
	authSvc *auth.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service, authSvc *auth.Service) {
	api := userApi{svc: svc, authSvc: authSvc}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/switch-role", api.switchRole)
	ag.POST("/change-password", api.changePassword)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := authenticate(rctx, data.Username, data.Password, api.svc)
	if err != nil {
		return err
	}

	acc, err := api.authSvc.Resolve(rctx, usr, data.Role)
	if err != nil {
		if err == auth.ErrRoleSelectionRequired {
			// echo back the granted roles so the client can re-submit with one
			return ctx.JSON(http.StatusBadRequest, echo.Map{
				"error": err.Error(),
				"roles": usr.Roles,
			})
		}
		return err
	}

	token, err := GenerateToken(GetAccessClaims(acc))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:              token,
		ActiveRole:         acc.ActiveRole,
		Scope:              acc.Scope,
		MustChangePassword: usr.MustChangePassword,
	})
}

// switchRole re-resolves the session against a different granted role; the
// scope is always re-derived, never carried over.
func (api *userApi) switchRole(ctx echo.Context) error {
	var data SwitchRoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SwitchRoleRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.Active() {
		return errAccountDeactivated
	}

	acc, err := api.authSvc.Resolve(ctx.Request().Context(), usr, data.Role)
	if err != nil {
		return err
	}

	token, err := GenerateToken(GetAccessClaims(acc))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:              token,
		ActiveRole:         acc.ActiveRole,
		Scope:              acc.Scope,
		MustChangePassword: usr.MustChangePassword,
	})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data ChangePasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePasswordRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = usr.CheckPassword(data.OldPassword); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: "password mismatch"})
	}

	usr, err = api.svc.ChangePassword(ctx.Request().Context(), usr, data.NewPassword)
	if err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, usr, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Update(rctx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.authSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			if ctx.Param("id") == ctxUsr.ID || claims.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role"`
	}

	LoginResponse struct {
		Token              string      `json:"token"`
		ActiveRole         string      `json:"active_role,omitempty"`
		Scope              *auth.Scope `json:"scope,omitempty"`
		MustChangePassword bool        `json:"must_change_password,omitempty"`
	}

	SwitchRoleRequest struct {
		Role string `json:"role" validate:"required"`
	}

	ChangePasswordRequest struct {
		OldPassword        string `json:"old_password" validate:"required"`
		NewPassword        string `json:"new_password" validate:"required,min=8"`
		NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	lr.Role = core.CleanString(lr.Role, true /* lower */)
	return core.Validate.Struct(lr)
}

func (sr *SwitchRoleRequest) Validate() error {
	sr.Role = core.CleanString(sr.Role, true /* lower */)
	return core.Validate.Struct(sr)
}

func (cp *ChangePasswordRequest) Validate() error {
	return core.Validate.Struct(cp)
}
