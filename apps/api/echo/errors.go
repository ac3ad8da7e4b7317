package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusFor maps domain sentinels to HTTP codes. Unknown errors fall through
// to 500 in the handler.
func statusFor(err error) (int, bool) {
	switch err {
	case user.ErrNotFound, career.ErrNotFound, career.ErrPeriodNotFound,
		evalplan.ErrNotFound, panel.ErrNotFound, panel.ErrAssignmentNotFound,
		certificate.ErrNotFound:
		return http.StatusNotFound, true
	case career.ErrNoActivePeriod, evalplan.ErrNoActivePlan:
		return http.StatusNotFound, true
	case grading.ErrAccessDenied, grading.ErrCriterionNotAuthorized,
		auth.ErrRoleNotGranted, auth.ErrNoAdminScope, panel.ErrNotMember:
		return http.StatusForbidden, true
	case auth.ErrRoleSelectionRequired:
		return http.StatusBadRequest, true
	case panel.ErrCaseNumberConflict, panel.ErrAssignmentLocked, panel.ErrAssignmentOpen,
		panel.ErrCertificateSigned, certificate.ErrAlreadySigned, certificate.ErrNotGenerated:
		return http.StatusConflict, true
	case panel.ErrTransactionFailed:
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *grading.UnauthorizedCriterionError:
			code = http.StatusForbidden
			message = echo.Map{
				"error":     grading.ErrCriterionNotAuthorized.Error(),
				"criterion": origErr.Key.String(),
			}
		default:
			if mapped, ok := statusFor(origErr); ok {
				code = mapped
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
