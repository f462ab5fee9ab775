package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/attendance"
	"github.com/trezcool/sajili/core/certificate"
	"github.com/trezcool/sajili/core/grade"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
	"github.com/trezcool/sajili/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusUnauthorized, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusUnauthorized, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

type errorResponse struct {
	Success bool        `json:"success"`
	Error   interface{} `json:"error"`
}

// newAppHTTPErrorHandler translates known failures into API error
// envelopes; anything unexpected is logged as a 500 and, if fatal,
// signals a graceful shutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		var code int
		var body interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			code = origErr.Code
			body = errorResponse{Error: origErr.Message}
		case validator.ValidationErrors:
			fields := make(map[string]string, len(origErr))
			for _, fieldErr := range origErr {
				fields[fieldErr.Field()] = fieldErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body = errorResponse{Error: fields}
		case *core.ValidationError:
			code = http.StatusBadRequest
			body = errorResponse{Error: origErr.Error()}
		default:
			switch errors.Cause(err) {
			case user.ErrNotFound, school.ErrNotFound, ledger.ErrNotFound,
				attendance.ErrNotFound, grade.ErrNotFound,
				certificate.ErrNotFound, certificate.ErrVerificationNotFound:
				code = http.StatusNotFound
				body = errorResponse{Error: errors.Cause(err).Error()}
			default:
				logger.Error("request failed", err)
				code = http.StatusInternalServerError
				body = errorResponse{Error: http.StatusText(code)}
				if core.IsShutdown(errors.Cause(err)) {
					defer signalShutdown()
				}
			}
		}

		var resErr error
		if ctx.Request().Method == http.MethodHead {
			resErr = ctx.NoContent(code)
		} else {
			resErr = ctx.JSON(code, body)
		}
		if resErr != nil {
			logger.Error("sending error response failed", resErr)
		}
	}
}
