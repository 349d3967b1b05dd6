package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

const codeConfirmationRequired = "confirmation_required"

var (
	errSessionNotFound = echo.NewHTTPError(http.StatusNotFound, "session not found")
	errNoSession       = echo.NewHTTPError(http.StatusConflict, "select class and date first")
	errSuperseded      = echo.NewHTTPError(http.StatusConflict, "session changed while loading")
	errBackendFailure  = echo.NewHTTPError(http.StatusBadGateway, "attendance could not be saved, please retry")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
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
				fldErrs[vErr.Field()] = vErr.Translate(translator)
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
		default:
			switch {
			case errors.Is(err, attendance.ErrSaveDeclined), errors.Is(err, attendance.ErrActionCancelled):
				code = http.StatusConflict
				message = echo.Map{"error": errors.Cause(err).Error(), "code": codeConfirmationRequired}
			case errors.Is(err, attendance.ErrNoSession):
				code = errNoSession.Code
				message = errNoSession.Message
			case errors.Is(err, attendance.ErrSuperseded):
				code = errSuperseded.Code
				message = errSuperseded.Message
			case attendance.IsPersistenceError(err):
				// Cause digs through PersistenceError down to the transport error
				code = errBackendFailure.Code
				message = errBackendFailure.Message
				logger.Error("saving attendance", err)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
					"method": ctx.Request().Method, "path": ctx.Path(),
				})

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
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
