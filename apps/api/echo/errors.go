package echoapi

import (
	"net/http"
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/core/session"
)

var (
	errHttpNoToken   = echo.NewHTTPError(http.StatusUnauthorized, "Access denied. No token provided.")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())

	// domain errors reported to clients with their own message
	errStatusCodes = map[error]int{
		account.ErrEmailNotRegistered: http.StatusNotFound,
		account.ErrNotFound:           http.StatusNotFound,
		account.ErrIncorrectPassword:  http.StatusUnauthorized,
		account.ErrInvalidOTP:         http.StatusBadRequest,
		account.ErrInvalidRole:        http.StatusBadRequest,
		activity.ErrBookmarkNotFound:  http.StatusNotFound,
		activity.ErrDuplicateAttempt:  http.StatusConflict,
		session.ErrInvalidToken:       http.StatusForbidden,
		core.ErrForbidden:             http.StatusForbidden,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := lookupStatus(cause); ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
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
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
					"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
					"route":      ctx.Path(),
				}}
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					args = append(args, tokenIdentity{claims: claims})
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
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

// lookupStatus finds the status of a domain error.
// Causes that cannot be map keys (validator.ValidationErrors is a slice) never match.
func lookupStatus(cause error) (int, bool) {
	switch cause.(type) {
	case nil, validator.ValidationErrors:
		return 0, false
	}
	if !reflect.TypeOf(cause).Comparable() {
		return 0, false
	}
	status, ok := errStatusCodes[cause]
	return status, ok
}

// statusOf returns the status code the error handler answers err with.
func statusOf(err error) int {
	cause := errors.Cause(err)
	if status, ok := lookupStatus(cause); ok {
		return status
	}
	switch origErr := cause.(type) {
	case *echo.HTTPError:
		return origErr.Code
	case validator.ValidationErrors, *core.ValidationError:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
