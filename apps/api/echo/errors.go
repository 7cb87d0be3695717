package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errTooManyReqs   = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errInvalidKind   = echo.NewHTTPError(http.StatusNotFound, "unknown template kind")
)

// domainStatus maps domain sentinels to HTTP status codes.
func domainStatus(err error) (int, string, bool) {
	switch err {
	case template.ErrNotFound, template.ErrCategoryNotFound, grant.ErrInvalidCode,
		response.ErrNotFound, subject.ErrNotFound:
		return http.StatusNotFound, "", true
	case grant.ErrExpired, grant.ErrAlreadyConsumed:
		return http.StatusGone, "", true
	case response.ErrAlreadySubmitted:
		return http.StatusConflict, "already_submitted", true
	case template.ErrKindExists, template.ErrVersionConflict, grant.ErrPendingExists:
		return http.StatusConflict, "", true
	case template.ErrInvalidOrder, template.ErrDuplicateOrder, template.ErrInvalidQuestion,
		template.ErrWrongStyle, response.ErrMissingSignature, response.ErrInvalidSignature, response.ErrEmptySignature:
		return http.StatusBadRequest, "", true
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
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
		case *response.MissingAnswersError:
			code = http.StatusUnprocessableEntity
			message = echo.Map{"error": origErr.Error(), "question_ids": origErr.QuestionIDs}
		case *response.InvalidAnswerValueError:
			code = http.StatusUnprocessableEntity
			message = echo.Map{"error": origErr.Error(), "question_ids": []string{origErr.QuestionID}}
		default:
			if status, errCode, ok := domainStatus(origErr); ok {
				code = status
				if errCode != "" {
					message = echo.Map{"error": origErr.Error(), "code": errCode}
				} else {
					message = origErr.Error()
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			actor, _ := ctx.Get(contextActorKey).(core.Actor)
			logger.Error(msg, errors.Wrap(err, msg), actor)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
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
