package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/team"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, core.ErrForbidden.Error())
	errConfirmWipe   = errors.New("deleting every fine of a team requires confirm=true")
)

// notFoundErrs are reported as 404 with their own message.
var notFoundErrs = []error{team.ErrNotFound, module.ErrNotFound, ledger.ErrFineNotFound}

// balanceSyncResponse reports a fine write that went through while the balance recompute did not.
type balanceSyncResponse struct {
	Error   string       `json:"error"`
	TeamID  string       `json:"team_id"`
	Fine    *ledger.Fine `json:"fine,omitempty"`
	Removed int          `json:"removed,omitempty"`
	Retry   string       `json:"retry"`
}

func newBalanceSyncResponse(syncErr *ledger.BalanceSyncError, mut *ledger.Mutation) balanceSyncResponse {
	resp := balanceSyncResponse{
		Error:  ledger.ErrBalanceSyncFailed.Error(),
		TeamID: syncErr.TeamID,
		Retry:  "/v1/teams/" + syncErr.TeamID + "/balance/recalc",
	}
	if mut != nil {
		resp.Fine = mut.Fine
		resp.Removed = mut.Removed
	}
	return resp
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr  *echo.HTTPError
			fldErrs  validator.ValidationErrors
			valErr   *core.ValidationError
			syncErr  *ledger.BalanceSyncError
			notFound error
		)
		for _, nf := range notFoundErrs {
			if errors.Is(err, nf) {
				notFound = nf
				break
			}
		}

		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &fldErrs):
			msgs := make(map[string]string, len(fldErrs))
			for _, vErr := range fldErrs {
				msgs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = msgs
		case errors.As(err, &valErr):
			if valErr.Fields != nil {
				msgs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					msgs[fErr.Field] = fErr.Error
				}
				message = msgs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case errors.Is(err, core.ErrForbidden):
			code = http.StatusForbidden
			message = core.ErrForbidden.Error()
		case notFound != nil:
			code = http.StatusNotFound
			message = notFound.Error()
		case errors.As(err, &syncErr):
			// already logged by the ledger
			code = http.StatusAccepted
			message = newBalanceSyncResponse(syncErr, nil)
		case errors.Is(err, core.ErrStorageUnavailable):
			code = http.StatusServiceUnavailable
			message = core.ErrStorageUnavailable.Error()
			logger.Warn(message.(string), logArgs(ctx, err)...)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, logArgs(ctx, errors.Wrap(err, msg))...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code != http.StatusAccepted {
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

// logArgs follows the core.Logger convention: error, extras, then the actor when known.
func logArgs(ctx echo.Context, err error) []interface{} {
	args := []interface{}{err, map[string]interface{}{
		"method": ctx.Request().Method,
		"route":  ctx.Path(),
		"uri":    ctx.Request().RequestURI,
	}}
	if actor, aErr := getContextActor(ctx); aErr == nil {
		args = append(args, actor)
	}
	return args
}
