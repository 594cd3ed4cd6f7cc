package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/yles/portal/core"
)

const confirmParam = "confirm"

// Confirmation is the explicit opt-in irreversible actions require.
type Confirmation struct {
	Confirmed bool
}

func (c *Confirmation) Bind(ctx echo.Context) {
	if val := ctx.QueryParam(confirmParam); val != "" {
		c.Confirmed, _ = strconv.ParseBool(core.CleanString(val))
	}
}

// Require returns a core.ValidationError naming msg unless the action was confirmed.
func (c Confirmation) Require(msg string) error {
	if c.Confirmed {
		return nil
	}
	return core.NewValidationError(nil, core.FieldError{Field: confirmParam, Error: msg})
}
