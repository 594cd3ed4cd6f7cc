package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/yles/portal/core/access"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/progress"
)

type progressApi struct {
	guard    *access.Guard
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, guard *access.Guard, validate *validator.Validate) {
	api := progressApi{guard: guard, validate: validate}

	g.PUT("/teams/:id/progress/:moduleId", api.update, capabilityMiddleware(policy.ManageModules))
}

// Handlers

func (api *progressApi) update(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	var data progress.StatusUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.guard.Do(ctx.Request().Context(), actor, access.Request{
		Action:   access.ActionSetStatus,
		TeamID:   ctx.Param("id"),
		ModuleID: ctx.Param("moduleId"),
		Status:   data.Status,
	})
	if err != nil {
		return errors.Wrap(err, "setting status")
	}
	return ctx.JSON(http.StatusOK, res.Progress)
}
