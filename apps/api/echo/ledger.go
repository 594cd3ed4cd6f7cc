package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/yles/portal/core/access"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/policy"
)

type ledgerApi struct {
	guard *access.Guard
}

func registerLedgerAPI(g *echo.Group, guard *access.Guard) {
	api := ledgerApi{guard: guard}

	fg := g.Group("/teams/:id")
	fg.GET("/fines", api.query)
	fg.POST("/fines", api.create, capabilityMiddleware(policy.AddFine))
	fg.DELETE("/fines", api.wipe, capabilityMiddleware(policy.DeleteFine))
	fg.POST("/balance/recalc", api.recalc, capabilityMiddleware(policy.AddFine, policy.DeleteFine))

	g.DELETE("/fines/:id", api.destroy, capabilityMiddleware(policy.DeleteFine))
}

// Handlers

func (api *ledgerApi) query(ctx echo.Context) error {
	res, err := api.do(ctx, access.Request{Action: access.ActionListFines, TeamID: ctx.Param("id")})
	if err != nil {
		return errors.Wrap(err, "listing fines")
	}
	fines := res.Fines
	if fines == nil {
		fines = []ledger.Fine{}
	}
	return ctx.JSON(http.StatusOK, fines)
}

func (api *ledgerApi) create(ctx echo.Context) error {
	var data ledger.NewFine
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFine")
	}
	res, err := api.do(ctx, access.Request{Action: access.ActionAddFine, TeamID: ctx.Param("id"), Fine: data})
	return respondMutation(ctx, http.StatusCreated, res, errors.Wrap(err, "adding fine"))
}

func (api *ledgerApi) wipe(ctx echo.Context) error {
	var confirm Confirmation
	confirm.Bind(ctx)
	if err := confirm.Require(errConfirmWipe.Error()); err != nil {
		return err
	}
	res, err := api.do(ctx, access.Request{Action: access.ActionWipeFines, TeamID: ctx.Param("id")})
	return respondMutation(ctx, http.StatusOK, res, errors.Wrap(err, "wiping fines"))
}

func (api *ledgerApi) destroy(ctx echo.Context) error {
	res, err := api.do(ctx, access.Request{Action: access.ActionDeleteFine, FineID: ctx.Param("id")})
	return respondMutation(ctx, http.StatusOK, res, errors.Wrap(err, "deleting fine"))
}

func (api *ledgerApi) recalc(ctx echo.Context) error {
	res, err := api.do(ctx, access.Request{Action: access.ActionRecalc, TeamID: ctx.Param("id")})
	return respondMutation(ctx, http.StatusOK, res, errors.Wrap(err, "recalculating balance"))
}

func (api *ledgerApi) do(ctx echo.Context, req access.Request) (access.Result, error) {
	actor, err := getContextActor(ctx)
	if err != nil {
		return access.Result{}, err
	}
	return api.guard.Do(ctx.Request().Context(), actor, req)
}

// respondMutation sends the applied mutation. A balance that failed to sync is reported as
// 202 Accepted since the fine write itself went through.
func respondMutation(ctx echo.Context, code int, res access.Result, err error) error {
	var syncErr *ledger.BalanceSyncError
	if errors.As(err, &syncErr) {
		return ctx.JSON(http.StatusAccepted, newBalanceSyncResponse(syncErr, res.Mutation))
	}
	if err != nil {
		return err
	}
	return ctx.JSON(code, res.Mutation)
}
