package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/yles/portal/core/access"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
)

type teamApi struct {
	teams    *team.Service
	progress *progress.Service
	guard    *access.Guard
}

func registerTeamAPI(g *echo.Group, teams *team.Service, progress *progress.Service, guard *access.Guard) {
	api := teamApi{teams: teams, progress: progress, guard: guard}

	g.GET("/me/sections", api.mySections)

	tg := g.Group("/teams")
	tg.GET("", api.query, staffMiddleware())

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/sections", api.sections)
	dg.GET("/board", api.board)
}

type sectionsResponse struct {
	TeamID   string           `json:"team_id,omitempty"`
	Sections []access.Section `json:"sections"`
}

// Handlers

func (api *teamApi) mySections(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sectionsResponse{Sections: api.guard.VisibleSections(actor, "")})
}

func (api *teamApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	teams, err := api.teams.Query(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}
	return ctx.JSON(http.StatusOK, teams)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	t, err := api.teams.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting team")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teamApi) sections(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	// the team must be visible to the actor before its sections are
	t, err := api.teams.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting team")
	}
	return ctx.JSON(http.StatusOK, sectionsResponse{TeamID: t.ID, Sections: api.guard.VisibleSections(actor, t.ID)})
}

func (api *teamApi) board(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	board, err := api.progress.Board(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting board")
	}
	return ctx.JSON(http.StatusOK, board)
}
