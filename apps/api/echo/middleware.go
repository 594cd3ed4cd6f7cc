package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/yles/portal/core/policy"
)

// capabilityMiddleware rejects actors whose role holds none of caps, whatever the team.
// Team scoping is left to the services.
func capabilityMiddleware(caps ...policy.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return err
			}
			set := policy.CapabilitiesFor(actor.Role)
			for _, c := range caps {
				if set.Has(c) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware rejects delegates and unknown roles.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return err
			}
			if policy.IsStaff(actor.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
