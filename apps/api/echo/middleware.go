package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// adminMiddleware lets portal administrators through and puts their core.Actor in the context.
func adminMiddleware(tokenKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx, tokenKey)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			actor := claims.Actor()
			if actor.ID == "" || !actor.IsAdmin() {
				return errHttpForbidden
			}
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}
