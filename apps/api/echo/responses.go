package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/response"
)

type responseApi struct {
	svc response.Service
}

func registerResponseAPI(g *echo.Group, deps ServerDeps, jwt, admin echo.MiddlewareFunc) {
	api := responseApi{svc: deps.ResponseSvc}

	rg := g.Group("/responses", jwt, admin)
	rg.GET("/:subjectId/:kind/latest", api.latest)
}

func (api *responseApi) latest(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.GetLatestView(ctx.Request().Context(), ctx.Param("subjectId"), kind)
	if err != nil {
		return errors.Wrap(err, "getting latest response")
	}
	return ctx.JSON(http.StatusOK, view)
}
