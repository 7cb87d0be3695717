package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core/template"
)

type templateApi struct {
	svc      template.Service
	validate *validator.Validate
}

func registerTemplateAPI(g *echo.Group, deps ServerDeps, jwt, admin echo.MiddlewareFunc) {
	api := templateApi{
		svc:      deps.TemplateSvc,
		validate: deps.Validate,
	}

	tg := g.Group("/templates/:kind", jwt, admin)
	tg.POST("", api.create)
	tg.GET("/latest", api.latest)
	tg.GET("/versions/:version", api.version)
	tg.POST("/categories", api.addCategory)
	tg.PUT("/categories/order", api.reorderCategories)
	tg.PUT("/categories/:id", api.renameCategory)
	tg.PUT("/categories/:id/questions", api.setCategoryQuestions)
	tg.POST("/questions", api.setQuestions)
	tg.PUT("/questions", api.setQuestions)
}

func kindParam(ctx echo.Context) (template.Kind, error) {
	kind := template.Kind(ctx.Param("kind"))
	if !kind.Valid() {
		return "", errInvalidKind
	}
	return kind, nil
}

// templateID resolves the :kind path param to the template's id.
func (api *templateApi) templateID(ctx echo.Context) (string, error) {
	kind, err := kindParam(ctx)
	if err != nil {
		return "", err
	}
	tmpl, err := api.svc.GetByKind(ctx.Request().Context(), kind)
	if err != nil {
		return "", errors.Wrap(err, "getting template by kind")
	}
	return tmpl.ID, nil
}

// Handlers

func (api *templateApi) create(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data template.NewTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	data.Kind = kind
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, snap)
}

func (api *templateApi) latest(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	snap, err := api.svc.GetLatestByKind(ctx.Request().Context(), kind)
	if err != nil {
		return errors.Wrap(err, "getting latest version")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *templateApi) version(ctx echo.Context) error {
	id, err := api.templateID(ctx)
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(ctx.Param("version"))
	if err != nil {
		return template.ErrNotFound
	}
	snap, err := api.svc.GetVersion(ctx.Request().Context(), id, version)
	if err != nil {
		return errors.Wrap(err, "getting version")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *templateApi) addCategory(ctx echo.Context) error {
	id, err := api.templateID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data template.NewCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.AddCategory(ctx.Request().Context(), id, data, actor)
	if err != nil {
		return errors.Wrap(err, "adding category")
	}
	return ctx.JSON(http.StatusCreated, snap)
}

func (api *templateApi) renameCategory(ctx echo.Context) error {
	id, err := api.templateID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data template.RenameCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RenameCategory")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.RenameCategory(ctx.Request().Context(), id, ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "renaming category")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *templateApi) reorderCategories(ctx echo.Context) error {
	id, err := api.templateID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data template.ReorderCategories
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderCategories")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.ReorderCategories(ctx.Request().Context(), id, data, actor)
	if err != nil {
		return errors.Wrap(err, "reordering categories")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *templateApi) setCategoryQuestions(ctx echo.Context) error {
	return api.doSetQuestions(ctx, ctx.Param("id"))
}

func (api *templateApi) setQuestions(ctx echo.Context) error {
	return api.doSetQuestions(ctx, "")
}

func (api *templateApi) doSetQuestions(ctx echo.Context, categoryID string) error {
	id, err := api.templateID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data template.SetQuestions
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetQuestions")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.SetQuestions(ctx.Request().Context(), id, categoryID, data, actor)
	if err != nil {
		return errors.Wrap(err, "setting questions")
	}
	return ctx.JSON(http.StatusOK, snap)
}
