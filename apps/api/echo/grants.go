package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
)

const signatureField = "signature"

type grantApi struct {
	svc            grant.Service
	tmplSvc        template.Service
	respSvc        response.Service
	validate       *validator.Validate
	maxUploadBytes int64
}

type (
	SignatureResponse struct {
		SignatureRef string `json:"signature_ref"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func registerGrantAPI(g *echo.Group, deps ServerDeps, jwt, admin, limit echo.MiddlewareFunc) {
	api := grantApi{
		svc:            deps.GrantSvc,
		tmplSvc:        deps.TemplateSvc,
		respSvc:        deps.ResponseSvc,
		validate:       deps.Validate,
		maxUploadBytes: deps.Conf.Media.MaxUploadBytes,
	}

	gg := g.Group("/grants")

	// respondent endpoints: the code is the credential
	gg.GET("/:code", api.resolve, limit)
	gg.POST("/:code/signature", api.storeSignature, limit)
	gg.POST("/:code/response", api.submit, limit)

	// admin endpoints
	gg.POST("/:subjectId/:kind", api.issue, jwt, admin)
	gg.DELETE("/:code", api.expire, jwt, admin)
}

// Handlers

func (api *grantApi) issue(ctx echo.Context) error {
	kind, err := kindParam(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data grant.IssueRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IssueRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.tmplSvc.GetByKind(ctx.Request().Context(), kind)
	if err != nil {
		return errors.Wrap(err, "getting template by kind")
	}
	g, err := api.svc.Issue(ctx.Request().Context(), ctx.Param("subjectId"), tmpl.ID, data, actor)
	if err != nil {
		return errors.Wrap(err, "issuing grant")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *grantApi) expire(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Expire(ctx.Request().Context(), ctx.Param("code"), actor); err != nil {
		return errors.Wrap(err, "expiring grant")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "access code expired"})
}

func (api *grantApi) resolve(ctx echo.Context) error {
	view, err := api.svc.Resolve(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "resolving grant")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *grantApi) storeSignature(ctx echo.Context) error {
	fh, err := ctx.FormFile(signatureField)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: signatureField, Error: "this field is required"})
	}
	if api.maxUploadBytes > 0 && fh.Size > api.maxUploadBytes {
		return core.NewValidationError(nil, core.FieldError{Field: signatureField, Error: "file is too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening signature upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "reading signature upload")
	}

	ref, err := api.respSvc.StoreSignature(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "storing signature")
	}
	return ctx.JSON(http.StatusCreated, SignatureResponse{SignatureRef: ref})
}

func (api *grantApi) submit(ctx echo.Context) error {
	var data response.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	resp, err := api.respSvc.Submit(ctx.Request().Context(), ctx.Param("code"), data)
	if err != nil {
		return errors.Wrap(err, "submitting response")
	}
	return ctx.JSON(http.StatusCreated, resp)
}
