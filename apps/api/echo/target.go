package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/caremint/backend/core/target"
)

type targetApi struct {
	svc        target.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerTargetAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc target.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := targetApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	tg := g.Group("/targets", jwt)
	tg.POST("", api.create, adminMiddleware())
	tg.GET("", api.query, adminMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *targetApi) create(ctx echo.Context) error {
	var data target.NewTarget
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTarget")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tgt, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tgt)
}

func (api *targetApi) query(ctx echo.Context) error {
	filter := new(target.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []target.Target{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	targets, err := api.svc.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying targets")
	}
	if targets == nil {
		targets = []target.Target{}
	}
	return ctx.JSON(http.StatusOK, targets)
}

func (api *targetApi) retrieve(ctx echo.Context) error {
	tgt, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == target.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting target")
	}

	// non-admins can only see their own goals
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !claims.IsAdmin && tgt.AssigneeID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, tgt)
}

func (api *targetApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == target.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting target")
	}
	return ctx.NoContent(http.StatusNoContent)
}
