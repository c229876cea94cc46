package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/caremint/backend/core/compliance"
)

type complianceApi struct {
	evaluator *compliance.Evaluator
}

func registerComplianceAPI(g *echo.Group, jwt echo.MiddlewareFunc, evaluator *compliance.Evaluator) {
	api := complianceApi{evaluator: evaluator}

	cg := g.Group("/compliance", jwt)
	cg.POST("/run", api.run, adminMiddleware())
}

// run triggers a full evaluation sweep. The external scheduler normally calls
// this; admins can also fire it by hand.
func (api *complianceApi) run(ctx echo.Context) error {
	stats, err := api.evaluator.Run(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "running compliance evaluation")
	}
	return ctx.JSON(http.StatusOK, stats)
}
