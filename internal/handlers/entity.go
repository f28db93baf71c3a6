package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// EntityHandler handles unified entity read endpoints
type EntityHandler struct {
	resolver *resolver.Resolver
	logger   ectologger.Logger
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(r *resolver.Resolver, logger ectologger.Logger) *EntityHandler {
	return &EntityHandler{resolver: r, logger: logger}
}

// Register registers entity routes
func (h *EntityHandler) Register(g *echo.Group) {
	g.GET("/:id", h.Get)
}

// Get returns a unified entity with its source mappings
func (h *EntityHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "EntityHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if id == "" {
		return BadRequest("missing id")
	}

	details, err := h.resolver.GetEntityDetails(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, details)
}
