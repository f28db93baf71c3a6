package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// ResolveHandler handles resolution API endpoints
type ResolveHandler struct {
	resolver *resolver.Resolver
	logger   ectologger.Logger
}

// NewResolveHandler creates a new resolve handler
func NewResolveHandler(r *resolver.Resolver, logger ectologger.Logger) *ResolveHandler {
	return &ResolveHandler{resolver: r, logger: logger}
}

// Register registers resolution routes
func (h *ResolveHandler) Register(g *echo.Group) {
	g.POST("/persons/resolve", h.ResolvePerson)
	g.POST("/companies/resolve", h.ResolveCompany)
}

// ResolvePerson resolves a person record to a unified entity
func (h *ResolveHandler) ResolvePerson(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ResolveHandler.ResolvePerson")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.ResolvePersonRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	result, err := h.resolver.ResolvePerson(ctx, tenantID, req)
	if err != nil {
		return err
	}

	if result.Outcome == models.OutcomeCreated {
		return CreatedResponse(c, result)
	}
	return SuccessResponse(c, result)
}

// ResolveCompany resolves a company record to a unified entity
func (h *ResolveHandler) ResolveCompany(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ResolveHandler.ResolveCompany")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.ResolveCompanyRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	result, err := h.resolver.ResolveCompany(ctx, tenantID, req)
	if err != nil {
		return err
	}

	if result.Outcome == models.OutcomeCreated {
		return CreatedResponse(c, result)
	}
	return SuccessResponse(c, result)
}
