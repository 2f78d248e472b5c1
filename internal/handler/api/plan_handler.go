package api

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/service"
)

// PlanHandler lists plans and triggers template sync on demand.
type PlanHandler struct {
	plans  *service.PlanService
	logger *zap.Logger
}

func NewPlanHandler(plans *service.PlanService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger}
}

// Handle routes plan API requests.
// POST /api/plans
func (h *PlanHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "plans":
		return h.list(c, body)
	case "plans_all":
		return h.listAll(c)
	case "plans_sync":
		return h.sync(c)
	case "plan_edit":
		return h.edit(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *PlanHandler) list(c echo.Context, _ map[string]interface{}) error {
	plans, err := h.plans.ListActive()
	if err != nil {
		return errorResponse(c, "Failed to retrieve plans")
	}
	return successResponse(c, "Successful", plans)
}

func (h *PlanHandler) listAll(c echo.Context) error {
	plans, err := h.plans.ListAll()
	if err != nil {
		return errorResponse(c, "Failed to retrieve plans")
	}
	return successResponse(c, "Successful", plans)
}

func (h *PlanHandler) sync(c echo.Context) error {
	n, err := h.plans.Sync(c.Request().Context())
	if err != nil {
		h.logger.Error("plan sync failed", zap.Error(err))
		return errorResponse(c, "Failed to sync plans")
	}
	return successResponse(c, "Plans synced", map[string]interface{}{"count": n})
}

func (h *PlanHandler) edit(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id == 0 {
		return errorResponse(c, "id is required")
	}

	updates := make(map[string]interface{})
	if price, ok := getDecimalField(body, "price"); ok {
		updates["price"] = price
	}
	if v, ok := body["active"]; ok {
		switch t := v.(type) {
		case bool:
			updates["active"] = t
		case float64:
			updates["active"] = t == 1
		}
	}
	if v := getStringField(body, "title"); v != "" {
		updates["title"] = v
	}
	if len(updates) == 0 {
		return errorResponse(c, "No fields to update")
	}

	if err := h.plans.Update(uint(id), updates); err != nil {
		return errorResponse(c, "Failed to update plan")
	}
	return successResponse(c, "Plan updated", nil)
}
