package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/repository"
	"vendbot/internal/service"
)

// ServiceHandler exposes trial provisioning and per-service admin actions.
type ServiceHandler struct {
	subs       *service.SubscriptionService
	services   *repository.ServiceRepository
	pricePerGB decimal.Decimal
	logger     *zap.Logger
}

func NewServiceHandler(subs *service.SubscriptionService, services *repository.ServiceRepository, pricePerGB decimal.Decimal, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{subs: subs, services: services, pricePerGB: pricePerGB, logger: logger}
}

// Handle routes service API requests.
// POST /api/services
func (h *ServiceHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "services":
		return h.list(c, body)
	case "trial":
		return h.trial(c, body)
	case "grant":
		return h.grant(c, body)
	case "add_data":
		return h.addData(c, body)
	case "extend":
		return h.extend(c, body)
	case "set_status":
		return h.setStatus(c, body)
	case "revoke_sub":
		return h.revoke(c, body)
	case "service_delete":
		return h.delete(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *ServiceHandler) list(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	if chatID == 0 {
		return errorResponse(c, "chat_id is required")
	}
	services, err := h.services.FindByAccount(chatID)
	if err != nil {
		return errorResponse(c, "Failed to retrieve services")
	}
	return successResponse(c, "Successful", services)
}

func (h *ServiceHandler) trial(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	if chatID == 0 {
		return errorResponse(c, "chat_id is required")
	}

	svc, err := h.subs.ProvisionTrial(c.Request().Context(), chatID)
	if err != nil {
		if errors.Is(err, service.ErrTrialAlreadyUsed) {
			return errorResponse(c, "Trial already used")
		}
		h.logger.Error("trial failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return errorResponse(c, "Failed to provision trial")
	}
	return successResponse(c, "Trial provisioned", svc)
}

func (h *ServiceHandler) grant(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	templateID := getInt64Field(body, "template_id", 0)
	if chatID == 0 || templateID == 0 {
		return errorResponse(c, "chat_id and template_id are required")
	}
	strategy := service.UsernameFresh
	if getStringField(body, "username_strategy") == string(service.UsernameAccount) {
		strategy = service.UsernameAccount
	}

	svc, err := h.subs.GrantPlan(c.Request().Context(), chatID, templateID, strategy)
	if err != nil {
		h.logger.Error("grant failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return errorResponse(c, "Failed to grant plan")
	}
	return successResponse(c, "Plan granted", svc)
}

func (h *ServiceHandler) addData(c echo.Context, body map[string]interface{}) error {
	serviceID := uint(getIntField(body, "service_id", 0))
	deltaGB := getInt64Field(body, "delta_gb", 0)
	if serviceID == 0 || deltaGB <= 0 {
		return errorResponse(c, "service_id and a positive delta_gb are required")
	}

	if err := h.subs.AddData(c.Request().Context(), serviceID, deltaGB, h.pricePerGB); err != nil {
		var insufficient *service.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			return errorResponse(c, "Insufficient balance")
		}
		h.logger.Error("add data failed", zap.Uint("service_id", serviceID), zap.Error(err))
		return errorResponse(c, "Failed to add data")
	}
	return successResponse(c, "Data added", nil)
}

func (h *ServiceHandler) extend(c echo.Context, body map[string]interface{}) error {
	serviceID := uint(getIntField(body, "service_id", 0))
	days := getIntField(body, "days", 0)
	if serviceID == 0 || days <= 0 {
		return errorResponse(c, "service_id and a positive days are required")
	}

	if err := h.subs.Extend(c.Request().Context(), serviceID, days); err != nil {
		h.logger.Error("extend failed", zap.Uint("service_id", serviceID), zap.Error(err))
		return errorResponse(c, "Failed to extend service")
	}
	return successResponse(c, "Service extended", nil)
}

func (h *ServiceHandler) setStatus(c echo.Context, body map[string]interface{}) error {
	serviceID := uint(getIntField(body, "service_id", 0))
	status := models.ServiceStatus(getStringField(body, "status"))
	if serviceID == 0 {
		return errorResponse(c, "service_id is required")
	}
	if status != models.ServiceActive && status != models.ServiceDisabled {
		return errorResponse(c, "status must be active or disabled")
	}

	if err := h.subs.SetStatus(c.Request().Context(), serviceID, status); err != nil {
		h.logger.Error("set status failed", zap.Uint("service_id", serviceID), zap.Error(err))
		return errorResponse(c, "Failed to set status")
	}
	return successResponse(c, "Status updated", nil)
}

func (h *ServiceHandler) revoke(c echo.Context, body map[string]interface{}) error {
	serviceID := uint(getIntField(body, "service_id", 0))
	if serviceID == 0 {
		return errorResponse(c, "service_id is required")
	}

	url, err := h.subs.Revoke(c.Request().Context(), serviceID)
	if err != nil {
		h.logger.Error("revoke failed", zap.Uint("service_id", serviceID), zap.Error(err))
		return errorResponse(c, "Failed to revoke subscription")
	}
	return successResponse(c, "Subscription revoked", map[string]interface{}{"sub_url": url})
}

func (h *ServiceHandler) delete(c echo.Context, body map[string]interface{}) error {
	serviceID := uint(getIntField(body, "service_id", 0))
	if serviceID == 0 {
		return errorResponse(c, "service_id is required")
	}

	if err := h.subs.Delete(c.Request().Context(), serviceID); err != nil {
		h.logger.Error("service delete failed", zap.Uint("service_id", serviceID), zap.Error(err))
		return errorResponse(c, "Failed to delete service")
	}
	return successResponse(c, "Service deleted", nil)
}
