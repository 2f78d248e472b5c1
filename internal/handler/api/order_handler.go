package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/service"
)

// OrderHandler covers order lifecycle actions: creation, receipts, coupon
// application and the admin approve/reject decisions.
type OrderHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// Handle routes order API requests.
// POST /api/orders
func (h *OrderHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "order_create":
		return h.create(c, body)
	case "order":
		return h.get(c, body)
	case "orders":
		return h.list(c, body)
	case "order_events":
		return h.events(c, body)
	case "order_coupon":
		return h.applyCoupon(c, body)
	case "order_receipt":
		return h.attachReceipt(c, body)
	case "order_receipt_replace":
		return h.replaceReceipt(c, body)
	case "order_approve":
		return h.approve(c, body)
	case "order_reject":
		return h.reject(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *OrderHandler) create(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	templateID := getInt64Field(body, "template_id", 0)
	if chatID == 0 || templateID == 0 {
		return errorResponse(c, "chat_id and template_id are required")
	}

	order, err := h.orders.Create(chatID, templateID)
	if err != nil {
		h.logger.Error("order create failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return errorResponse(c, "Failed to create order")
	}
	return successResponse(c, "Order created", order)
}

func (h *OrderHandler) get(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	if orderID == "" {
		return errorResponse(c, "order_id is required")
	}
	order, err := h.orders.Get(orderID)
	if err != nil {
		return errorResponse(c, "Order not found")
	}
	return successResponse(c, "Successful", order)
}

func (h *OrderHandler) list(c echo.Context, body map[string]interface{}) error {
	chatID := getInt64Field(body, "chat_id", 0)
	if chatID == 0 {
		return errorResponse(c, "chat_id is required")
	}
	limit := getIntField(body, "limit", 50)

	orders, err := h.orders.ListByAccount(chatID, limit)
	if err != nil {
		return errorResponse(c, "Failed to retrieve orders")
	}
	return successResponse(c, "Successful", orders)
}

func (h *OrderHandler) events(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	if orderID == "" {
		return errorResponse(c, "order_id is required")
	}
	events, err := h.orders.EventsOf(orderID)
	if err != nil {
		return errorResponse(c, "Failed to retrieve events")
	}
	return successResponse(c, "Successful", events)
}

func (h *OrderHandler) applyCoupon(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	code := getStringField(body, "code")
	if orderID == "" || code == "" {
		return errorResponse(c, "order_id and code are required")
	}

	discount, verdict, err := h.orders.ApplyCoupon(orderID, code)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotPending) {
			return errorResponse(c, "Order is not pending")
		}
		h.logger.Error("coupon apply failed", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Failed to apply coupon")
	}
	if verdict != service.VerdictOK {
		return errorResponse(c, string(verdict))
	}
	return successResponse(c, "Coupon applied", map[string]interface{}{
		"discount": discount,
	})
}

func (h *OrderHandler) attachReceipt(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	file := getStringField(body, "file")
	if orderID == "" || file == "" {
		return errorResponse(c, "order_id and file are required")
	}
	chatID := getInt64Field(body, "chat_id", 0)
	note := getStringField(body, "note")

	err := h.orders.AttachReceipt(orderID, chatID, file, note)
	switch {
	case errors.Is(err, service.ErrReceiptExists):
		return errorResponse(c, "Receipt already attached")
	case errors.Is(err, service.ErrOrderNotPending):
		return errorResponse(c, "Order is not pending")
	case err != nil:
		h.logger.Error("receipt attach failed", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Failed to attach receipt")
	}
	return successResponse(c, "Receipt attached", nil)
}

func (h *OrderHandler) replaceReceipt(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	file := getStringField(body, "file")
	if orderID == "" || file == "" {
		return errorResponse(c, "order_id and file are required")
	}
	chatID := getInt64Field(body, "chat_id", 0)
	note := getStringField(body, "note")

	err := h.orders.ReplaceReceipt(orderID, chatID, file, note)
	switch {
	case errors.Is(err, service.ErrOrderNotPending):
		return errorResponse(c, "Order is not pending")
	case err != nil:
		h.logger.Error("receipt replace failed", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Failed to replace receipt")
	}
	return successResponse(c, "Receipt replaced", nil)
}

func (h *OrderHandler) approve(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	if orderID == "" {
		return errorResponse(c, "order_id is required")
	}
	adminID := getInt64Field(body, "admin_id", 0)

	svc, err := h.orders.Approve(c.Request().Context(), orderID, adminID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return errorResponse(c, "Order already processed")
		}
		var pf *service.ProvisionFailedError
		if errors.As(err, &pf) {
			return errorResponse(c, "Provisioning failed, order stays paid; approve again to retry")
		}
		h.logger.Error("order approve failed", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Failed to approve order")
	}
	return successResponse(c, "Order provisioned", svc)
}

func (h *OrderHandler) reject(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "order_id")
	if orderID == "" {
		return errorResponse(c, "order_id is required")
	}
	adminID := getInt64Field(body, "admin_id", 0)
	reason := getStringField(body, "reason")

	if err := h.orders.Reject(orderID, adminID, reason); err != nil {
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return errorResponse(c, "Order already processed")
		}
		h.logger.Error("order reject failed", zap.String("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Failed to reject order")
	}
	return successResponse(c, "Order rejected", nil)
}
