package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/repository"
	"vendbot/internal/service"
)

// CouponHandler manages coupon CRUD and dry-run evaluation.
type CouponHandler struct {
	coupons   *repository.CouponRepository
	discounts *service.DiscountService
	logger    *zap.Logger
}

func NewCouponHandler(coupons *repository.CouponRepository, discounts *service.DiscountService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, discounts: discounts, logger: logger}
}

// Handle routes coupon API requests.
// POST /api/coupons
func (h *CouponHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "coupons":
		return h.list(c, body)
	case "coupon_add":
		return h.add(c, body)
	case "coupon_set_active":
		return h.setActive(c, body)
	case "coupon_delete":
		return h.delete(c, body)
	case "coupon_check":
		return h.check(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *CouponHandler) list(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)

	coupons, total, err := h.coupons.FindAll(limit, page)
	if err != nil {
		return errorResponse(c, "Failed to retrieve coupons")
	}
	return successResponse(c, "Successful", paginatedResponse(coupons, total, page, limit))
}

func (h *CouponHandler) add(c echo.Context, body map[string]interface{}) error {
	code := strings.TrimSpace(getStringField(body, "code"))
	typ := models.CouponType(getStringField(body, "type"))
	value, ok := getDecimalField(body, "value")
	if code == "" || !ok {
		return errorResponse(c, "code and value are required")
	}
	if typ != models.CouponPercent && typ != models.CouponFixed {
		return errorResponse(c, "type must be percent or fixed")
	}

	coupon := &models.Coupon{
		Code:      code,
		Type:      typ,
		Value:     value,
		Active:    true,
		Stackable: false,
		Priority:  getIntField(body, "priority", 0),
	}
	if cap, ok := getDecimalField(body, "cap"); ok {
		coupon.Cap = &cap
	}
	if min, ok := getDecimalField(body, "min_order_amount"); ok {
		coupon.MinOrderAmount = &min
	}
	if v := getIntField(body, "max_uses", 0); v > 0 {
		coupon.MaxUses = &v
	}
	if v := getIntField(body, "max_uses_per_user", 0); v > 0 {
		coupon.MaxUsesPerUser = &v
	}
	if s := getStringField(body, "start_at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return errorResponse(c, "start_at must be RFC3339")
		}
		coupon.StartAt = &t
	}
	if s := getStringField(body, "end_at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return errorResponse(c, "end_at must be RFC3339")
		}
		coupon.EndAt = &t
	}

	if err := h.coupons.Create(coupon); err != nil {
		h.logger.Error("coupon create failed", zap.String("code", code), zap.Error(err))
		return errorResponse(c, "Failed to create coupon")
	}
	return successResponse(c, "Coupon created", coupon)
}

func (h *CouponHandler) setActive(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id == 0 {
		return errorResponse(c, "id is required")
	}
	active := getIntField(body, "active", 1) == 1

	if err := h.coupons.SetActive(uint(id), active); err != nil {
		return errorResponse(c, "Failed to update coupon")
	}
	return successResponse(c, "Coupon updated", nil)
}

func (h *CouponHandler) delete(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id == 0 {
		return errorResponse(c, "id is required")
	}
	if err := h.coupons.Delete(uint(id)); err != nil {
		return errorResponse(c, "Failed to delete coupon")
	}
	return successResponse(c, "Coupon deleted", nil)
}

// check evaluates a code against an amount without recording a redemption.
func (h *CouponHandler) check(c echo.Context, body map[string]interface{}) error {
	code := getStringField(body, "code")
	chatID := getInt64Field(body, "chat_id", 0)
	amount, ok := getDecimalField(body, "amount")
	if code == "" || chatID == 0 || !ok {
		return errorResponse(c, "code, chat_id and amount are required")
	}

	discount, verdict, err := h.discounts.Evaluate(code, chatID, amount, time.Now())
	if err != nil {
		h.logger.Error("coupon check failed", zap.String("code", code), zap.Error(err))
		return errorResponse(c, "Failed to evaluate coupon")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"verdict":  verdict,
		"discount": discount,
		"payable":  amount.Sub(discount).Round(2),
	})
}
