package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vendbot/internal/models"
	"vendbot/internal/repository"
)

// Verdict enumerates discount evaluation outcomes. Everything except
// VerdictOK is an expected, user-facing result — never an error.
type Verdict string

const (
	VerdictOK                Verdict = "ok"
	VerdictInvalidCode       Verdict = "invalid_code"
	VerdictInactive          Verdict = "inactive"
	VerdictOutOfWindow       Verdict = "out_of_window"
	VerdictBelowMinimum      Verdict = "below_minimum"
	VerdictGlobalCapReached  Verdict = "global_cap_reached"
	VerdictPerUserCapReached Verdict = "per_user_cap_reached"
	VerdictZeroEffect        Verdict = "zero_effect"
)

var hundred = decimal.NewFromInt(100)

// DiscountService validates coupon codes and computes discount amounts.
type DiscountService struct {
	coupons *repository.CouponRepository
	logger  *zap.Logger
}

func NewDiscountService(coupons *repository.CouponRepository, logger *zap.Logger) *DiscountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{coupons: coupons, logger: logger}
}

// Evaluate decides whether a code applies to a prospective order and computes
// the discount. The returned error is reserved for datastore failures; all
// validation outcomes arrive as a Verdict.
func (s *DiscountService) Evaluate(code string, accountID int64, orderAmount decimal.Decimal, now time.Time) (decimal.Decimal, Verdict, error) {
	coupon, err := s.coupons.FindByCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, VerdictInvalidCode, nil
	}
	if err != nil {
		return decimal.Zero, "", err
	}

	if !coupon.Active {
		return decimal.Zero, VerdictInactive, nil
	}
	if coupon.StartAt != nil && now.Before(*coupon.StartAt) {
		return decimal.Zero, VerdictOutOfWindow, nil
	}
	if coupon.EndAt != nil && now.After(*coupon.EndAt) {
		return decimal.Zero, VerdictOutOfWindow, nil
	}
	if coupon.MinOrderAmount != nil && orderAmount.LessThan(*coupon.MinOrderAmount) {
		return decimal.Zero, VerdictBelowMinimum, nil
	}

	if coupon.MaxUses != nil {
		used, err := s.coupons.CountApplied(coupon.ID)
		if err != nil {
			return decimal.Zero, "", err
		}
		if used >= int64(*coupon.MaxUses) {
			return decimal.Zero, VerdictGlobalCapReached, nil
		}
	}
	if coupon.MaxUsesPerUser != nil {
		used, err := s.coupons.CountAppliedByAccount(coupon.ID, accountID)
		if err != nil {
			return decimal.Zero, "", err
		}
		if used >= int64(*coupon.MaxUsesPerUser) {
			return decimal.Zero, VerdictPerUserCapReached, nil
		}
	}

	discount := computeDiscount(coupon, orderAmount)
	if !discount.IsPositive() {
		return decimal.Zero, VerdictZeroEffect, nil
	}
	return discount, VerdictOK, nil
}

// computeDiscount applies the coupon's type, rounds percent discounts to two
// decimals half-up, caps, and clamps at zero.
func computeDiscount(coupon *models.Coupon, amount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.Type {
	case models.CouponPercent:
		discount = amount.Mul(coupon.Value).Div(hundred).Round(2)
	case models.CouponFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}

	if coupon.Cap != nil && discount.GreaterThan(*coupon.Cap) {
		discount = *coupon.Cap
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Redeem evaluates the code and, on success, records an applied redemption.
// The count-then-insert pattern is not race-free for the last remaining use
// of a capped coupon; the caps are a best-effort bound.
func (s *DiscountService) Redeem(code string, accountID int64, orderID string, orderAmount decimal.Decimal, now time.Time) (decimal.Decimal, Verdict, error) {
	discount, verdict, err := s.Evaluate(code, accountID, orderAmount, now)
	if err != nil || verdict != VerdictOK {
		return decimal.Zero, verdict, err
	}

	coupon, err := s.coupons.FindByCode(code)
	if err != nil {
		return decimal.Zero, "", err
	}

	redemption := &models.CouponRedemption{
		CouponID:  coupon.ID,
		AccountID: accountID,
		Amount:    discount,
		Status:    models.RedemptionApplied,
	}
	if orderID != "" {
		redemption.OrderID = &orderID
	}
	if err := s.coupons.CreateRedemption(redemption); err != nil {
		return decimal.Zero, "", err
	}

	s.logger.Info("coupon redeemed",
		zap.String("code", code),
		zap.Int64("account_id", accountID),
		zap.String("discount", discount.String()))
	return discount, VerdictOK, nil
}

// AppliedByOrder returns the applied redemption currently tied to an order,
// or nil when the order carries none.
func (s *DiscountService) AppliedByOrder(orderID string) (*models.CouponRedemption, error) {
	redemption, err := s.coupons.FindAppliedByOrder(orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return redemption, nil
}

// ReverseByOrder reverses every applied redemption tied to an order. Missing
// or already-reversed redemptions are a no-op.
func (s *DiscountService) ReverseByOrder(orderID string) error {
	return s.coupons.ReverseAllByOrder(orderID)
}

// Reverse reverses a redemption by ID. Idempotent.
func (s *DiscountService) Reverse(id uint) error {
	return s.coupons.ReverseRedemption(id)
}
