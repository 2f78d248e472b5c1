package repository

import (
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// CouponRepository handles coupons and their redemptions.
type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) FindByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *CouponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

func (r *CouponRepository) SetActive(id uint, active bool) error {
	return r.db.Model(&models.Coupon{}).Where("id = ?", id).Update("active", active).Error
}

func (r *CouponRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.Coupon{}).Error
}

func (r *CouponRepository) FindAll(limit, page int) ([]models.Coupon, int64, error) {
	var items []models.Coupon
	var total int64

	db := r.db.Model(&models.Coupon{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	if err := db.Order("priority DESC, id ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountApplied counts applied redemptions for a coupon across all accounts.
func (r *CouponRepository) CountApplied(couponID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND status = ?", couponID, models.RedemptionApplied).
		Count(&count).Error
	return count, err
}

// CountAppliedByAccount counts applied redemptions for (coupon, account).
func (r *CouponRepository) CountAppliedByAccount(couponID uint, accountID int64) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND account_id = ? AND status = ?", couponID, accountID, models.RedemptionApplied).
		Count(&count).Error
	return count, err
}

func (r *CouponRepository) CreateRedemption(redemption *models.CouponRedemption) error {
	return r.db.Create(redemption).Error
}

// ReverseRedemption flips an applied redemption to reversed. Idempotent:
// reversing an already-reversed or missing row matches zero rows and is not
// an error.
func (r *CouponRepository) ReverseRedemption(id uint) error {
	return r.db.Model(&models.CouponRedemption{}).
		Where("id = ? AND status = ?", id, models.RedemptionApplied).
		Update("status", models.RedemptionReversed).Error
}

// ReverseAllByOrder flips every applied redemption tied to an order to
// reversed in one update. Idempotent.
func (r *CouponRepository) ReverseAllByOrder(orderID string) error {
	return r.db.Model(&models.CouponRedemption{}).
		Where("order_id = ? AND status = ?", orderID, models.RedemptionApplied).
		Update("status", models.RedemptionReversed).Error
}

// FindAppliedByOrder returns the applied redemption tied to an order, if any.
func (r *CouponRepository) FindAppliedByOrder(orderID string) (*models.CouponRedemption, error) {
	var redemption models.CouponRedemption
	err := r.db.Where("order_id = ? AND status = ?", orderID, models.RedemptionApplied).
		First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}
