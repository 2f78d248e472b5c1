package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType selects how a coupon's value is interpreted.
type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

// Coupon maps to the `coupons` table. Created and toggled by admins only;
// user-facing flows never mutate coupons.
type Coupon struct {
	ID             uint             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code           string           `gorm:"column:code;size:100;uniqueIndex;not null" json:"code"`
	Type           CouponType       `gorm:"column:type;size:20;not null" json:"type"`
	Value          decimal.Decimal  `gorm:"column:value;type:decimal(18,2);not null" json:"value"`
	Cap            *decimal.Decimal `gorm:"column:cap;type:decimal(18,2)" json:"cap,omitempty"`
	MinOrderAmount *decimal.Decimal `gorm:"column:min_order_amount;type:decimal(18,2)" json:"min_order_amount,omitempty"`
	// No column default on purpose: gorm skips zero-value fields that carry
	// a default tag, which would flip Active=false to true on insert.
	Active bool `gorm:"column:active;not null" json:"active"`
	StartAt        *time.Time       `gorm:"column:start_at" json:"start_at,omitempty"`
	EndAt          *time.Time       `gorm:"column:end_at" json:"end_at,omitempty"`
	MaxUses        *int             `gorm:"column:max_uses" json:"max_uses,omitempty"`
	MaxUsesPerUser *int             `gorm:"column:max_uses_per_user" json:"max_uses_per_user,omitempty"`
	Stackable      bool             `gorm:"column:stackable;not null;default:false" json:"stackable"`
	Priority       int              `gorm:"column:priority;not null;default:0" json:"priority"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// RedemptionStatus is the state of one coupon application.
type RedemptionStatus string

const (
	RedemptionApplied  RedemptionStatus = "applied"
	RedemptionReversed RedemptionStatus = "reversed"
)

// CouponRedemption maps to the `coupon_redemptions` table. Usage caps are
// enforced by counting applied rows before insert, not by a DB constraint.
type CouponRedemption struct {
	ID        uint             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CouponID  uint             `gorm:"column:coupon_id;index;not null" json:"coupon_id"`
	AccountID int64            `gorm:"column:account_id;index;not null" json:"account_id"`
	OrderID   *string          `gorm:"column:order_id;size:40;index" json:"order_id,omitempty"`
	Amount    decimal.Decimal  `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Status    RedemptionStatus `gorm:"column:status;size:20;not null;default:'applied'" json:"status"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
