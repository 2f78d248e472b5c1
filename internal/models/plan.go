package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan maps to the `plans` table. Rows are synced from the panel's user
// templates and upserted by template ID; sync never flips Active back on for
// a plan an admin deactivated by hand.
type Plan struct {
	ID           uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TemplateID   int64           `gorm:"column:template_id;uniqueIndex;not null" json:"template_id"`
	Title        string          `gorm:"column:title;size:200;not null" json:"title"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	Currency     string          `gorm:"column:currency;size:10;not null;default:'IRR'" json:"currency"`
	DurationDays int             `gorm:"column:duration_days;not null;default:0" json:"duration_days"`
	DataLimit    int64           `gorm:"column:data_limit;not null;default:0" json:"data_limit"`
	Active       bool            `gorm:"column:active;not null" json:"active"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

// PlanSnapshot is the immutable copy of plan fields embedded into an Order at
// creation time, so later plan edits cannot rewrite order history.
type PlanSnapshot struct {
	TemplateID   int64           `gorm:"column:plan_template_id" json:"template_id"`
	Title        string          `gorm:"column:plan_title;size:200" json:"title"`
	Price        decimal.Decimal `gorm:"column:plan_price;type:decimal(18,2)" json:"price"`
	Currency     string          `gorm:"column:plan_currency;size:10" json:"currency"`
	DurationDays int             `gorm:"column:plan_duration_days" json:"duration_days"`
	DataLimit    int64           `gorm:"column:plan_data_limit" json:"data_limit"`
}

// SnapshotOf captures the order-facing fields of a plan.
func SnapshotOf(p *Plan) PlanSnapshot {
	return PlanSnapshot{
		TemplateID:   p.TemplateID,
		Title:        p.Title,
		Price:        p.Price,
		Currency:     p.Currency,
		DurationDays: p.DurationDays,
		DataLimit:    p.DataLimit,
	}
}
