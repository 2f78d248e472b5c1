package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a closed enum over an order's lifecycle.
type OrderStatus string

const (
	OrderPending     OrderStatus = "pending"
	OrderPaid        OrderStatus = "paid"
	OrderProvisioned OrderStatus = "provisioned"
	OrderFailed      OrderStatus = "failed"
)

// orderTransitions is the full transition table. Anything not listed is
// rejected; provisioned and failed are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed},
	OrderPaid:    {OrderProvisioned},
}

// CanTransition reports whether from -> to is a legal order move.
func (from OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order maps to the `orders` table. One purchase attempt: the plan fields are
// snapshotted at creation and never re-read from the plans table.
type Order struct {
	ID        string `gorm:"column:id;primaryKey;size:40" json:"id"`
	AccountID int64  `gorm:"column:account_id;index;not null" json:"account_id"`
	PlanID    *uint  `gorm:"column:plan_id" json:"plan_id,omitempty"`

	PlanSnapshot `gorm:"embedded" json:"plan"`

	Status        OrderStatus     `gorm:"column:status;size:20;index;not null;default:'pending'" json:"status"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Discount      decimal.Decimal `gorm:"column:discount;type:decimal(18,2);not null;default:0" json:"discount"`
	ReceiptFile   string          `gorm:"column:receipt_file;size:300" json:"receipt_file"`
	ReceiptNote   string          `gorm:"column:receipt_note;type:text" json:"receipt_note"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ProvisionedAt *time.Time      `gorm:"column:provisioned_at" json:"provisioned_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderEvent maps to the `order_events` table. One audit row per order
// mutation (create, receipt attach/clear, approve, reject).
type OrderEvent struct {
	ID      uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID string    `gorm:"column:order_id;size:40;index;not null" json:"order_id"`
	Action  string    `gorm:"column:action;size:40;not null" json:"action"`
	ActorID int64     `gorm:"column:actor_id" json:"actor_id"`
	Detail  string    `gorm:"column:detail;type:text" json:"detail"`
	At      time.Time `gorm:"column:at;autoCreateTime" json:"at"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}
