package repository

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// ErrInvalidTransition is returned when a status swap is not in the order
// transition table, regardless of what the row currently holds.
var ErrInvalidTransition = errors.New("invalid order status transition")

// OrderRepository handles order rows and their audit trail. Status moves go
// through CompareAndSwapStatus; nothing else writes the status column.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *OrderRepository) FindByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindByAccount(accountID int64, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) FindPending(limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := r.db.Where("status = ?", models.OrderPending).
		Order("created_at ASC").Limit(limit).Find(&orders).Error
	return orders, err
}

// CompareAndSwapStatus moves an order from one status to another with a
// conditional UPDATE. A false return means the row was not in the expected
// status — someone else got there first. This is the sole concurrency guard
// against double-processing; no in-process lock backs it up.
func (r *OrderRepository) CompareAndSwapStatus(id string, from, to models.OrderStatus, extra map[string]interface{}) (bool, error) {
	if !from.CanTransition(to) {
		return false, ErrInvalidTransition
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateDiscount stores the applied coupon discount on a pending order.
func (r *OrderRepository) UpdateDiscount(id string, discount decimal.Decimal) error {
	return r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderPending).
		Update("discount", discount).Error
}

// SetReceipt attaches a receipt to a pending order that has none yet.
// Returns false when the order is not pending or already carries a receipt.
func (r *OrderRepository) SetReceipt(id, fileRef, note string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND receipt_file = ''", id, models.OrderPending).
		Updates(map[string]interface{}{"receipt_file": fileRef, "receipt_note": note})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearReceipt removes a pending order's receipt so a replacement can be
// attached.
func (r *OrderRepository) ClearReceipt(id string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderPending).
		Updates(map[string]interface{}{"receipt_file": "", "receipt_note": ""})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddEvent appends one audit row. Best effort from the caller's point of
// view: a failed audit write never rolls back the mutation it describes.
func (r *OrderRepository) AddEvent(orderID, action string, actorID int64, detail string) error {
	return r.db.Create(&models.OrderEvent{
		OrderID: orderID,
		Action:  action,
		ActorID: actorID,
		Detail:  detail,
		At:      time.Now(),
	}).Error
}

func (r *OrderRepository) Events(orderID string) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&events).Error
	return events, err
}
