package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/provision"
	"vendbot/internal/repository"
)

// Notifier sends operator-facing messages. The chat frontend owns rendering;
// this is plain text only.
type Notifier interface {
	NotifyAdmin(text string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyAdmin(string) {}

// OrderService drives a purchase from creation through payment confirmation
// to provisioning. All status moves go through conditional updates in the
// repository; the datastore's row atomicity is the only concurrency guard.
type OrderService struct {
	orders      *repository.OrderRepository
	plans       *repository.PlanRepository
	accounts    *repository.AccountRepository
	services    *repository.ServiceRepository
	discounts   *DiscountService
	provisioner *provision.Service
	notifier    Notifier
	logger      *zap.Logger
}

func NewOrderService(
	orders *repository.OrderRepository,
	plans *repository.PlanRepository,
	accounts *repository.AccountRepository,
	services *repository.ServiceRepository,
	discounts *DiscountService,
	provisioner *provision.Service,
	notifier Notifier,
	logger *zap.Logger,
) *OrderService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:      orders,
		plans:       plans,
		accounts:    accounts,
		services:    services,
		discounts:   discounts,
		provisioner: provisioner,
		notifier:    notifier,
		logger:      logger,
	}
}

// Create opens a pending order for a plan, snapshotting the plan's fields at
// this instant so later plan edits cannot rewrite the purchase.
func (s *OrderService) Create(accountID int64, planTemplateID int64) (*models.Order, error) {
	if _, err := s.accounts.FindOrCreate(accountID); err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByTemplateID(planTemplateID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %d is not purchasable", planTemplateID)
	}

	order := &models.Order{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		PlanID:       &plan.ID,
		PlanSnapshot: models.SnapshotOf(plan),
		Status:       models.OrderPending,
		Amount:       plan.Price,
		Discount:     decimal.Zero,
	}
	if err := s.orders.Create(order); err != nil {
		return nil, err
	}
	s.audit(order.ID, "create", accountID, plan.Title)
	return order, nil
}

// ApplyCoupon redeems a code against a pending order and stores the discount
// on the order row. Applying a second code swaps coupons: the prior
// redemption is reversed so its usage-cap slot frees up, and only the new
// one stays applied.
func (s *OrderService) ApplyCoupon(orderID, code string) (decimal.Decimal, Verdict, error) {
	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if order.Status != models.OrderPending {
		return decimal.Zero, "", ErrOrderNotPending
	}

	prior, err := s.discounts.AppliedByOrder(order.ID)
	if err != nil {
		return decimal.Zero, "", err
	}

	discount, verdict, err := s.discounts.Redeem(code, order.AccountID, order.ID, order.Amount, time.Now())
	if err != nil || verdict != VerdictOK {
		return decimal.Zero, verdict, err
	}

	if prior != nil {
		if err := s.discounts.Reverse(prior.ID); err != nil {
			return decimal.Zero, "", err
		}
	}

	if err := s.orders.UpdateDiscount(orderID, discount); err != nil {
		return decimal.Zero, "", err
	}
	s.audit(orderID, "coupon", order.AccountID, code)
	return discount, VerdictOK, nil
}

// AttachReceipt stores the first receipt on a pending order. A second attach
// fails with ErrReceiptExists; callers confirm and use ReplaceReceipt.
func (s *OrderService) AttachReceipt(orderID string, actorID int64, fileRef, note string) error {
	ok, err := s.orders.SetReceipt(orderID, fileRef, note)
	if err != nil {
		return err
	}
	if !ok {
		order, err := s.orders.FindByID(orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return ErrOrderNotPending
		}
		return ErrReceiptExists
	}

	s.audit(orderID, "receipt_attach", actorID, fileRef)
	s.notifier.NotifyAdmin(fmt.Sprintf("Receipt attached to order %s", orderID))
	return nil
}

// ReplaceReceipt clears the existing receipt and attaches the new one. Both
// mutations are audited.
func (s *OrderService) ReplaceReceipt(orderID string, actorID int64, fileRef, note string) error {
	ok, err := s.orders.ClearReceipt(orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderNotPending
	}
	s.audit(orderID, "receipt_clear", actorID, "")
	return s.AttachReceipt(orderID, actorID, fileRef, note)
}

// Approve confirms payment and provisions the service.
//
// pending -> paid is a compare-and-swap; when it misses, a still-paid order
// means an earlier approval's provisioning did not finish and we resume it,
// anything else is ErrAlreadyProcessed. Provisioning failure leaves the order
// paid so the payment record survives and a re-approval retries. On success
// a second compare-and-swap moves paid -> provisioned, so two racing
// approvals produce exactly one provisioned transition.
func (s *OrderService) Approve(ctx context.Context, orderID string, adminID int64) (*models.Service, error) {
	now := time.Now()
	swapped, err := s.orders.CompareAndSwapStatus(orderID, models.OrderPending, models.OrderPaid,
		map[string]interface{}{"paid_at": now})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return nil, err
	}
	if !swapped && order.Status != models.OrderPaid {
		return nil, ErrAlreadyProcessed
	}
	if swapped {
		s.audit(orderID, "approve", adminID, "")
	}

	username := panelUsernameForOrder(order)
	user, err := s.provisioner.ProvisionForPlan(ctx, username, order.PlanSnapshot)
	if err != nil {
		s.logger.Error("provisioning failed, order stays paid",
			zap.String("order_id", orderID), zap.Error(err))
		s.notifier.NotifyAdmin(fmt.Sprintf("Provisioning failed for order %s, re-approve to retry", orderID))
		return nil, &ProvisionFailedError{OrderID: orderID, Err: err}
	}

	svc, err := s.ensureServiceRow(order, username, user.SubURL)
	if err != nil {
		return nil, err
	}

	swapped, err = s.orders.CompareAndSwapStatus(orderID, models.OrderPaid, models.OrderProvisioned,
		map[string]interface{}{"provisioned_at": time.Now()})
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrAlreadyProcessed
	}

	s.audit(orderID, "provision", adminID, username)
	s.logger.Info("order provisioned",
		zap.String("order_id", orderID), zap.String("panel_username", username))
	return svc, nil
}

// Reject fails a pending order and reverses any coupon redemption tied to it.
func (s *OrderService) Reject(orderID string, adminID int64, reason string) error {
	swapped, err := s.orders.CompareAndSwapStatus(orderID, models.OrderPending, models.OrderFailed, nil)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrAlreadyProcessed
	}

	if err := s.discounts.ReverseByOrder(orderID); err != nil {
		s.logger.Warn("failed to reverse coupon redemption",
			zap.String("order_id", orderID), zap.Error(err))
	}
	s.audit(orderID, "reject", adminID, reason)
	return nil
}

func (s *OrderService) Get(orderID string) (*models.Order, error) {
	return s.orders.FindByID(orderID)
}

func (s *OrderService) ListByAccount(accountID int64, limit int) ([]models.Order, error) {
	return s.orders.FindByAccount(accountID, limit)
}

// EventsOf returns the audit trail for an order, oldest first.
func (s *OrderService) EventsOf(orderID string) ([]models.OrderEvent, error) {
	return s.orders.Events(orderID)
}

// ensureServiceRow finds or creates the local row for a provisioned panel
// user. Re-approvals after a partial failure land on the existing row.
func (s *OrderService) ensureServiceRow(order *models.Order, username, subURL string) (*models.Service, error) {
	svc, err := s.services.FindByPanelUsername(username)
	if err == nil {
		return svc, nil
	}
	svc = &models.Service{
		AccountID:     order.AccountID,
		PanelUsername: username,
		Status:        models.ServiceActive,
		SubToken:      subURL,
	}
	if err := s.services.Create(svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// panelUsernameForOrder derives a stable panel username from the order ID, so
// a retried approval provisions the same panel user instead of a second one.
func panelUsernameForOrder(order *models.Order) string {
	return fmt.Sprintf("u%d_%s", order.AccountID, strings.ReplaceAll(order.ID, "-", "")[:8])
}

func (s *OrderService) audit(orderID, action string, actorID int64, detail string) {
	if err := s.orders.AddEvent(orderID, action, actorID, detail); err != nil {
		s.logger.Warn("failed to record order event",
			zap.String("order_id", orderID), zap.String("action", action), zap.Error(err))
	}
}
