package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"vendbot/internal/panel"
)

// ErrAlreadyProcessed means a status compare-and-swap matched no row: another
// actor handled the order first. Soft outcome, not an alarm.
var ErrAlreadyProcessed = errors.New("order already processed")

// ErrOrderNotPending is returned by receipt operations on a settled order.
var ErrOrderNotPending = errors.New("order is not pending")

// ErrReceiptExists means the order already carries a receipt; replacing it
// requires an explicit replace call that clears the old one first.
var ErrReceiptExists = errors.New("order already has a receipt")

// ErrTrialAlreadyUsed means the account burned its trial eligibility.
var ErrTrialAlreadyUsed = errors.New("trial already used")

// ProvisionFailedError wraps a panel failure during approval. The order stays
// paid; re-approving retries provisioning.
type ProvisionFailedError struct {
	OrderID string
	Err     error
}

func (e *ProvisionFailedError) Error() string {
	return fmt.Sprintf("provisioning failed for order %s: %v", e.OrderID, e.Err)
}

func (e *ProvisionFailedError) Unwrap() error { return e.Err }

// InsufficientBalanceError carries the shortfall so the frontend can tell the
// user how much to top up.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Balance   decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s, have %s (short %s)",
		e.Required, e.Balance, e.Shortfall)
}

func isNotFound(err error) bool {
	return errors.Is(err, panel.ErrNotFound)
}
