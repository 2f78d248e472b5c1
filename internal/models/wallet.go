package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletDirection marks a ledger row as money in or money out.
type WalletDirection string

const (
	WalletCredit WalletDirection = "credit"
	WalletDebit  WalletDirection = "debit"
)

// WalletTransaction maps to the `wallet_transactions` table. One row per
// balance change, written in the same DB transaction as the change itself.
type WalletTransaction struct {
	ID        uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AccountID int64           `gorm:"column:account_id;index;not null" json:"account_id"`
	Direction WalletDirection `gorm:"column:direction;size:10;not null" json:"direction"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Reference string          `gorm:"column:reference;size:120" json:"reference"`
	Note      string          `gorm:"column:note;size:300" json:"note"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
