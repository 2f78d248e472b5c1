package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an Account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account maps to the `accounts` table.
// Primary key is the Telegram chat ID. Accounts are never hard-deleted;
// disabling is a status flip only.
type Account struct {
	ID            int64           `gorm:"column:id;primaryKey" json:"id"`
	PanelUsername string          `gorm:"column:panel_username;size:120;uniqueIndex" json:"panel_username"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(18,2);not null;default:0" json:"balance"`
	Status        AccountStatus   `gorm:"column:status;size:20;not null;default:'active'" json:"status"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// ServiceStatus is the state of a provisioned panel account.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceDisabled ServiceStatus = "disabled"
)

// Service maps to the `services` table. One row per provisioned panel user;
// an account may own several.
type Service struct {
	ID            uint          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AccountID     int64         `gorm:"column:account_id;index;not null" json:"account_id"`
	PanelUsername string        `gorm:"column:panel_username;size:120;uniqueIndex;not null" json:"panel_username"`
	Status        ServiceStatus `gorm:"column:status;size:20;not null;default:'active'" json:"status"`
	SubToken      string        `gorm:"column:sub_token;type:text" json:"sub_token"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Service) TableName() string {
	return "services"
}
