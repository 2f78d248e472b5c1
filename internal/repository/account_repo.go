package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// AccountRepository handles account and wallet database operations.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByID finds an account by Telegram chat ID.
func (r *AccountRepository) FindByID(id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindOrCreate returns the account for a chat ID, creating it with a fresh
// panel username on first interaction.
func (r *AccountRepository) FindOrCreate(id int64) (*models.Account, error) {
	account, err := r.FindByID(id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = &models.Account{
		ID:            id,
		PanelUsername: generatePanelUsername(id),
		Balance:       decimal.Zero,
		Status:        models.AccountActive,
	}
	if err := r.db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func generatePanelUsername(id int64) string {
	suffix := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	return fmt.Sprintf("u%d_%s", id, suffix)
}

// SetStatus flips the account lifecycle flag. Accounts are never deleted.
func (r *AccountRepository) SetStatus(id int64, status models.AccountStatus) error {
	return r.db.Model(&models.Account{}).Where("id = ?", id).Update("status", status).Error
}

// Debit subtracts amount from the balance and writes the ledger row in one
// transaction. The conditional UPDATE only matches when the balance covers
// the amount, so a concurrent debit cannot drive it negative. Returns false
// without error when funds are insufficient.
func (r *AccountRepository) Debit(accountID int64, amount decimal.Decimal, reference, note string) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ? AND balance >= ?", accountID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Create(&models.WalletTransaction{
			AccountID: accountID,
			Direction: models.WalletDebit,
			Amount:    amount,
			Reference: reference,
			Note:      note,
		}).Error
	})
	return applied, err
}

// Credit adds amount to the balance and writes the ledger row in one
// transaction.
func (r *AccountRepository) Credit(accountID int64, amount decimal.Decimal, reference, note string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("id = ?", accountID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&models.WalletTransaction{
			AccountID: accountID,
			Direction: models.WalletCredit,
			Amount:    amount,
			Reference: reference,
			Note:      note,
		}).Error
	})
}

// Transactions returns the account's ledger, newest first.
func (r *AccountRepository) Transactions(accountID int64, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txs []models.WalletTransaction
	err := r.db.Where("account_id = ?", accountID).
		Order("id DESC").Limit(limit).Find(&txs).Error
	return txs, err
}
