package service

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/repository"
)

// WalletService manages the internal pay-as-you-go balance. Every balance
// change runs as one datastore transaction together with its ledger row.
type WalletService struct {
	accounts *repository.AccountRepository
	logger   *zap.Logger
}

func NewWalletService(accounts *repository.AccountRepository, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{accounts: accounts, logger: logger}
}

// Balance returns the current balance.
func (s *WalletService) Balance(accountID int64) (decimal.Decimal, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Debit withdraws amount. When the balance cannot cover it, the returned
// InsufficientBalanceError states the shortfall and nothing is written.
func (s *WalletService) Debit(accountID int64, amount decimal.Decimal, reference, note string) error {
	applied, err := s.accounts.Debit(accountID, amount, reference, note)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return err
	}
	return &InsufficientBalanceError{
		Required:  amount,
		Balance:   account.Balance,
		Shortfall: amount.Sub(account.Balance),
	}
}

// Credit deposits amount (admin top-up or refund).
func (s *WalletService) Credit(accountID int64, amount decimal.Decimal, reference, note string) error {
	if err := s.accounts.Credit(accountID, amount, reference, note); err != nil {
		return err
	}
	s.logger.Info("wallet credited",
		zap.Int64("account_id", accountID), zap.String("amount", amount.String()))
	return nil
}

// History returns recent ledger rows, newest first.
func (s *WalletService) History(accountID int64, limit int) ([]models.WalletTransaction, error) {
	return s.accounts.Transactions(accountID, limit)
}
