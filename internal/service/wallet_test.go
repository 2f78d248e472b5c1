package service

import (
	"errors"
	"testing"

	"vendbot/internal/models"
)

func TestWalletCreditAndDebit(t *testing.T) {
	e := newEnv(t)
	if _, err := e.accounts.FindOrCreate(900); err != nil {
		t.Fatal(err)
	}

	if err := e.wallet.Credit(900, dec("50000"), "topup-1", "admin top-up"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := e.wallet.Debit(900, dec("20000"), "buy-1", "data top-up"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance, err := e.wallet.Balance(900)
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(dec("30000")) {
		t.Errorf("balance = %s, want 30000", balance)
	}

	history, err := e.wallet.History(900, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(history))
	}
	// Newest first.
	if history[0].Direction != models.WalletDebit || history[1].Direction != models.WalletCredit {
		t.Errorf("ledger order wrong: %v then %v", history[0].Direction, history[1].Direction)
	}
}

func TestDebitInsufficientBalanceStatesShortfall(t *testing.T) {
	e := newEnv(t)
	if _, err := e.accounts.FindOrCreate(901); err != nil {
		t.Fatal(err)
	}
	if err := e.wallet.Credit(901, dec("1000"), "topup", ""); err != nil {
		t.Fatal(err)
	}

	err := e.wallet.Debit(901, dec("2500"), "buy", "")
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want *InsufficientBalanceError", err)
	}
	if !insufficient.Shortfall.Equal(dec("1500")) {
		t.Errorf("shortfall = %s, want 1500", insufficient.Shortfall)
	}

	// Nothing was written: balance intact, no debit ledger row.
	balance, _ := e.wallet.Balance(901)
	if !balance.Equal(dec("1000")) {
		t.Errorf("balance = %s, want 1000", balance)
	}
	history, _ := e.wallet.History(901, 10)
	if len(history) != 1 {
		t.Errorf("ledger rows = %d, want 1 (credit only)", len(history))
	}
}

func TestDebitCannotGoNegative(t *testing.T) {
	e := newEnv(t)
	if _, err := e.accounts.FindOrCreate(902); err != nil {
		t.Fatal(err)
	}
	if err := e.wallet.Credit(902, dec("100"), "topup", ""); err != nil {
		t.Fatal(err)
	}

	if err := e.wallet.Debit(902, dec("100"), "a", ""); err != nil {
		t.Fatalf("exact debit: %v", err)
	}
	var insufficient *InsufficientBalanceError
	if err := e.wallet.Debit(902, dec("0.01"), "b", ""); !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want *InsufficientBalanceError", err)
	}
}
