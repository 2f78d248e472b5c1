package service

import (
	"context"
	"errors"
	"testing"

	"vendbot/internal/models"
	"vendbot/internal/panel"
)

func TestProvisionTrialOncePerAccount(t *testing.T) {
	e := newEnv(t)

	svc, err := e.subs.ProvisionTrial(context.Background(), 700)
	if err != nil {
		t.Fatalf("trial: %v", err)
	}
	if e.panel.users[svc.PanelUsername] == nil {
		t.Fatal("panel user missing")
	}

	if _, err := e.subs.ProvisionTrial(context.Background(), 700); !errors.Is(err, ErrTrialAlreadyUsed) {
		t.Fatalf("second trial err = %v, want ErrTrialAlreadyUsed", err)
	}
}

func TestGrantPlanFreshUsername(t *testing.T) {
	e := newEnv(t)
	seedPlan(t, e)

	svc, err := e.subs.GrantPlan(context.Background(), 701, 101, UsernameFresh)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	user := e.panel.users[svc.PanelUsername]
	if user == nil {
		t.Fatal("panel user missing")
	}
	if user.DataLimit != 20<<30 {
		t.Errorf("data limit = %d, want %d", user.DataLimit, int64(20)<<30)
	}

	// Granting again lands on the same service row.
	again, err := e.subs.GrantPlan(context.Background(), 701, 101, UsernameFresh)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if again.ID != svc.ID {
		t.Errorf("second grant created a new service row")
	}
}

func TestAddDataDebitsWalletAndRefundsOnPanelFailure(t *testing.T) {
	e := newEnv(t)
	if _, err := e.accounts.FindOrCreate(702); err != nil {
		t.Fatal(err)
	}
	if err := e.wallet.Credit(702, dec("100000"), "topup", ""); err != nil {
		t.Fatal(err)
	}

	e.panel.users["svc_user"] = &panel.User{Username: "svc_user", DataLimit: 5 << 30}
	row := &models.Service{AccountID: 702, PanelUsername: "svc_user", Status: models.ServiceActive}
	if err := e.services.Create(row); err != nil {
		t.Fatal(err)
	}

	if err := e.subs.AddData(context.Background(), row.ID, 2, dec("10000")); err != nil {
		t.Fatalf("add data: %v", err)
	}
	if got := e.panel.users["svc_user"].DataLimit; got != 7<<30 {
		t.Errorf("panel limit = %d, want %d", got, int64(7)<<30)
	}
	balance, _ := e.wallet.Balance(702)
	if !balance.Equal(dec("80000")) {
		t.Errorf("balance = %s, want 80000", balance)
	}

	// Panel failure after debit refunds the wallet.
	e.panel.failNext = &panel.TransientError{Attempts: 3, Err: errors.New("down")}
	if err := e.subs.AddData(context.Background(), row.ID, 1, dec("10000")); err == nil {
		t.Fatal("expected panel failure")
	}
	balance, _ = e.wallet.Balance(702)
	if !balance.Equal(dec("80000")) {
		t.Errorf("balance = %s after refund, want 80000", balance)
	}
}

func TestAddDataInsufficientBalanceLeavesPanelUntouched(t *testing.T) {
	e := newEnv(t)
	if _, err := e.accounts.FindOrCreate(703); err != nil {
		t.Fatal(err)
	}

	e.panel.users["poor_user"] = &panel.User{Username: "poor_user", DataLimit: 5 << 30}
	row := &models.Service{AccountID: 703, PanelUsername: "poor_user", Status: models.ServiceActive}
	if err := e.services.Create(row); err != nil {
		t.Fatal(err)
	}

	err := e.subs.AddData(context.Background(), row.ID, 2, dec("10000"))
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want *InsufficientBalanceError", err)
	}
	if got := e.panel.users["poor_user"].DataLimit; got != 5<<30 {
		t.Errorf("panel limit changed to %d on failed purchase", got)
	}
}

func TestSetStatusMirrorsLocally(t *testing.T) {
	e := newEnv(t)
	e.panel.users["flip_user"] = &panel.User{Username: "flip_user", Status: "active"}
	row := &models.Service{AccountID: 704, PanelUsername: "flip_user", Status: models.ServiceActive}
	if err := e.services.Create(row); err != nil {
		t.Fatal(err)
	}

	if err := e.subs.SetStatus(context.Background(), row.ID, models.ServiceDisabled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if e.panel.users["flip_user"].Status != "disabled" {
		t.Error("panel status not updated")
	}
	local, _ := e.services.FindByID(row.ID)
	if local.Status != models.ServiceDisabled {
		t.Error("local status not mirrored")
	}
}

func TestDeleteRemovesPanelUserAndRow(t *testing.T) {
	e := newEnv(t)
	e.panel.users["gone_user"] = &panel.User{Username: "gone_user"}
	row := &models.Service{AccountID: 705, PanelUsername: "gone_user", Status: models.ServiceActive}
	if err := e.services.Create(row); err != nil {
		t.Fatal(err)
	}

	if err := e.subs.Delete(context.Background(), row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := e.panel.users["gone_user"]; ok {
		t.Error("panel user still present")
	}
	if _, err := e.services.FindByID(row.ID); err == nil {
		t.Error("service row still present")
	}
}
