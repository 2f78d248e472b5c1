package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vendbot/internal/models"
	"vendbot/internal/panel"
	"vendbot/internal/provision"
	"vendbot/internal/repository"
)

// newTestDB opens a fresh in-memory database migrated with all models.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Account{},
		&models.Service{},
		&models.Plan{},
		&models.Order{},
		&models.OrderEvent{},
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.WalletTransaction{},
		&models.Setting{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stubPanel is a minimal in-memory panel.API for service-level tests.
type stubPanel struct {
	users     map[string]*panel.User
	templates []panel.UserTemplate
	failNext  error
}

func newStubPanel() *stubPanel {
	return &stubPanel{users: make(map[string]*panel.User)}
}

func (p *stubPanel) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *stubPanel) Authenticate(ctx context.Context) error { return nil }

func (p *stubPanel) GetUser(ctx context.Context, username string) (*panel.User, error) {
	u, ok := p.users[username]
	if !ok {
		return nil, panel.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (p *stubPanel) CreateUser(ctx context.Context, req panel.CreateUserRequest) (*panel.User, error) {
	if err := p.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := p.users[req.Username]; ok {
		return nil, panel.ErrAlreadyExists
	}
	u := &panel.User{
		Username:  req.Username,
		Status:    "active",
		DataLimit: req.DataLimit,
		Expire:    req.Expire,
		SubURL:    "https://sub.example/" + req.Username,
	}
	p.users[req.Username] = u
	copied := *u
	return &copied, nil
}

func (p *stubPanel) ModifyUser(ctx context.Context, username string, req panel.ModifyUserRequest) (*panel.User, error) {
	if err := p.takeFailure(); err != nil {
		return nil, err
	}
	u, ok := p.users[username]
	if !ok {
		return nil, panel.ErrNotFound
	}
	if req.Status != "" {
		u.Status = req.Status
	}
	if req.DataLimit != nil {
		u.DataLimit = *req.DataLimit
	}
	if req.Expire != nil {
		u.Expire = *req.Expire
	}
	copied := *u
	return &copied, nil
}

func (p *stubPanel) DeleteUser(ctx context.Context, username string) error {
	if _, ok := p.users[username]; !ok {
		return panel.ErrNotFound
	}
	delete(p.users, username)
	return nil
}

func (p *stubPanel) ResetUser(ctx context.Context, username string) error { return nil }

func (p *stubPanel) RevokeSubscription(ctx context.Context, username string) (string, error) {
	return "https://sub.example/" + username + "/rotated", nil
}

func (p *stubPanel) ListExpired(ctx context.Context, before int64) ([]string, error) {
	return nil, nil
}

func (p *stubPanel) DeleteExpired(ctx context.Context, before int64) ([]string, error) {
	return nil, panel.ErrNotFound
}

func (p *stubPanel) GetInboundTags(ctx context.Context) ([]string, error) { return nil, nil }

func (p *stubPanel) GetUserTemplates(ctx context.Context) ([]panel.UserTemplate, error) {
	return p.templates, nil
}

func (p *stubPanel) GetSystemStats(ctx context.Context) (*panel.SystemStats, error) {
	return &panel.SystemStats{Version: "0.0.0-test"}, nil
}

// env bundles everything a service test needs.
type env struct {
	db       *gorm.DB
	panel    *stubPanel
	accounts *repository.AccountRepository
	services *repository.ServiceRepository
	plans    *repository.PlanRepository
	orders   *repository.OrderRepository
	coupons  *repository.CouponRepository
	settings *repository.SettingRepository

	wallet    *WalletService
	discounts *DiscountService
	orderSvc  *OrderService
	subs      *SubscriptionService
	planSvc   *PlanService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := newTestDB(t)
	p := newStubPanel()

	e := &env{
		db:       db,
		panel:    p,
		accounts: repository.NewAccountRepository(db),
		services: repository.NewServiceRepository(db),
		plans:    repository.NewPlanRepository(db),
		orders:   repository.NewOrderRepository(db),
		coupons:  repository.NewCouponRepository(db),
		settings: repository.NewSettingRepository(db),
	}

	prov := provision.NewService(p, nil)
	e.wallet = NewWalletService(e.accounts, nil)
	e.discounts = NewDiscountService(e.coupons, nil)
	e.orderSvc = NewOrderService(e.orders, e.plans, e.accounts, e.services, e.discounts, prov, nil, nil)
	e.subs = NewSubscriptionService(e.accounts, e.services, e.plans, e.settings, e.wallet, prov, 1, 1, nil)
	e.planSvc = NewPlanService(e.plans, p, nil)
	return e
}
