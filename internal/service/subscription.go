package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/provision"
	"vendbot/internal/repository"
)

// UsernameStrategy selects how GrantPlan names the panel user.
type UsernameStrategy string

const (
	// UsernameAccount reuses the account's own panel username.
	UsernameAccount UsernameStrategy = "account"
	// UsernameFresh generates a new username for a separate service.
	UsernameFresh UsernameStrategy = "fresh"
)

// SubscriptionService covers trial and admin-driven service operations:
// granting plans, topping up data, extending expiry, status flips.
type SubscriptionService struct {
	accounts    *repository.AccountRepository
	services    *repository.ServiceRepository
	plans       *repository.PlanRepository
	settings    *repository.SettingRepository
	wallet      *WalletService
	provisioner *provision.Service
	logger      *zap.Logger

	trialDays int
	trialGB   int64
}

func NewSubscriptionService(
	accounts *repository.AccountRepository,
	services *repository.ServiceRepository,
	plans *repository.PlanRepository,
	settings *repository.SettingRepository,
	wallet *WalletService,
	provisioner *provision.Service,
	trialDays int,
	trialGB int64,
	logger *zap.Logger,
) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		accounts:    accounts,
		services:    services,
		plans:       plans,
		settings:    settings,
		wallet:      wallet,
		provisioner: provisioner,
		trialDays:   trialDays,
		trialGB:     trialGB,
		logger:      logger,
	}
}

// ProvisionTrial creates a one-off trial service for the account. Eligibility
// is a persisted flag, burned on success; a second call fails with
// ErrTrialAlreadyUsed.
func (s *SubscriptionService) ProvisionTrial(ctx context.Context, accountID int64) (*models.Service, error) {
	used, err := s.settings.TrialUsed(accountID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrTrialAlreadyUsed
	}

	account, err := s.accounts.FindOrCreate(accountID)
	if err != nil {
		return nil, err
	}

	username := account.PanelUsername + "_trial"
	snap := models.PlanSnapshot{
		Title:        "trial",
		DataLimit:    s.trialGB << 30,
		DurationDays: s.trialDays,
	}
	user, err := s.provisioner.ProvisionForPlan(ctx, username, snap)
	if err != nil {
		return nil, err
	}

	svc, err := s.ensureServiceRow(accountID, username, user.SubURL)
	if err != nil {
		return nil, err
	}
	if err := s.settings.MarkTrialUsed(accountID); err != nil {
		return nil, err
	}

	s.logger.Info("trial provisioned",
		zap.Int64("account_id", accountID), zap.String("panel_username", username))
	return svc, nil
}

// GrantPlan provisions a plan for an account outside the order flow (admin
// gift, manual fix-up). Idempotent per username.
func (s *SubscriptionService) GrantPlan(ctx context.Context, accountID int64, planTemplateID int64, strategy UsernameStrategy) (*models.Service, error) {
	account, err := s.accounts.FindOrCreate(accountID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByTemplateID(planTemplateID)
	if err != nil {
		return nil, err
	}

	username := account.PanelUsername
	if strategy == UsernameFresh {
		username = fmt.Sprintf("%s_p%d", account.PanelUsername, plan.TemplateID)
	}

	user, err := s.provisioner.ProvisionForPlan(ctx, username, models.SnapshotOf(plan))
	if err != nil {
		return nil, err
	}
	return s.ensureServiceRow(accountID, username, user.SubURL)
}

// AddData buys deltaGB of extra traffic from the wallet and applies it to the
// service. The panel write is best-effort after a successful debit; a panel
// failure refunds the debit so the ledger nets out.
func (s *SubscriptionService) AddData(ctx context.Context, serviceID uint, deltaGB int64, pricePerGB decimal.Decimal) error {
	svc, err := s.services.FindByID(serviceID)
	if err != nil {
		return err
	}

	cost := pricePerGB.Mul(decimal.NewFromInt(deltaGB))
	ref := fmt.Sprintf("adddata:%d", serviceID)
	if cost.IsPositive() {
		if err := s.wallet.Debit(svc.AccountID, cost, ref, fmt.Sprintf("%dGB top-up", deltaGB)); err != nil {
			return err
		}
	}

	if _, err := s.provisioner.AddData(ctx, svc.PanelUsername, deltaGB); err != nil {
		if cost.IsPositive() {
			if refundErr := s.wallet.Credit(svc.AccountID, cost, ref, "refund: panel top-up failed"); refundErr != nil {
				s.logger.Error("refund failed after panel error",
					zap.Uint("service_id", serviceID), zap.Error(refundErr))
			}
		}
		return err
	}
	return nil
}

// ListByAccount returns the account's service rows.
func (s *SubscriptionService) ListByAccount(accountID int64) ([]models.Service, error) {
	return s.services.FindByAccount(accountID)
}

// Extend pushes the service expiry out by days.
func (s *SubscriptionService) Extend(ctx context.Context, serviceID uint, days int) error {
	svc, err := s.services.FindByID(serviceID)
	if err != nil {
		return err
	}
	_, err = s.provisioner.ExtendExpiry(ctx, svc.PanelUsername, days)
	return err
}

// SetStatus flips the service on the panel and mirrors the flag locally.
func (s *SubscriptionService) SetStatus(ctx context.Context, serviceID uint, status models.ServiceStatus) error {
	svc, err := s.services.FindByID(serviceID)
	if err != nil {
		return err
	}
	if err := s.provisioner.SetStatus(ctx, svc.PanelUsername, status); err != nil {
		return err
	}
	return s.services.SetStatus(serviceID, status)
}

// Revoke rotates the subscription link and stores the new one.
func (s *SubscriptionService) Revoke(ctx context.Context, serviceID uint) (string, error) {
	svc, err := s.services.FindByID(serviceID)
	if err != nil {
		return "", err
	}
	url, err := s.provisioner.RevokeSubscription(ctx, svc.PanelUsername)
	if err != nil {
		return "", err
	}
	if err := s.services.SetSubToken(serviceID, url); err != nil {
		return "", err
	}
	return url, nil
}

// Delete removes the panel user and then the local row. Panel-side absence is
// tolerated so a half-done delete can be retried.
func (s *SubscriptionService) Delete(ctx context.Context, serviceID uint) error {
	svc, err := s.services.FindByID(serviceID)
	if err != nil {
		return err
	}
	if err := s.provisioner.DeleteUser(ctx, svc.PanelUsername); err != nil && !isNotFound(err) {
		return err
	}
	return s.services.Delete(serviceID)
}

func (s *SubscriptionService) ensureServiceRow(accountID int64, username, subURL string) (*models.Service, error) {
	svc, err := s.services.FindByPanelUsername(username)
	if err == nil {
		return svc, nil
	}
	svc = &models.Service{
		AccountID:     accountID,
		PanelUsername: username,
		Status:        models.ServiceActive,
		SubToken:      subURL,
	}
	if err := s.services.Create(svc); err != nil {
		return nil, err
	}
	return svc, nil
}
