package provision

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/panel"
)

const bytesPerGB = int64(1) << 30

// Service translates domain intents into panel calls. Every operation is safe
// to re-invoke: creates tolerate duplicates, and the two-step plan provision
// can be resumed after a partial failure.
type Service struct {
	panel  panel.API
	logger *zap.Logger
	now    func() time.Time
}

// DeleteExpiredResult reports a best-effort bulk cleanup.
type DeleteExpiredResult struct {
	Deleted []string
	Failed  []string
}

func NewService(p panel.API, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{panel: p, logger: logger, now: time.Now}
}

// CreateMinimal creates a user with no data or time limit. A duplicate create
// falls back to fetching the existing user, so retries and double calls are
// harmless.
func (s *Service) CreateMinimal(ctx context.Context, username string) (*panel.User, error) {
	user, err := s.panel.CreateUser(ctx, panel.CreateUserRequest{Username: username})
	if errors.Is(err, panel.ErrAlreadyExists) {
		return s.panel.GetUser(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ProvisionForPlan makes sure the user exists, then applies the plan
// snapshot's data limit and expiry. The panel needs two separate updates;
// if the second fails the first stays applied and a retry completes the job.
func (s *Service) ProvisionForPlan(ctx context.Context, username string, snap models.PlanSnapshot) (*panel.User, error) {
	if _, err := s.CreateMinimal(ctx, username); err != nil {
		return nil, err
	}

	limit := snap.DataLimit
	if _, err := s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{DataLimit: &limit}); err != nil {
		return nil, err
	}

	var expire int64
	if snap.DurationDays > 0 {
		expire = s.now().Add(time.Duration(snap.DurationDays) * 24 * time.Hour).Unix()
	}
	user, err := s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{Expire: &expire})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddData raises the user's data limit by deltaGB. Read-modify-write with no
// panel-side compare-and-swap: concurrent increments for the same user can
// lose one update. Known limitation of the remote API.
func (s *Service) AddData(ctx context.Context, username string, deltaGB int64) (*panel.User, error) {
	user, err := s.panel.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	limit := user.DataLimit + deltaGB*bytesPerGB
	return s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{DataLimit: &limit})
}

// ExtendExpiry pushes the expiry out by deltaDays. An unset or already-past
// expiry is extended from now, so an expired user gets the full window rather
// than a shortened one.
func (s *Service) ExtendExpiry(ctx context.Context, username string, deltaDays int) (*panel.User, error) {
	user, err := s.panel.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	base := s.now()
	if user.Expire > 0 && user.Expire > base.Unix() {
		base = time.Unix(user.Expire, 0)
	}
	expire := base.Add(time.Duration(deltaDays) * 24 * time.Hour).Unix()
	return s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{Expire: &expire})
}

// SetStatus flips the user between active and disabled on the panel.
func (s *Service) SetStatus(ctx context.Context, username string, status models.ServiceStatus) error {
	_, err := s.panel.ModifyUser(ctx, username, panel.ModifyUserRequest{Status: string(status)})
	return err
}

func (s *Service) ResetUser(ctx context.Context, username string) error {
	return s.panel.ResetUser(ctx, username)
}

func (s *Service) RevokeSubscription(ctx context.Context, username string) (string, error) {
	return s.panel.RevokeSubscription(ctx, username)
}

func (s *Service) DeleteUser(ctx context.Context, username string) error {
	return s.panel.DeleteUser(ctx, username)
}

func (s *Service) ListExpired(ctx context.Context, before int64) ([]string, error) {
	return s.panel.ListExpired(ctx, before)
}

func (s *Service) SystemStats(ctx context.Context) (*panel.SystemStats, error) {
	return s.panel.GetSystemStats(ctx)
}

// DeleteExpired prefers the panel's bulk endpoint. Panels without it get a
// list-then-delete fallback that counts per-user successes and failures
// instead of aborting on the first error.
func (s *Service) DeleteExpired(ctx context.Context, before int64) (*DeleteExpiredResult, error) {
	deleted, err := s.panel.DeleteExpired(ctx, before)
	if err == nil {
		return &DeleteExpiredResult{Deleted: deleted}, nil
	}
	if !errors.Is(err, panel.ErrNotFound) {
		return nil, err
	}

	usernames, err := s.panel.ListExpired(ctx, before)
	if err != nil {
		return nil, err
	}

	result := &DeleteExpiredResult{}
	for _, username := range usernames {
		if err := s.panel.DeleteUser(ctx, username); err != nil && !errors.Is(err, panel.ErrNotFound) {
			s.logger.Warn("failed to delete expired panel user",
				zap.String("username", username), zap.Error(err))
			result.Failed = append(result.Failed, username)
			continue
		}
		result.Deleted = append(result.Deleted, username)
	}
	return result, nil
}
