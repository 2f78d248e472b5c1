package service

import (
	"context"

	"go.uber.org/zap"

	"vendbot/internal/models"
	"vendbot/internal/panel"
	"vendbot/internal/repository"
)

// PlanService syncs purchasable plans from the panel's user templates.
type PlanService struct {
	plans  *repository.PlanRepository
	panel  panel.API
	logger *zap.Logger
}

func NewPlanService(plans *repository.PlanRepository, p panel.API, logger *zap.Logger) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{plans: plans, panel: p, logger: logger}
}

// Sync pulls the panel's templates and upserts them by template ID. Existing
// plans keep their price and active flag. Returns the number of templates
// seen.
func (s *PlanService) Sync(ctx context.Context) (int, error) {
	templates, err := s.panel.GetUserTemplates(ctx)
	if err != nil {
		return 0, err
	}

	for _, t := range templates {
		if err := s.plans.UpsertFromTemplate(t.ID, t.Name, t.ExpireDays, t.DataLimit); err != nil {
			return 0, err
		}
	}

	s.logger.Info("plan sync complete", zap.Int("templates", len(templates)))
	return len(templates), nil
}

// ListActive returns plans purchasable right now.
func (s *PlanService) ListActive() ([]models.Plan, error) {
	return s.plans.FindActive()
}

// ListAll returns every plan for admin screens.
func (s *PlanService) ListAll() ([]models.Plan, error) {
	return s.plans.FindAll()
}

// Update applies admin edits.
func (s *PlanService) Update(id uint, updates map[string]interface{}) error {
	return s.plans.Update(id, updates)
}
