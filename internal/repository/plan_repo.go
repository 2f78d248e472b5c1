package repository

import (
	"errors"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// PlanRepository handles purchasable plans synced from panel templates.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) FindByTemplateID(templateID int64) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("template_id = ?", templateID).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) FindActive() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Where("active = ?", true).Order("template_id ASC").Find(&plans).Error
	return plans, err
}

func (r *PlanRepository) FindAll() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("template_id ASC").Find(&plans).Error
	return plans, err
}

// UpsertFromTemplate syncs one panel template into the plans table, keyed by
// template ID. New templates arrive active with a zero price awaiting admin
// pricing; existing rows keep their price and their active flag, so sync
// never reactivates a plan an admin switched off.
func (r *PlanRepository) UpsertFromTemplate(templateID int64, title string, durationDays int, dataLimit int64) error {
	var plan models.Plan
	err := r.db.Where("template_id = ?", templateID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&models.Plan{
			TemplateID:   templateID,
			Title:        title,
			DurationDays: durationDays,
			DataLimit:    dataLimit,
			Active:       true,
		}).Error
	}
	if err != nil {
		return err
	}

	return r.db.Model(&models.Plan{}).Where("template_id = ?", templateID).
		Updates(map[string]interface{}{
			"title":         title,
			"duration_days": durationDays,
			"data_limit":    dataLimit,
		}).Error
}

// Update applies admin edits (price, title, active flag).
func (r *PlanRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Plan{}).Where("id = ?", id).Updates(updates).Error
}
