package repository

import (
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// ServiceRepository handles provisioned panel accounts.
type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) Create(service *models.Service) error {
	return r.db.Create(service).Error
}

func (r *ServiceRepository) FindByID(id uint) (*models.Service, error) {
	var service models.Service
	if err := r.db.Where("id = ?", id).First(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *ServiceRepository) FindByPanelUsername(username string) (*models.Service, error) {
	var service models.Service
	if err := r.db.Where("panel_username = ?", username).First(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *ServiceRepository) FindByAccount(accountID int64) ([]models.Service, error) {
	var services []models.Service
	err := r.db.Where("account_id = ?", accountID).Order("id ASC").Find(&services).Error
	return services, err
}

func (r *ServiceRepository) SetStatus(id uint, status models.ServiceStatus) error {
	return r.db.Model(&models.Service{}).Where("id = ?", id).Update("status", status).Error
}

func (r *ServiceRepository) SetSubToken(id uint, token string) error {
	return r.db.Model(&models.Service{}).Where("id = ?", id).Update("sub_token", token).Error
}

// DisableByPanelUsernames marks local rows disabled after a panel-side purge.
func (r *ServiceRepository) DisableByPanelUsernames(usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	return r.db.Model(&models.Service{}).
		Where("panel_username IN ?", usernames).
		Update("status", models.ServiceDisabled).Error
}

// Delete removes a service row. The panel-side deletion happens first;
// this is the local bookkeeping half of an explicit admin delete.
func (r *ServiceRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.Service{}).Error
}
