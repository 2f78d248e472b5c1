package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline settings.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Service{},
		&models.Plan{},
		&models.Order{},
		&models.OrderEvent{},
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.WalletTransaction{},
		&models.Setting{},
	}
}

func seedDefaults(db *gorm.DB) error {
	defaults := map[string]string{
		"trial_enabled": "1",
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for key, value := range defaults {
			var count int64
			if err := tx.Model(&models.Setting{}).Where("k = ?", key).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&models.Setting{Key: key, Value: value}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
