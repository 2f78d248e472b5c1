package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// SettingRepository is a key/value store for feature flags, per-account flags
// and persisted wizard intent state.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value for a key, or "" when unset.
func (r *SettingRepository) Get(key string) (string, error) {
	var setting models.Setting
	err := r.db.Where("k = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// Set upserts a key.
func (r *SettingRepository) Set(key, value string) error {
	return r.db.Save(&models.Setting{Key: key, Value: value}).Error
}

// Delete clears a key. Deleting a missing key is a no-op.
func (r *SettingRepository) Delete(key string) error {
	return r.db.Where("k = ?", key).Delete(&models.Setting{}).Error
}

// GetFlag reads a boolean flag; any value other than "1" reads as false.
func (r *SettingRepository) GetFlag(key string) (bool, error) {
	v, err := r.Get(key)
	return v == "1", err
}

// SetFlag writes a boolean flag.
func (r *SettingRepository) SetFlag(key string, on bool) error {
	if on {
		return r.Set(key, "1")
	}
	return r.Delete(key)
}

func accountKey(prefix string, accountID int64) string {
	return fmt.Sprintf("%s:%d", prefix, accountID)
}

// TrialUsed reports whether the account has consumed its trial.
func (r *SettingRepository) TrialUsed(accountID int64) (bool, error) {
	return r.GetFlag(accountKey("trial_used", accountID))
}

// MarkTrialUsed burns the account's trial eligibility.
func (r *SettingRepository) MarkTrialUsed(accountID int64) error {
	return r.SetFlag(accountKey("trial_used", accountID), true)
}

// Intent state: the wizard stage for an account lives here rather than in a
// process-local map, so it survives restarts and is shared between instances.

func (r *SettingRepository) GetIntent(accountID int64) (string, error) {
	return r.Get(accountKey("intent", accountID))
}

func (r *SettingRepository) SetIntent(accountID int64, stage string) error {
	return r.Set(accountKey("intent", accountID), stage)
}

func (r *SettingRepository) ClearIntent(accountID int64) error {
	return r.Delete(accountKey("intent", accountID))
}
