// Package audit keeps a local change log of settings saves. The proxy owns
// the settings; this is operator-facing history only.
package audit

import (
	"fmt"
	"strings"
	"time"

	"admin-console/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record stores one successful save with the keys that changed.
func (r *Recorder) Record(panel, actor string, changedKeys []string) error {
	change := &models.SettingsChange{
		ID:          uuid.New().String(),
		Panel:       panel,
		Actor:       actor,
		ChangedKeys: strings.Join(changedKeys, ","),
		CreatedAt:   time.Now(),
	}
	if err := r.db.Create(change).Error; err != nil {
		return fmt.Errorf("failed to record settings change: %w", err)
	}
	return nil
}

// Recent returns the latest changes, newest first.
func (r *Recorder) Recent(limit int) ([]models.SettingsChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []models.SettingsChange
	err := r.db.Order("created_at DESC").Limit(limit).Find(&changes).Error
	return changes, err
}

// RecentForPanel returns the latest changes for one panel, newest first.
func (r *Recorder) RecentForPanel(panel string, limit int) ([]models.SettingsChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []models.SettingsChange
	err := r.db.Where("panel = ?", panel).Order("created_at DESC").Limit(limit).Find(&changes).Error
	return changes, err
}
