package audit

import (
	"encoding/json"
	"fmt"

	"ledger-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      uint
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog audit kaydını çağıranın transaction'ı içinde yazar;
// transaction geri alınırsa log da geri alınır.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}

// List: filtrelere göre en yeni kayıtlar önce
func List(db *gorm.DB, entityType string, entityID uint, limit int) ([]models.AuditLog, error) {
	dbq := db.Model(&models.AuditLog{})
	if entityType != "" {
		dbq = dbq.Where("entity_type = ?", entityType)
	}
	if entityID > 0 {
		dbq = dbq.Where("entity_id = ?", entityID)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
