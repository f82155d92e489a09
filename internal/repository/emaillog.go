package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elecmate/winback-service/internal/models"
)

// EmailLogRepository appends to and reads the immutable send audit trail.
type EmailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository creates a new email log repository.
func NewEmailLogRepository(db *gorm.DB) *EmailLogRepository {
	return &EmailLogRepository{db: db}
}

// Migrate creates the email_logs table if it does not exist.
func (r *EmailLogRepository) Migrate() error {
	return r.db.AutoMigrate(&models.EmailLog{})
}

// Append writes one audit record. Records are keyed by provider message id,
// so appending the same send twice is a no-op rather than a duplicate row.
func (r *EmailLogRepository) Append(ctx context.Context, rec *models.EmailLog) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}

// ListRecent returns the newest win-back audit rows, most recent first.
func (r *EmailLogRepository) ListRecent(ctx context.Context, limit int) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	err := r.db.WithContext(ctx).
		Where("template LIKE ?", "winback%").
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return logs, nil
}
