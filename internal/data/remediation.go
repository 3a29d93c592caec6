package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// RemediationRecord is the GORM model for the remediation_records table,
// the append-only audit trail of every executed remediation action.
type RemediationRecord struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	AlertID     string    `gorm:"column:alert_id;type:varchar(64);not null;index"`
	ActionType  string    `gorm:"column:action_type;type:varchar(50);not null"`
	Status      string    `gorm:"column:status;type:varchar(20);not null"`
	Message     string    `gorm:"column:message;type:text"`
	TriggeredBy string    `gorm:"column:triggered_by;type:varchar(100);not null"` // "auto" or approver identity
	ExecutedAt  time.Time `gorm:"column:executed_at;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (RemediationRecord) TableName() string {
	return "remediation_records"
}

// RemediationRepo implements biz.RemediationRepo backed by MySQL.
type RemediationRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewRemediationRepo creates a new remediation record repository.
func NewRemediationRepo(db *gorm.DB, logger log.Logger) *RemediationRepo {
	return &RemediationRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// Append writes one execution record.
func (r *RemediationRepo) Append(ctx context.Context, record *RemediationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append remediation record: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *RemediationRepo) ListRecent(ctx context.Context, limit int) ([]*RemediationRecord, error) {
	var records []*RemediationRecord
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list remediation records: %w", err)
	}
	return records, nil
}

// PruneBefore deletes records executed before the cutoff and returns how
// many rows were removed.
func (r *RemediationRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("executed_at < ?", cutoff).
		Delete(&RemediationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune remediation records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
