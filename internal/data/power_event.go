package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// PowerEvent is the GORM model for the power_events table, one row per
// detected power state transition.
type PowerEvent struct {
	ID             int64     `gorm:"primaryKey;column:id"`
	FromState      string    `gorm:"column:from_state;type:varchar(20);not null"`
	ToState        string    `gorm:"column:to_state;type:varchar(20);not null"`
	ChargePercent  float64   `gorm:"column:charge_percent;not null"`
	RuntimeSeconds int64     `gorm:"column:runtime_seconds;not null"`
	RecordedAt     time.Time `gorm:"column:recorded_at;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (PowerEvent) TableName() string {
	return "power_events"
}

// PowerEventRepo implements biz.PowerEventRepo backed by MySQL.
type PowerEventRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewPowerEventRepo creates a new power event repository.
func NewPowerEventRepo(db *gorm.DB, logger log.Logger) *PowerEventRepo {
	return &PowerEventRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// Append writes one transition event.
func (r *PowerEventRepo) Append(ctx context.Context, event *PowerEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append power event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (r *PowerEventRepo) ListRecent(ctx context.Context, limit int) ([]*PowerEvent, error) {
	var events []*PowerEvent
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list power events: %w", err)
	}
	return events, nil
}

// PruneBefore deletes events recorded before the cutoff and returns how
// many rows were removed.
func (r *PowerEventRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&PowerEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune power events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
