package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// SequenceStep is one captured step result inside a shutdown sequence
// record. Steps are stored as a JSON array on the sequence row.
type SequenceStep struct {
	Step      string    `json:"step"`
	Succeeded bool      `json:"succeeded"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// ShutdownSequence is the GORM model for the shutdown_sequences table,
// one row per executed sequence including dry runs.
type ShutdownSequence struct {
	ID           int64     `gorm:"primaryKey;column:id"`
	SequenceID   string    `gorm:"column:sequence_id;type:varchar(36);not null;uniqueIndex"`
	Trigger      string    `gorm:"column:sequence_trigger;type:varchar(20);not null"`
	TriggerState string    `gorm:"column:trigger_state;type:varchar(20);not null"`
	DryRun       bool      `gorm:"column:dry_run;not null"`
	Steps        string    `gorm:"column:steps;type:json"` // JSON array of SequenceStep
	StartedAt    time.Time `gorm:"column:started_at;not null;index"`
	FinishedAt   time.Time `gorm:"column:finished_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ShutdownSequence) TableName() string {
	return "shutdown_sequences"
}

// SetSteps serializes the step results into the JSON column.
func (s *ShutdownSequence) SetSteps(steps []SequenceStep) error {
	raw, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal sequence steps: %w", err)
	}
	s.Steps = string(raw)
	return nil
}

// GetSteps deserializes the JSON column back into step results. A missing
// or malformed column yields nil.
func (s *ShutdownSequence) GetSteps() []SequenceStep {
	if s.Steps == "" {
		return nil
	}
	var steps []SequenceStep
	if err := json.Unmarshal([]byte(s.Steps), &steps); err != nil {
		return nil
	}
	return steps
}

// SequenceRepo implements biz.SequenceRepo backed by MySQL.
type SequenceRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewSequenceRepo creates a new shutdown sequence repository.
func NewSequenceRepo(db *gorm.DB, logger log.Logger) *SequenceRepo {
	return &SequenceRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// Append writes one sequence row.
func (r *SequenceRepo) Append(ctx context.Context, seq *ShutdownSequence) error {
	if err := r.db.WithContext(ctx).Create(seq).Error; err != nil {
		return fmt.Errorf("failed to append shutdown sequence: %w", err)
	}
	return nil
}

// ListRecent returns up to limit sequences, newest first.
func (r *SequenceRepo) ListRecent(ctx context.Context, limit int) ([]*ShutdownSequence, error) {
	var sequences []*ShutdownSequence
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&sequences).Error; err != nil {
		return nil, fmt.Errorf("failed to list shutdown sequences: %w", err)
	}
	return sequences, nil
}

// PruneBefore deletes sequences started before the cutoff and returns how
// many rows were removed.
func (r *SequenceRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("started_at < ?", cutoff).
		Delete(&ShutdownSequence{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune shutdown sequences: %w", result.Error)
	}
	return result.RowsAffected, nil
}
