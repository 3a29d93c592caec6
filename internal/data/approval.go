package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LabSentry/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

var (
	// ErrDuplicatePending is returned when a live pending approval already
	// exists for the alert id.
	ErrDuplicatePending = errors.New("pending approval already exists for alert")

	// ErrNoPendingApproval is returned when a claim finds no pending row,
	// including when a concurrent claim won the race.
	ErrNoPendingApproval = errors.New("no pending approval for alert")
)

// PendingApproval is the GORM model for the pending_approvals table.
// Rows move pending -> approved -> executed/failed and are kept as the
// audit trail of human decisions.
type PendingApproval struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	AlertID     string    `gorm:"column:alert_id;type:varchar(64);not null;index"`
	AlertType   string    `gorm:"column:alert_type;type:varchar(50);not null"`
	ActionType  string    `gorm:"column:action_type;type:varchar(50);not null"`
	Status      string    `gorm:"column:status;type:varchar(20);not null;index"`
	ApprovedBy  string    `gorm:"column:approved_by;type:varchar(100)"`
	Details     string    `gorm:"column:details;type:json"` // JSON string
	RequestedAt time.Time `gorm:"column:requested_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (PendingApproval) TableName() string {
	return "pending_approvals"
}

// SetDetails serializes the alert details map into the JSON column.
func (p *PendingApproval) SetDetails(details map[string]any) error {
	if details == nil {
		p.Details = ""
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal approval details: %w", err)
	}
	p.Details = string(raw)
	return nil
}

// GetDetails deserializes the JSON column back into a map. A missing or
// malformed column yields nil.
func (p *PendingApproval) GetDetails() map[string]any {
	if p.Details == "" {
		return nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(p.Details), &details); err != nil {
		return nil
	}
	return details
}

// ApprovalRepo implements biz.ApprovalRepo backed by MySQL.
// Following Kratos v2 DDD architecture, the interface is defined in the
// biz layer.
type ApprovalRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewApprovalRepo creates a new approval repository.
func NewApprovalRepo(db *gorm.DB, logger log.Logger) *ApprovalRepo {
	return &ApprovalRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// CreatePending inserts a pending approval unless a live pending row for
// the same alert id already exists.
func (r *ApprovalRepo) CreatePending(ctx context.Context, approval *PendingApproval) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PendingApproval{}).
			Where("alert_id = ? AND status = ?", approval.AlertID, string(model.ApprovalPending)).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing approval: %w", err)
		}
		if count > 0 {
			return ErrDuplicatePending
		}

		approval.Status = string(model.ApprovalPending)
		if err := tx.Create(approval).Error; err != nil {
			return fmt.Errorf("failed to create pending approval: %w", err)
		}
		return nil
	})
}

// ClaimPending atomically moves the pending row for alertID to approved.
// The conditional UPDATE plus RowsAffected check guarantees at most one
// of any number of concurrent claims can win.
func (r *ApprovalRepo) ClaimPending(ctx context.Context, alertID, approvedBy string) (*PendingApproval, error) {
	result := r.db.WithContext(ctx).Model(&PendingApproval{}).
		Where("alert_id = ? AND status = ?", alertID, string(model.ApprovalPending)).
		Updates(map[string]interface{}{
			"status":      string(model.ApprovalApproved),
			"approved_by": approvedBy,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim approval: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNoPendingApproval
	}

	var approval PendingApproval
	if err := r.db.WithContext(ctx).
		Where("alert_id = ? AND status = ?", alertID, string(model.ApprovalApproved)).
		Order("id DESC").
		First(&approval).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed approval: %w", err)
	}

	r.logger.Infow("approval claimed",
		"alert_id", alertID,
		"approved_by", approvedBy,
		"action_type", approval.ActionType)

	return &approval, nil
}

// MarkOutcome archives a claimed approval with its terminal status.
func (r *ApprovalRepo) MarkOutcome(ctx context.Context, id int64, status model.ApprovalStatus) error {
	result := r.db.WithContext(ctx).Model(&PendingApproval{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark approval outcome: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("approval %d not found", id)
	}
	return nil
}

// ListPending returns live pending approvals, newest first.
func (r *ApprovalRepo) ListPending(ctx context.Context) ([]*PendingApproval, error) {
	var approvals []*PendingApproval
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(model.ApprovalPending)).
		Order("id DESC").
		Find(&approvals).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return approvals, nil
}
