// Package service exposes the incident-response core over the HTTP API.
// It translates between transport DTOs and biz layer types; all decisions
// live in biz.
package service

import (
	"context"
	"time"

	"LabSentry/internal/biz"
	"LabSentry/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// IncidentService is the API facade over the remediation engine, breaker
// registry, power monitor and shutdown orchestrator.
type IncidentService struct {
	remediation  *biz.RemediationUsecase
	breakers     *biz.BreakerRegistry
	power        *biz.PowerMonitor
	orchestrator *biz.ShutdownOrchestrator
	logger       *log.Helper
}

// NewIncidentService creates a new IncidentService instance.
func NewIncidentService(
	remediation *biz.RemediationUsecase,
	breakers *biz.BreakerRegistry,
	power *biz.PowerMonitor,
	orchestrator *biz.ShutdownOrchestrator,
	logger log.Logger,
) *IncidentService {
	return &IncidentService{
		remediation:  remediation,
		breakers:     breakers,
		power:        power,
		orchestrator: orchestrator,
		logger:       log.NewHelper(logger),
	}
}

// SubmitAlertRequest is the POST /v1/alerts body.
type SubmitAlertRequest struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details"`
}

// SubmitAlertReply acknowledges that an alert was accepted for handling.
type SubmitAlertReply struct {
	AlertID  string `json:"alert_id"`
	Accepted bool   `json:"accepted"`
}

// SubmitAlert feeds one alert into the remediation engine.
func (s *IncidentService) SubmitAlert(ctx context.Context, req *SubmitAlertRequest) (*SubmitAlertReply, error) {
	if req.ID == "" {
		return nil, kerrors.BadRequest("INVALID_ALERT", "alert id is required")
	}
	if req.Type == "" {
		return nil, kerrors.BadRequest("INVALID_ALERT", "alert type is required")
	}

	s.logger.Infow("SubmitAlert called", "alert_id", req.ID, "type", req.Type)

	alert := &model.Alert{
		ID:        req.ID,
		Type:      model.AlertType(req.Type),
		Severity:  model.AlertSeverity(req.Severity),
		Message:   req.Message,
		Details:   req.Details,
		CreatedAt: time.Now(),
	}

	if err := s.remediation.HandleAlert(ctx, alert); err != nil {
		s.logger.Errorw("failed to handle alert", "alert_id", req.ID, "error", err)
		return nil, err
	}

	return &SubmitAlertReply{AlertID: req.ID, Accepted: true}, nil
}

// PendingApprovalReply is one pending approval row.
type PendingApprovalReply struct {
	AlertID     string         `json:"alert_id"`
	AlertType   string         `json:"alert_type"`
	ActionType  string         `json:"action_type"`
	Details     map[string]any `json:"details,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// ListApprovalsReply is the GET /v1/approvals response.
type ListApprovalsReply struct {
	Approvals []*PendingApprovalReply `json:"approvals"`
}

// ListApprovals returns actions waiting for a human decision, newest first.
func (s *IncidentService) ListApprovals(ctx context.Context) (*ListApprovalsReply, error) {
	pending, err := s.remediation.PendingApprovals(ctx)
	if err != nil {
		s.logger.Errorw("failed to list pending approvals", "error", err)
		return nil, err
	}

	reply := &ListApprovalsReply{Approvals: make([]*PendingApprovalReply, 0, len(pending))}
	for _, p := range pending {
		reply.Approvals = append(reply.Approvals, &PendingApprovalReply{
			AlertID:     p.AlertID,
			AlertType:   p.AlertType,
			ActionType:  p.ActionType,
			Details:     p.GetDetails(),
			RequestedAt: p.RequestedAt,
		})
	}
	return reply, nil
}

// ApproveActionRequest is the POST /v1/approvals/{alert_id}/approve body.
type ApproveActionRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// ApproveActionReply acknowledges a claimed approval.
type ApproveActionReply struct {
	AlertID  string `json:"alert_id"`
	Approved bool   `json:"approved"`
}

// ApproveAction claims the pending approval for alertID and executes its
// action. At most one concurrent approve call can win the claim.
func (s *IncidentService) ApproveAction(ctx context.Context, alertID string, req *ApproveActionRequest) (*ApproveActionReply, error) {
	if req.ApprovedBy == "" {
		return nil, kerrors.BadRequest("INVALID_APPROVAL", "approved_by is required")
	}

	s.logger.Infow("ApproveAction called", "alert_id", alertID, "approved_by", req.ApprovedBy)

	if err := s.remediation.ApproveAction(ctx, alertID, req.ApprovedBy); err != nil {
		s.logger.Errorw("failed to approve action", "alert_id", alertID, "error", err)
		return nil, err
	}

	return &ApproveActionReply{AlertID: alertID, Approved: true}, nil
}

// RemediationReply is one remediation audit record.
type RemediationReply struct {
	AlertID     string    `json:"alert_id"`
	ActionType  string    `json:"action_type"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	TriggeredBy string    `json:"triggered_by"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// ListRemediationsReply is the GET /v1/remediations response.
type ListRemediationsReply struct {
	Remediations []*RemediationReply `json:"remediations"`
}

// ListRemediations returns executed actions, newest first.
func (s *IncidentService) ListRemediations(ctx context.Context, limit int) (*ListRemediationsReply, error) {
	records, err := s.remediation.History(ctx, limit)
	if err != nil {
		s.logger.Errorw("failed to list remediation records", "error", err)
		return nil, err
	}

	reply := &ListRemediationsReply{Remediations: make([]*RemediationReply, 0, len(records))}
	for _, r := range records {
		reply.Remediations = append(reply.Remediations, &RemediationReply{
			AlertID:     r.AlertID,
			ActionType:  r.ActionType,
			Status:      r.Status,
			Message:     r.Message,
			TriggeredBy: r.TriggeredBy,
			ExecutedAt:  r.ExecutedAt,
		})
	}
	return reply, nil
}

// BreakersReply is the GET /v1/breakers response.
type BreakersReply struct {
	Breakers []*model.BreakerStatus  `json:"breakers"`
	Metrics  []*model.BreakerMetrics `json:"metrics"`
}

// Breakers returns a snapshot of every registered circuit breaker.
func (s *IncidentService) Breakers(_ context.Context) (*BreakersReply, error) {
	return &BreakersReply{
		Breakers: s.breakers.Statuses(),
		Metrics:  s.breakers.Metrics(),
	}, nil
}

// PowerStatus returns the power monitor's current state.
func (s *IncidentService) PowerStatus(_ context.Context) (*model.PowerStatus, error) {
	return s.power.Status(), nil
}

// PowerEventReply is one recorded power state transition.
type PowerEventReply struct {
	FromState      string    `json:"from_state"`
	ToState        string    `json:"to_state"`
	ChargePercent  float64   `json:"charge_percent"`
	RuntimeSeconds int64     `json:"runtime_seconds"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ListPowerEventsReply is the GET /v1/power/events response.
type ListPowerEventsReply struct {
	Events []*PowerEventReply `json:"events"`
}

// ListPowerEvents returns recorded power transitions, newest first.
func (s *IncidentService) ListPowerEvents(ctx context.Context, limit int) (*ListPowerEventsReply, error) {
	events, err := s.power.Events(ctx, limit)
	if err != nil {
		s.logger.Errorw("failed to list power events", "error", err)
		return nil, err
	}

	reply := &ListPowerEventsReply{Events: make([]*PowerEventReply, 0, len(events))}
	for _, e := range events {
		reply.Events = append(reply.Events, &PowerEventReply{
			FromState:      e.FromState,
			ToState:        e.ToState,
			ChargePercent:  e.ChargePercent,
			RuntimeSeconds: e.RuntimeSeconds,
			RecordedAt:     e.RecordedAt,
		})
	}
	return reply, nil
}

// SequenceStepReply is one captured shutdown step result.
type SequenceStepReply struct {
	Step      string    `json:"step"`
	Succeeded bool      `json:"succeeded"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// SequenceReply is one executed shutdown sequence.
type SequenceReply struct {
	SequenceID   string               `json:"sequence_id"`
	Trigger      string               `json:"trigger"`
	TriggerState string               `json:"trigger_state"`
	DryRun       bool                 `json:"dry_run"`
	Steps        []*SequenceStepReply `json:"steps"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
}

// ListSequencesReply is the GET /v1/shutdown/sequences response.
type ListSequencesReply struct {
	Sequences []*SequenceReply `json:"sequences"`
}

// ListSequences returns executed shutdown sequences, newest first.
func (s *IncidentService) ListSequences(ctx context.Context, limit int) (*ListSequencesReply, error) {
	sequences, err := s.orchestrator.Sequences(ctx, limit)
	if err != nil {
		s.logger.Errorw("failed to list shutdown sequences", "error", err)
		return nil, err
	}

	reply := &ListSequencesReply{Sequences: make([]*SequenceReply, 0, len(sequences))}
	for _, seq := range sequences {
		steps := seq.GetSteps()
		stepReplies := make([]*SequenceStepReply, 0, len(steps))
		for _, st := range steps {
			stepReplies = append(stepReplies, &SequenceStepReply{
				Step:      st.Step,
				Succeeded: st.Succeeded,
				Message:   st.Message,
				At:        st.At,
			})
		}
		reply.Sequences = append(reply.Sequences, &SequenceReply{
			SequenceID:   seq.SequenceID,
			Trigger:      seq.Trigger,
			TriggerState: seq.TriggerState,
			DryRun:       seq.DryRun,
			Steps:        stepReplies,
			StartedAt:    seq.StartedAt,
			FinishedAt:   seq.FinishedAt,
		})
	}
	return reply, nil
}
