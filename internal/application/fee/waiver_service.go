package fee

import (
	"context"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	waiverDecisionApproved = "approved"
	waiverDecisionRejected = "rejected"
)

// WaiverService handles fine waiver requests and their decisions
type WaiverService struct {
	*core
}

// NewWaiverService creates a new WaiverService
func NewWaiverService(deps Dependencies, opts ...Option) *WaiverService {
	return &WaiverService{core: newCore(deps, opts...)}
}

// RequestWaiverRequest represents a request to forgive part of a fine.
// RequestedBy defaults to the handle's actor.
type RequestWaiverRequest struct {
	AssignmentID uuid.UUID
	WaiverAmount decimal.Decimal
	Reason       string
	RequestedBy  *uuid.UUID
}

// DecideWaiverRequest represents an approval or rejection.
// DecidedBy defaults to the handle's actor.
type DecideWaiverRequest struct {
	WaiverID  uuid.UUID
	DecidedBy *uuid.UUID
	Note      string
}

// RequestWaiver opens a pending waiver against the fine accrued so far
func (s *WaiverService) RequestWaiver(ctx context.Context, h shared.TenantHandle, req RequestWaiverRequest) (*WaiverView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_waiver", "request")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAssignmentID, req.AssignmentID.String(),
		telemetry.SpanAttrAmount, req.WaiverAmount.String(),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)
	amount := precision.Round(req.WaiverAmount)
	requestedBy := actorOr(req.RequestedBy, h)

	var view *WaiverView
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
		a, err := repos.Assignments.FindByIDForTenant(ctx, tenantID, req.AssignmentID)
		if err != nil {
			return err
		}
		if a.IsDeleted() {
			return fee.ErrAssignmentDeleted
		}
		// Concurrent requests that both pass this check are stopped by the
		// pending-waiver unique index in Create.
		pending, err := repos.Waivers.ExistsPending(ctx, tenantID, a.ID)
		if err != nil {
			return err
		}
		if pending {
			return fee.ErrWaiverPending
		}
		w, err := fee.NewFineWaiver(a, a.Evaluate(s.now(), precision), amount, req.Reason, requestedBy, s.now())
		if err != nil {
			return err
		}
		if err := repos.Waivers.Create(ctx, w); err != nil {
			return err
		}
		v := ToWaiverView(w)
		view = &v
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrWaiverID, view.ID.String())
	s.logger.Info("fine waiver requested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("waiver_id", view.ID.String()),
		zap.String("assignment_id", req.AssignmentID.String()),
		zap.String("amount", amount.String()),
	)
	return view, nil
}

// ApproveWaiver approves a pending waiver and caps the assignment's fine at
// the waiver's remaining amount in the same transaction.
func (s *WaiverService) ApproveWaiver(ctx context.Context, h shared.TenantHandle, req DecideWaiverRequest) (*WaiverDecision, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_waiver", "approve")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrWaiverID, req.WaiverID.String())

	if err := h.Validate(); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)
	by := actorOr(req.DecidedBy, h)

	var (
		decision *WaiverDecision
		events   []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "approve_waiver", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			w, err := repos.Waivers.FindByIDForTenant(ctx, tenantID, req.WaiverID)
			if err != nil {
				return err
			}
			a, err := repos.Assignments.FindByIDForTenant(ctx, tenantID, w.AssignmentID)
			if err != nil {
				return err
			}
			if a.IsDeleted() {
				return fee.ErrAssignmentDeleted
			}
			if err := w.Approve(by, req.Note, now); err != nil {
				return err
			}
			ev, err := a.CapFine(w.RemainingFineAmount, &by, now, precision)
			if err != nil {
				return err
			}
			if err := repos.Assignments.SaveWithLock(ctx, a, ev); err != nil {
				return err
			}
			if err := repos.Waivers.SaveWithLock(ctx, w); err != nil {
				return err
			}
			view := ToAssignmentView(a, ev)
			decision = &WaiverDecision{Waiver: ToWaiverView(w), Assignment: &view}
			events = drainEvents(w)
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	if s.metrics != nil {
		s.metrics.RecordWaiverDecision(ctx, tenantID, waiverDecisionApproved)
	}
	s.logger.Info("fine waiver approved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("waiver_id", req.WaiverID.String()),
		zap.String("remaining_fine", decision.Waiver.RemainingFineAmount.String()),
	)
	return decision, nil
}

// RejectWaiver closes a pending waiver; the assignment is left unchanged
func (s *WaiverService) RejectWaiver(ctx context.Context, h shared.TenantHandle, req DecideWaiverRequest) (*WaiverDecision, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_waiver", "reject")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrWaiverID, req.WaiverID.String())

	if err := h.Validate(); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()
	by := actorOr(req.DecidedBy, h)

	var decision *WaiverDecision
	err := s.retry(ctx, tenantID, "reject_waiver", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			w, err := repos.Waivers.FindByIDForTenant(ctx, tenantID, req.WaiverID)
			if err != nil {
				return err
			}
			if err := w.Reject(by, req.Note, s.now()); err != nil {
				return err
			}
			if err := repos.Waivers.SaveWithLock(ctx, w); err != nil {
				return err
			}
			decision = &WaiverDecision{Waiver: ToWaiverView(w)}
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordWaiverDecision(ctx, tenantID, waiverDecisionRejected)
	}
	s.logger.Info("fine waiver rejected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("waiver_id", req.WaiverID.String()),
	)
	return decision, nil
}

// GetWaiver retrieves a waiver by ID
func (s *WaiverService) GetWaiver(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*WaiverView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	w, err := s.repos.Waivers.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	view := ToWaiverView(w)
	return &view, nil
}

// ListWaivers lists an assignment's waivers newest first
func (s *WaiverService) ListWaivers(ctx context.Context, h shared.TenantHandle, assignmentID uuid.UUID) ([]WaiverView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repos.Assignments.FindByIDForTenant(ctx, h.TenantID(), assignmentID); err != nil {
		return nil, err
	}
	waivers, err := s.repos.Waivers.FindByAssignment(ctx, h.TenantID(), assignmentID)
	if err != nil {
		return nil, err
	}
	views := make([]WaiverView, len(waivers))
	for i := range waivers {
		views[i] = ToWaiverView(&waivers[i])
	}
	return views, nil
}

// actorOr returns *id when given, otherwise the handle's actor or uuid.Nil
func actorOr(id *uuid.UUID, h shared.TenantHandle) uuid.UUID {
	if id != nil {
		return *id
	}
	if actor := h.Actor(); actor != nil {
		return *actor
	}
	return uuid.Nil
}
