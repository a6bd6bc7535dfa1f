package fee

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdvanceService manages unapplied funds held for a student or application
type AdvanceService struct {
	*core
}

// NewAdvanceService creates a new AdvanceService
func NewAdvanceService(deps Dependencies, opts ...Option) *AdvanceService {
	return &AdvanceService{core: newCore(deps, opts...)}
}

// RecordAdvanceRequest represents money received ahead of any assignment
type RecordAdvanceRequest struct {
	Target      fee.Target
	Amount      decimal.Decimal
	Method      fee.PaymentMethod
	ReferenceNo string
	Remark      string
}

// RecordAdvancePayment deposits funds to the target's advance account
func (s *AdvanceService) RecordAdvancePayment(ctx context.Context, h shared.TenantHandle, req RecordAdvanceRequest) (*AdvanceEntryView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_advance", "record_advance")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTargetType, string(req.Target.Kind()),
		telemetry.SpanAttrTargetID, req.Target.ID().String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	amount := s.precision.PrecisionFor(h.TenantID()).Round(req.Amount)
	if !amount.IsPositive() {
		return nil, fee.ErrInvalidAmount
	}
	if err := s.ensureTarget(ctx, h.TenantID(), req.Target); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		view   *AdvanceEntryView
		events []shared.DomainEvent
	)
	err := s.retry(ctx, h.TenantID(), "record_advance", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			var entry *fee.AdvanceEntry
			account, err := depositAdvance(ctx, repos, h, req.Target, amount, req.Method, req.ReferenceNo, s.now(), func(e *fee.AdvanceEntry) {
				e.WithRemark(req.Remark)
				entry = e
			})
			if err != nil {
				return err
			}
			v := ToAdvanceEntryView(entry)
			view = &v
			events = drainEvents(account)
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, h.TenantID(), string(req.Method), telemetry.PaymentStatusSuccess)
		s.metrics.RecordPaymentAmount(ctx, h.TenantID(), string(req.Method), amount)
	}
	s.logger.Info("advance payment recorded",
		zap.String("tenant_id", h.TenantID().String()),
		zap.String("target", req.Target.String()),
		zap.String("amount", amount.String()),
		zap.String("balance", view.BalanceAfter.String()),
	)
	return view, nil
}

// GetAdvanceBalance sums the target's ledger. A target without an account has
// a zero balance.
func (s *AdvanceService) GetAdvanceBalance(ctx context.Context, h shared.TenantHandle, target fee.Target) (*AdvanceBalanceView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	totals, err := s.repos.Advances.Totals(ctx, h.TenantID(), target)
	if err != nil {
		return nil, err
	}
	return &AdvanceBalanceView{
		Target:       toTargetView(target),
		Deposits:     totals.Deposits,
		Consumptions: totals.Consumptions,
		Restores:     totals.Restores,
		Balance:      totals.Balance(),
	}, nil
}

// ListAdvanceEntries lists the target's ledger oldest first
func (s *AdvanceService) ListAdvanceEntries(ctx context.Context, h shared.TenantHandle, target fee.Target) ([]AdvanceEntryView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.repos.Advances.ListEntries(ctx, h.TenantID(), target)
	if err != nil {
		return nil, err
	}
	views := make([]AdvanceEntryView, len(entries))
	for i := range entries {
		views[i] = ToAdvanceEntryView(&entries[i])
	}
	return views, nil
}

// ApplyAdvanceRequest represents a request to spend a target's advance
type ApplyAdvanceRequest struct {
	Target fee.Target
}

// errAdvanceEmpty reports an assignment skipped because nothing was left
var errAdvanceEmpty = shared.NewPolicyError("ADVANCE_EXHAUSTED", "No advance balance left")

// ApplyAdvance pays the target's open assignments from its advance balance.
// Each assignment is paid in its own transaction so one failure does not undo
// the others; the run stops once the balance is spent.
func (s *AdvanceService) ApplyAdvance(ctx context.Context, h shared.TenantHandle, req ApplyAdvanceRequest) (*ApplyAdvanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_advance", "apply_advance")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTargetType, string(req.Target.Kind()),
		telemetry.SpanAttrTargetID, req.Target.ID().String(),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()

	out := &ApplyAdvanceResult{Target: toTargetView(req.Target), TotalApplied: decimal.Zero, RemainingBalance: decimal.Zero}
	account, err := s.repos.Advances.FindAccount(ctx, tenantID, req.Target)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Balance.IsPositive() {
		return out, nil
	}

	open, err := s.repos.Assignments.FindOpenByTarget(ctx, tenantID, req.Target)
	if err != nil {
		return nil, err
	}
	if s.policy.AdvanceOrder == AdvancePeriodOrder {
		sort.SliceStable(open, func(i, j int) bool {
			if open[i].Year != open[j].Year {
				return open[i].Year < open[j].Year
			}
			return open[i].Month < open[j].Month
		})
	}

	remaining := account.Balance
	for i := range open {
		if !remaining.IsPositive() {
			break
		}
		outcome, balance, events, err := s.applyOne(ctx, h, req.Target, open[i].ID)
		if err != nil {
			outcome = ApplyAdvanceOutcome{
				AssignmentID: open[i].ID,
				Applied:      decimal.Zero,
				Skipped:      true,
				Code:         shared.CodeOf(err),
				Message:      errorMessage(err),
			}
			if errors.Is(err, errAdvanceEmpty) {
				remaining = decimal.Zero
			}
			if shared.IsKind(err, shared.KindInfrastructure) {
				s.logger.Warn("advance application failed",
					zap.String("tenant_id", tenantID.String()),
					zap.String("assignment_id", open[i].ID.String()),
					zap.Error(err),
				)
			}
		} else {
			remaining = balance
			out.TotalApplied = out.TotalApplied.Add(outcome.Applied)
			s.publish(ctx, events)
		}
		out.Outcomes = append(out.Outcomes, outcome)
	}
	out.RemainingBalance = remaining

	telemetry.AddEvent(span, "advance_applied",
		"assignments", len(out.Outcomes),
		"total_applied", out.TotalApplied.String(),
	)
	if out.TotalApplied.IsPositive() && s.metrics != nil {
		s.metrics.RecordPayment(ctx, tenantID, string(fee.PaymentMethodAdvance), telemetry.PaymentStatusSuccess)
		s.metrics.RecordPaymentAmount(ctx, tenantID, string(fee.PaymentMethodAdvance), out.TotalApplied)
	}
	return out, nil
}

// applyOne consumes advance toward one assignment with fresh state. It returns
// the account balance after the write.
func (s *AdvanceService) applyOne(ctx context.Context, h shared.TenantHandle, target fee.Target, assignmentID uuid.UUID) (ApplyAdvanceOutcome, decimal.Decimal, []shared.DomainEvent, error) {
	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)

	var (
		outcome ApplyAdvanceOutcome
		balance decimal.Decimal
		events  []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "apply_advance", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			account, err := repos.Advances.FindAccount(ctx, tenantID, target)
			if err != nil {
				return err
			}
			if account == nil || !account.Balance.IsPositive() {
				return errAdvanceEmpty
			}
			a, err := repos.Assignments.FindByIDForTenant(ctx, tenantID, assignmentID)
			if err != nil {
				return err
			}
			due := a.Evaluate(now, precision).Balance
			if !due.IsPositive() {
				return fee.ErrAlreadyPaid
			}
			amount := decimal.Min(due, account.Balance)

			paid, err := a.ApplyPayment(amount, now, precision)
			if err != nil {
				return err
			}
			entry, err := account.Consume(amount, a.ID, now)
			if err != nil {
				return err
			}
			txn, err := fee.NewFeeTransaction(a, amount, fee.PaymentMethodAdvance, "", paid, now)
			if err != nil {
				return err
			}
			txn.WithAdvanceEntry(entry.ID).WithCreator(h.Actor())
			entry.WithTransaction(txn.ID).WithOperator(h.Actor())

			if err := repos.Assignments.SaveWithLock(ctx, a, paid.After); err != nil {
				return err
			}
			if err := repos.Advances.SaveAccountWithLock(ctx, account); err != nil {
				return err
			}
			if err := repos.Transactions.Create(ctx, txn); err != nil {
				return err
			}
			if err := repos.Advances.AppendEntry(ctx, entry); err != nil {
				return err
			}

			txID := txn.ID
			outcome = ApplyAdvanceOutcome{
				AssignmentID:  a.ID,
				Applied:       amount,
				Status:        paid.After.Status,
				TransactionID: &txID,
			}
			balance = account.Balance
			events = drainEvents(txn)
			return nil
		})
	})
	return outcome, balance, events, err
}
