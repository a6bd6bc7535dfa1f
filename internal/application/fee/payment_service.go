package fee

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records and reverts fee payments
type PaymentService struct {
	*core
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(deps Dependencies, opts ...Option) *PaymentService {
	return &PaymentService{core: newCore(deps, opts...)}
}

// PaySingleFeeRequest represents a payment against one assignment
type PaySingleFeeRequest struct {
	AssignmentID uuid.UUID
	Amount       decimal.Decimal
	Method       fee.PaymentMethod
	ReferenceNo  string
	Note         string
	Metadata     map[string]interface{}
}

// PaymentLine is one assignment of a multi-fee payment
type PaymentLine struct {
	AssignmentID uuid.UUID
	Amount       decimal.Decimal
}

// PayMultipleFeesRequest represents one receipt covering several assignments
type PayMultipleFeesRequest struct {
	Target      fee.Target
	Lines       []PaymentLine
	Method      fee.PaymentMethod
	ReferenceNo string
	Note        string
}

// RevertRequest represents a request to revert a whole transaction
type RevertRequest struct {
	TransactionID uuid.UUID
	Reason        string
}

// errLineDuplicate rejects a batch line repeating an earlier assignment
var errLineDuplicate = shared.NewValidationError("DUPLICATE_LINE", "Assignment appears more than once in the batch")

// errLineTargetMismatch rejects a batch line billed to another target
var errLineTargetMismatch = shared.NewValidationError("TARGET_MISMATCH", "Assignment does not belong to the paying target")

// errEmptyBatch rejects a batch with no lines
var errEmptyBatch = shared.NewValidationError("EMPTY_BATCH", "At least one payment line is required")

func validateMethod(method fee.PaymentMethod) error {
	if !method.IsValid() || method == fee.PaymentMethodAdvance {
		return fee.ErrInvalidPaymentMethod
	}
	return nil
}

// PaySingleFee applies a payment to one assignment. With overpayment enabled
// the excess over the balance is deposited to the target's advance ledger in
// the same transaction.
func (s *PaymentService) PaySingleFee(ctx context.Context, h shared.TenantHandle, req PaySingleFeeRequest) (*PaymentReceipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_payment", "pay_single_fee")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAssignmentID, req.AssignmentID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentMethod, string(req.Method),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fee.ErrInvalidAmount
	}
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}

	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)
	amount := precision.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, fee.ErrInvalidAmount
	}

	var (
		receipt *PaymentReceipt
		events  []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "pay_single_fee", func(attempt int) error {
		telemetry.SetAttribute(span, telemetry.SpanAttrAttempt, attempt)
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			a, err := repos.Assignments.FindByIDForTenant(ctx, tenantID, req.AssignmentID)
			if err != nil {
				return err
			}

			apply, excess := amount, decimal.Zero
			if s.policy.AllowOverpayment && !a.IsDeleted() {
				if balance := a.Evaluate(now, precision).Balance; balance.IsPositive() && amount.GreaterThan(balance) {
					apply, excess = balance, amount.Sub(balance)
				}
			}

			outcome, err := a.ApplyPayment(apply, now, precision)
			if err != nil {
				return err
			}
			txn, err := fee.NewFeeTransaction(a, apply, req.Method, req.ReferenceNo, outcome, now)
			if err != nil {
				return err
			}
			txn.WithNote(req.Note).WithCreator(h.Actor())
			for k, v := range req.Metadata {
				txn.WithMetadata(k, v)
			}

			if err := repos.Assignments.SaveWithLock(ctx, a, outcome.After); err != nil {
				return err
			}
			if err := repos.Transactions.Create(ctx, txn); err != nil {
				return err
			}

			var account *fee.AdvanceAccount
			if excess.IsPositive() {
				account, err = depositAdvance(ctx, repos, h, a.Target, excess, req.Method, req.ReferenceNo, now, func(e *fee.AdvanceEntry) {
					e.WithTransaction(txn.ID).WithRemark("overpayment of assignment " + a.ID.String())
				})
				if err != nil {
					return err
				}
			}

			receipt = &PaymentReceipt{
				Transaction:     ToTransactionView(txn),
				Assignment:      ToAssignmentView(a, outcome.After),
				AdvanceCredited: excess,
			}
			events = drainEvents(txn)
			if account != nil {
				events = append(events, drainEvents(account)...)
			}
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordPayment(ctx, tenantID, req.Method, telemetry.PaymentStatusFailed, decimal.Zero)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionID, receipt.Transaction.ID.String())
	s.publish(ctx, events)
	s.recordPayment(ctx, tenantID, req.Method, telemetry.PaymentStatusSuccess, amount)
	s.logger.Info("fee payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("assignment_id", req.AssignmentID.String()),
		zap.String("transaction_id", receipt.Transaction.ID.String()),
		zap.String("amount", receipt.Transaction.AmountPaid.String()),
		zap.String("status", string(receipt.Assignment.Evaluation.Status)),
	)
	return receipt, nil
}

// PayMultipleFees pays several assignments of one target under a shared
// BatchID. Every line is checked and every failure reported; if any line
// fails nothing is written.
func (s *PaymentService) PayMultipleFees(ctx context.Context, h shared.TenantHandle, req PayMultipleFeesRequest) (*BatchReceipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_payment", "pay_multiple_fees")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTargetType, string(req.Target.Kind()),
		telemetry.SpanAttrTargetID, req.Target.ID().String(),
		telemetry.SpanAttrPaymentMethod, string(req.Method),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, errEmptyBatch
	}

	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)

	// Static checks first: amount and duplicates
	var lineErrors []LineError
	seen := make(map[uuid.UUID]int, len(req.Lines))
	ids := make([]uuid.UUID, 0, len(req.Lines))
	for i, line := range req.Lines {
		var lineErr error
		switch {
		case line.AssignmentID == uuid.Nil:
			lineErr = fee.ErrAssignmentNotFound
		case !precision.Round(line.Amount).IsPositive():
			lineErr = fee.ErrInvalidAmount
		default:
			if _, dup := seen[line.AssignmentID]; dup {
				lineErr = errLineDuplicate
			}
		}
		if lineErr != nil {
			lineErrors = append(lineErrors, newLineError(i, line.AssignmentID, lineErr))
			continue
		}
		seen[line.AssignmentID] = i
		ids = append(ids, line.AssignmentID)
	}
	sortIDs(ids)

	var (
		receipt *BatchReceipt
		events  []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "pay_multiple_fees", func(attempt int) error {
		telemetry.SetAttribute(span, telemetry.SpanAttrAttempt, attempt)
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			loaded, err := repos.Assignments.FindByIDsForTenant(ctx, tenantID, ids)
			if err != nil {
				return err
			}
			byID := make(map[uuid.UUID]*fee.FeeAssignment, len(loaded))
			for i := range loaded {
				byID[loaded[i].ID] = &loaded[i]
			}

			failures := append([]LineError(nil), lineErrors...)
			type applied struct {
				index      int
				assignment *fee.FeeAssignment
				outcome    fee.PaymentOutcome
				amount     decimal.Decimal
			}
			var ok []applied
			// Lines are applied in ascending assignment order
			for _, id := range ids {
				index := seen[id]
				if failed(failures, index) {
					continue
				}
				a, found := byID[id]
				if !found {
					failures = append(failures, newLineError(index, id, fee.ErrAssignmentNotFound))
					continue
				}
				if !a.Target.Equal(req.Target) {
					failures = append(failures, newLineError(index, id, errLineTargetMismatch))
					continue
				}
				amount := precision.Round(req.Lines[index].Amount)
				outcome, err := a.ApplyPayment(amount, now, precision)
				if err != nil {
					failures = append(failures, newLineError(index, id, err))
					continue
				}
				ok = append(ok, applied{index: index, assignment: a, outcome: outcome, amount: amount})
			}
			if len(failures) > 0 {
				return newBatchError(failures)
			}

			batchID := uuid.New()
			out := &BatchReceipt{BatchID: batchID, Total: decimal.Zero}
			var pending []shared.DomainEvent
			for _, line := range ok {
				txn, err := fee.NewFeeTransaction(line.assignment, line.amount, req.Method, req.ReferenceNo, line.outcome, now)
				if err != nil {
					return err
				}
				txn.WithBatch(batchID).WithNote(req.Note).WithCreator(h.Actor())
				if err := repos.Assignments.SaveWithLock(ctx, line.assignment, line.outcome.After); err != nil {
					return err
				}
				if err := repos.Transactions.Create(ctx, txn); err != nil {
					return err
				}
				out.Total = out.Total.Add(line.amount)
				out.Transactions = append(out.Transactions, ToTransactionView(txn))
				out.Assignments = append(out.Assignments, ToAssignmentView(line.assignment, line.outcome.After))
				pending = append(pending, drainEvents(txn)...)
			}
			receipt, events = out, pending
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordPayment(ctx, tenantID, req.Method, telemetry.PaymentStatusFailed, decimal.Zero)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchID, receipt.BatchID.String(),
		telemetry.SpanAttrAmount, receipt.Total.String(),
	)
	s.publish(ctx, events)
	s.recordPayment(ctx, tenantID, req.Method, telemetry.PaymentStatusSuccess, receipt.Total)
	s.logger.Info("fee batch payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", receipt.BatchID.String()),
		zap.Int("lines", len(receipt.Transactions)),
		zap.String("total", receipt.Total.String()),
	)
	return receipt, nil
}

// RevertFeeTransaction reverts a whole completed transaction while its
// billing period is still open. Advance-funded payments give the funds back
// to the advance ledger, and an overpayment credit is taken back out of it
// unless it has already been spent.
func (s *PaymentService) RevertFeeTransaction(ctx context.Context, h shared.TenantHandle, req RevertRequest) (*RevertResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_payment", "revert_transaction")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionID, req.TransactionID.String())

	if err := h.Validate(); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)

	var (
		result *RevertResult
		events []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "revert_transaction", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			txn, err := repos.Transactions.FindByIDForTenant(ctx, tenantID, req.TransactionID)
			if err != nil {
				return err
			}
			if !txn.IsCompleted() {
				return fee.ErrAlreadyReverted
			}
			a, err := repos.Assignments.FindByIDForTenant(ctx, tenantID, txn.AssignmentID)
			if err != nil {
				return err
			}
			if now.After(a.PeriodOpenUntil(s.policy.ReversalWindow)) {
				return fee.ErrReversalWindowClosed
			}

			if err := txn.MarkReverted(h.Actor(), req.Reason, now); err != nil {
				return err
			}
			ev, err := a.RevertPayment(txn.AmountPaid, h.Actor(), now, precision)
			if err != nil {
				return err
			}
			if err := repos.Transactions.SaveWithLock(ctx, txn); err != nil {
				return err
			}
			if err := repos.Assignments.SaveWithLock(ctx, a, ev); err != nil {
				return err
			}

			restored := decimal.Zero
			if txn.IsFundedByAdvance() {
				if err := restoreAdvance(ctx, repos, h, txn, now); err != nil {
					return err
				}
				restored = txn.AmountPaid
			}
			withdrawn, err := reverseOverpayment(ctx, repos, h, txn, now)
			if err != nil {
				return err
			}

			result = &RevertResult{
				Transaction:     ToTransactionView(txn),
				Assignment:      ToAssignmentView(a, ev),
				Restored:        restored,
				AdvanceReversed: withdrawn,
			}
			events = drainEvents(txn)
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, events)
	if s.metrics != nil {
		s.metrics.RecordReversal(ctx, tenantID, string(result.Transaction.Method))
	}
	s.logger.Info("fee transaction reverted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", req.TransactionID.String()),
		zap.String("amount", result.Transaction.AmountPaid.String()),
		zap.String("status", string(result.Assignment.Evaluation.Status)),
	)
	return result, nil
}

// ListTransactions lists the transactions of an assignment oldest first
func (s *PaymentService) ListTransactions(ctx context.Context, h shared.TenantHandle, assignmentID uuid.UUID) ([]TransactionView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repos.Assignments.FindByIDForTenant(ctx, h.TenantID(), assignmentID); err != nil {
		return nil, err
	}
	txns, err := s.repos.Transactions.FindByAssignment(ctx, h.TenantID(), assignmentID)
	if err != nil {
		return nil, err
	}
	views := make([]TransactionView, len(txns))
	for i := range txns {
		views[i] = ToTransactionView(&txns[i])
	}
	return views, nil
}

// GetTransaction returns one transaction
func (s *PaymentService) GetTransaction(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*TransactionView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	txn, err := s.repos.Transactions.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	view := ToTransactionView(txn)
	return &view, nil
}

func (s *PaymentService) recordPayment(ctx context.Context, tenantID uuid.UUID, method fee.PaymentMethod, status telemetry.PaymentStatus, amount decimal.Decimal) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordPayment(ctx, tenantID, string(method), status)
	if amount.IsPositive() {
		s.metrics.RecordPaymentAmount(ctx, tenantID, string(method), amount)
	}
}

// depositAdvance credits amount to target's account, opening it on first use.
// decorate adjusts the ledger entry before it is appended.
func depositAdvance(ctx context.Context, repos fee.Repositories, h shared.TenantHandle, target fee.Target, amount decimal.Decimal, method fee.PaymentMethod, referenceNo string, now time.Time, decorate func(*fee.AdvanceEntry)) (*fee.AdvanceAccount, error) {
	account, err := repos.Advances.FindAccount(ctx, h.TenantID(), target)
	if err != nil {
		return nil, err
	}
	created := false
	if account == nil {
		account, err = fee.NewAdvanceAccount(h.TenantID(), target, now)
		if err != nil {
			return nil, err
		}
		account.SetCreatedBy(h.Actor())
		created = true
	}
	entry, err := account.Deposit(amount, method, referenceNo, now)
	if err != nil {
		return nil, err
	}
	entry.WithOperator(h.Actor())
	if decorate != nil {
		decorate(entry)
	}
	if created {
		err = repos.Advances.CreateAccount(ctx, account)
	} else {
		err = repos.Advances.SaveAccountWithLock(ctx, account)
	}
	if err != nil {
		return nil, err
	}
	if err := repos.Advances.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	return account, nil
}

// restoreAdvance credits a reverted advance-funded payment back to the
// account that is now billed for the transaction's target
func restoreAdvance(ctx context.Context, repos fee.Repositories, h shared.TenantHandle, txn *fee.FeeTransaction, now time.Time) error {
	account, err := repos.Advances.FindAccount(ctx, h.TenantID(), txn.Target)
	if err != nil {
		return err
	}
	if account == nil {
		return shared.NewInvariantViolation("ADVANCE_ACCOUNT_MISSING", "Advance account of an advance-funded payment is missing")
	}
	entry, err := account.Restore(txn.AmountPaid, txn.ID, now)
	if err != nil {
		return err
	}
	entry.WithOperator(h.Actor()).WithRemark(strings.TrimSpace("reverted " + txn.ReferenceNo))
	assignmentID := txn.AssignmentID
	entry.AssignmentID = &assignmentID
	if err := repos.Advances.SaveAccountWithLock(ctx, account); err != nil {
		return err
	}
	return repos.Advances.AppendEntry(ctx, entry)
}

// reverseOverpayment debits the advance credit that txn's overpayment
// deposited, returning the amount taken back
func reverseOverpayment(ctx context.Context, repos fee.Repositories, h shared.TenantHandle, txn *fee.FeeTransaction, now time.Time) (decimal.Decimal, error) {
	deposit, err := repos.Advances.FindEntryForTransaction(ctx, h.TenantID(), txn.ID, fee.AdvanceDeposit)
	if err != nil || deposit == nil {
		return decimal.Zero, err
	}
	account, err := repos.Advances.FindAccount(ctx, h.TenantID(), txn.Target)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, fee.ErrAdvanceCreditSpent
	}
	entry, err := account.ReverseDeposit(deposit, now)
	if err != nil {
		return decimal.Zero, err
	}
	entry.WithOperator(h.Actor()).WithRemark(strings.TrimSpace("reverted overpayment " + txn.ReferenceNo))
	if err := repos.Advances.SaveAccountWithLock(ctx, account); err != nil {
		return decimal.Zero, err
	}
	if err := repos.Advances.AppendEntry(ctx, entry); err != nil {
		return decimal.Zero, err
	}
	return entry.Amount, nil
}

func failed(lines []LineError, index int) bool {
	for _, l := range lines {
		if l.Index == index {
			return true
		}
	}
	return false
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
