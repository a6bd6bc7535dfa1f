package fee

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_PaySingleFee(t *testing.T) {
	t.Run("full payment before the due date settles the assignment", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		receipt := l.pay(a.ID, "1000")

		assert.Equal(t, fee.StatusPaid, receipt.Assignment.Evaluation.Status)
		assert.True(t, receipt.Assignment.Evaluation.Balance.IsZero())
		assert.Equal(t, fee.TransactionCompleted, receipt.Transaction.Status)
		assert.True(t, receipt.Transaction.FineApplied.IsZero())
		assert.Contains(t, l.publisher.types(), fee.EventTypePaymentRecorded)

		_, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("1"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrAlreadyPaid)
	})

	t.Run("late partial payment accrues the fine", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		l.clock.Set(jan15)

		receipt := l.pay(a.ID, "400")

		ev := receipt.Assignment.Evaluation
		assert.True(t, ev.Fine.Equal(dec("50")))
		assert.True(t, ev.Final.Equal(dec("1050")))
		assert.True(t, ev.Balance.Equal(dec("650")))
		assert.Equal(t, fee.StatusPartial, ev.Status)
		assert.True(t, ev.Overdue)
		assert.True(t, receipt.Transaction.FineApplied.Equal(dec("50")))
	})

	t.Run("payment above the balance is rejected", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		_, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("1000.01"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrExceedsBalance)
		assert.Equal(t, shared.KindInvariant, shared.KindOf(err))
		assert.True(t, l.get(a.ID).Evaluation.Paid.IsZero())
	})

	t.Run("partial payment is refused when the assignment disallows it", func(t *testing.T) {
		l := newLedger(t)
		no := false
		res, err := l.assignments.Stamp(l.ctx, l.h, StampRequest{
			PlanBindingID:       l.binding.ID,
			Target:              l.student,
			Month:               1,
			Year:                2025,
			AllowPartialPayment: &no,
		})
		require.NoError(t, err)

		_, err = l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: res.Assignment.ID, Amount: dec("500"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrPartialNotAllowed)
	})

	t.Run("input is validated", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		_, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: decimal.Zero, Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrInvalidAmount)

		_, err = l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("10"), Method: fee.PaymentMethodAdvance})
		assert.ErrorIs(t, err, fee.ErrInvalidPaymentMethod)

		_, err = l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("0.001"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrInvalidAmount)
	})

	t.Run("another tenant cannot pay the assignment", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		_, err := l.payments.PaySingleFee(l.ctx, l.otherTenant(), PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("10"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrAssignmentNotFound)
	})

	t.Run("overpayment is routed to the advance ledger when enabled", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowOverpayment = true
		l := newLedger(t, WithPolicy(policy))
		a := l.stamp(l.student, 1)

		receipt := l.pay(a.ID, "1200")

		assert.True(t, receipt.Transaction.AmountPaid.Equal(dec("1000")))
		assert.True(t, receipt.AdvanceCredited.Equal(dec("200")))
		assert.Equal(t, fee.StatusPaid, receipt.Assignment.Evaluation.Status)

		balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, l.student)
		require.NoError(t, err)
		assert.True(t, balance.Balance.Equal(dec("200")))
		assert.Contains(t, l.publisher.types(), fee.EventTypeAdvanceDeposited)
	})

	t.Run("amounts are rounded half to even at the tenant precision", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		receipt := l.pay(a.ID, "100.015")
		assert.True(t, receipt.Transaction.AmountPaid.Equal(dec("100.02")), receipt.Transaction.AmountPaid.String())

		receipt = l.pay(a.ID, "100.005")
		assert.True(t, receipt.Transaction.AmountPaid.Equal(dec("100")), receipt.Transaction.AmountPaid.String())
	})
}

func TestPaymentService_ConflictRetry(t *testing.T) {
	t.Run("retries version conflicts within the budget", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		tx := &conflictingTransactor{inner: l.deps.Transactor, n: 2}
		l.deps.Transactor = tx
		l.build()

		receipt := l.pay(a.ID, "100")
		assert.True(t, receipt.Assignment.Evaluation.Paid.Equal(dec("100")))
		assert.Equal(t, 3, tx.calls)
	})

	t.Run("gives up with a conflict after the budget", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		l.deps.Transactor = &conflictingTransactor{inner: l.deps.Transactor, n: 10}
		l.build()

		_, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("100"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrConcurrentModification)
		assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	})

	t.Run("concurrent payments never overpay", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: a.ID, Amount: dec("400"), Method: fee.PaymentMethodCash})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		ev := l.get(a.ID).Evaluation
		assert.Equal(t, 2, succeeded)
		assert.True(t, ev.Paid.Equal(dec("800")))
		assert.True(t, ev.Paid.LessThanOrEqual(ev.Final))
	})
}

func TestPaymentService_PayMultipleFees(t *testing.T) {
	t.Run("pays every line under one batch", func(t *testing.T) {
		l := newLedger(t)
		jan := l.stamp(l.student, 1)
		feb := l.stamp(l.student, 2)

		receipt, err := l.payments.PayMultipleFees(l.ctx, l.h, PayMultipleFeesRequest{
			Target: l.student,
			Lines: []PaymentLine{
				{AssignmentID: jan.ID, Amount: dec("1000")},
				{AssignmentID: feb.ID, Amount: dec("250")},
			},
			Method:      fee.PaymentMethodBankTransfer,
			ReferenceNo: "BT-1",
		})
		require.NoError(t, err)
		assert.True(t, receipt.Total.Equal(dec("1250")))
		require.Len(t, receipt.Transactions, 2)
		for _, txn := range receipt.Transactions {
			require.NotNil(t, txn.BatchID)
			assert.Equal(t, receipt.BatchID, *txn.BatchID)
		}
		assert.Equal(t, fee.StatusPaid, l.get(jan.ID).Evaluation.Status)
		assert.Equal(t, fee.StatusPartial, l.get(feb.ID).Evaluation.Status)
	})

	t.Run("one invalid line rejects the whole batch", func(t *testing.T) {
		l := newLedger(t)
		jan := l.stamp(l.student, 1)
		feb := l.stamp(l.student, 2)

		_, err := l.payments.PayMultipleFees(l.ctx, l.h, PayMultipleFeesRequest{
			Target: l.student,
			Lines: []PaymentLine{
				{AssignmentID: jan.ID, Amount: dec("500")},
				{AssignmentID: feb.ID, Amount: dec("5000")},
			},
			Method: fee.PaymentMethodCash,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBatchRejected)

		var be *BatchError
		require.True(t, errors.As(err, &be))
		require.Len(t, be.Lines, 1)
		assert.Equal(t, 1, be.Lines[0].Index)
		assert.Equal(t, fee.ErrExceedsBalance.Code, be.Lines[0].Code)
		assert.Equal(t, shared.KindInvariant, shared.KindOf(err))

		assert.True(t, l.get(jan.ID).Evaluation.Paid.IsZero())
		assert.True(t, l.get(feb.ID).Evaluation.Paid.IsZero())
		txns, err := l.payments.ListTransactions(l.ctx, l.h, jan.ID)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("every failing line is reported", func(t *testing.T) {
		l := newLedger(t)
		jan := l.stamp(l.student, 1)
		otherStudent := l.directory.add(l.h.TenantID(), fee.StudentTarget(uuid.New()))
		foreign := l.stamp(otherStudent, 1)

		_, err := l.payments.PayMultipleFees(l.ctx, l.h, PayMultipleFeesRequest{
			Target: l.student,
			Lines: []PaymentLine{
				{AssignmentID: jan.ID, Amount: dec("100")},
				{AssignmentID: jan.ID, Amount: dec("100")},
				{AssignmentID: foreign.ID, Amount: dec("100")},
				{AssignmentID: uuid.New(), Amount: dec("100")},
				{AssignmentID: jan.ID, Amount: dec("-1")},
			},
			Method: fee.PaymentMethodCash,
		})
		var be *BatchError
		require.True(t, errors.As(err, &be))

		codes := make(map[int]string)
		for _, line := range be.Lines {
			codes[line.Index] = line.Code
		}
		assert.Equal(t, "DUPLICATE_LINE", codes[1])
		assert.Equal(t, "TARGET_MISMATCH", codes[2])
		assert.Equal(t, fee.ErrAssignmentNotFound.Code, codes[3])
		assert.Equal(t, fee.ErrInvalidAmount.Code, codes[4])
		assert.NotContains(t, codes, 0)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.payments.PayMultipleFees(l.ctx, l.h, PayMultipleFeesRequest{Target: l.student, Method: fee.PaymentMethodCash})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})
}

func TestPaymentService_RevertFeeTransaction(t *testing.T) {
	t.Run("revert restores the balance and keeps the row", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		receipt := l.pay(a.ID, "400")
		l.clock.Set(jan20)

		res, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID, Reason: "bounced"})
		require.NoError(t, err)
		assert.Equal(t, fee.TransactionReverted, res.Transaction.Status)
		assert.Equal(t, "bounced", res.Transaction.RevertReason)
		assert.True(t, res.Assignment.Evaluation.Paid.IsZero())
		assert.Equal(t, fee.StatusPending, res.Assignment.Evaluation.Status)
		assert.True(t, res.Restored.IsZero())

		txns, err := l.payments.ListTransactions(l.ctx, l.h, a.ID)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, fee.TransactionReverted, txns[0].Status)
		assert.Contains(t, l.publisher.types(), fee.EventTypePaymentReverted)
	})

	t.Run("a transaction is reverted once", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		receipt := l.pay(a.ID, "400")

		_, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID})
		require.NoError(t, err)
		_, err = l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID})
		assert.ErrorIs(t, err, fee.ErrAlreadyReverted)
	})

	t.Run("closed period cannot be reverted", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		receipt := l.pay(a.ID, "400")
		l.clock.Set(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

		_, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID})
		assert.ErrorIs(t, err, fee.ErrReversalWindowClosed)
		assert.True(t, l.get(a.ID).Evaluation.Paid.Equal(dec("400")))
	})

	t.Run("overpayment credit is taken back out of the advance ledger", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowOverpayment = true
		l := newLedger(t, WithPolicy(policy))
		a := l.stamp(l.student, 1)
		receipt := l.pay(a.ID, "1500")
		require.True(t, receipt.AdvanceCredited.Equal(dec("500")))

		res, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID, Reason: "cheque bounced"})
		require.NoError(t, err)
		assert.True(t, res.Assignment.Evaluation.Paid.IsZero())
		assert.True(t, res.AdvanceReversed.Equal(dec("500")))
		assert.True(t, res.Restored.IsZero())

		balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, l.student)
		require.NoError(t, err)
		assert.True(t, balance.Balance.IsZero(), "advance still credited %s", balance.Balance)

		entries, err := l.advances.ListAdvanceEntries(l.ctx, l.h, l.student)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, fee.AdvanceDeposit, entries[0].Type)
		assert.Equal(t, fee.AdvanceConsume, entries[1].Type)
		require.NotNil(t, entries[1].TransactionID)
		assert.Equal(t, receipt.Transaction.ID, *entries[1].TransactionID)
	})

	t.Run("spent overpayment credit blocks the revert", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowOverpayment = true
		l := newLedger(t, WithPolicy(policy))
		jan := l.stamp(l.student, 1)
		feb := l.stamp(l.student, 2)
		receipt := l.pay(jan.ID, "1500")

		applied, err := l.advances.ApplyAdvance(l.ctx, l.h, ApplyAdvanceRequest{Target: l.student})
		require.NoError(t, err)
		require.True(t, applied.TotalApplied.Equal(dec("500")))

		_, err = l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: receipt.Transaction.ID})
		assert.ErrorIs(t, err, fee.ErrAdvanceCreditSpent)
		assert.True(t, shared.IsKind(err, shared.KindPolicy))

		assert.True(t, l.get(jan.ID).Evaluation.Paid.Equal(dec("1000")))
		assert.True(t, l.get(feb.ID).Evaluation.Paid.Equal(dec("500")))
		txns, err := l.payments.ListTransactions(l.ctx, l.h, jan.ID)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, fee.TransactionCompleted, txns[0].Status)
	})

	t.Run("unknown transaction is not found", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: uuid.New()})
		assert.ErrorIs(t, err, fee.ErrTransactionNotFound)
	})
}
