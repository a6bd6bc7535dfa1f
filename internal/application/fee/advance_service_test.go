package fee

import (
	"testing"
	"time"

	"github.com/school/backend/internal/domain/fee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceService_RecordAdvancePayment(t *testing.T) {
	l := newLedger(t)

	entry, err := l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{
		Target:      l.student,
		Amount:      dec("300"),
		Method:      fee.PaymentMethodCash,
		ReferenceNo: "R-1",
		Remark:      "term deposit",
	})
	require.NoError(t, err)
	assert.Equal(t, fee.AdvanceDeposit, entry.Type)
	assert.True(t, entry.BalanceAfter.Equal(dec("300")))

	l.clock.Set(jan5.Add(time.Minute))
	_, err = l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("200"), Method: fee.PaymentMethodCard})
	require.NoError(t, err)

	balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, l.student)
	require.NoError(t, err)
	assert.True(t, balance.Deposits.Equal(dec("500")))
	assert.True(t, balance.Balance.Equal(dec("500")))

	entries, err := l.advances.ListAdvanceEntries(l.ctx, l.h, l.student)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "term deposit", entries[0].Remark)

	t.Run("advance method and non positive amounts are rejected", func(t *testing.T) {
		_, err := l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("10"), Method: fee.PaymentMethodAdvance})
		assert.ErrorIs(t, err, fee.ErrInvalidPaymentMethod)
		_, err = l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("-10"), Method: fee.PaymentMethodCash})
		assert.ErrorIs(t, err, fee.ErrInvalidAmount)
	})

	t.Run("target without an account has a zero balance", func(t *testing.T) {
		other := l.directory.add(l.h.TenantID(), fee.ApplicationTarget(l.student.ID()))
		balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, other)
		require.NoError(t, err)
		assert.True(t, balance.Balance.IsZero())
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		balance, err := l.advances.GetAdvanceBalance(l.ctx, l.otherTenant(), l.student)
		require.NoError(t, err)
		assert.True(t, balance.Balance.IsZero())
	})
}

func TestAdvanceService_ApplyAdvance(t *testing.T) {
	t.Run("consumes oldest due first and stops when spent", func(t *testing.T) {
		l := newLedger(t)
		jan := l.stamp(l.student, 1)
		feb := l.stamp(l.student, 2)
		mar := l.stamp(l.student, 3)
		_, err := l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("1500"), Method: fee.PaymentMethodCash})
		require.NoError(t, err)

		res, err := l.advances.ApplyAdvance(l.ctx, l.h, ApplyAdvanceRequest{Target: l.student})
		require.NoError(t, err)
		require.Len(t, res.Outcomes, 2)
		assert.Equal(t, jan.ID, res.Outcomes[0].AssignmentID)
		assert.True(t, res.Outcomes[0].Applied.Equal(dec("1000")))
		assert.Equal(t, fee.StatusPaid, res.Outcomes[0].Status)
		assert.Equal(t, feb.ID, res.Outcomes[1].AssignmentID)
		assert.True(t, res.Outcomes[1].Applied.Equal(dec("500")))
		assert.Equal(t, fee.StatusPartial, res.Outcomes[1].Status)
		assert.True(t, res.TotalApplied.Equal(dec("1500")))
		assert.True(t, res.RemainingBalance.IsZero())

		assert.True(t, l.get(mar.ID).Evaluation.Paid.IsZero())

		txns, err := l.payments.ListTransactions(l.ctx, l.h, feb.ID)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, fee.PaymentMethodAdvance, txns[0].Method)
		assert.NotNil(t, txns[0].AdvanceEntryID)

		balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, l.student)
		require.NoError(t, err)
		assert.True(t, balance.Consumptions.Equal(dec("1500")))
		assert.True(t, balance.Balance.IsZero())

		t.Run("reverting an advance funded payment restores the funds", func(t *testing.T) {
			res, err := l.payments.RevertFeeTransaction(l.ctx, l.h, RevertRequest{TransactionID: txns[0].ID})
			require.NoError(t, err)
			assert.True(t, res.Restored.Equal(dec("500")))

			balance, err := l.advances.GetAdvanceBalance(l.ctx, l.h, l.student)
			require.NoError(t, err)
			assert.True(t, balance.Restores.Equal(dec("500")))
			assert.True(t, balance.Balance.Equal(dec("500")))
		})
	})

	t.Run("period order pays the earliest month first", func(t *testing.T) {
		l := newLedger(t, WithPolicy(Policy{
			ReversalWindow:     DefaultPolicy().ReversalWindow,
			MaxConflictRetries: 3,
			AdvanceOrder:       AdvancePeriodOrder,
		}))
		jan := l.stamp(l.student, 1)
		early := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
		res, err := l.assignments.Stamp(l.ctx, l.h, StampRequest{PlanBindingID: l.binding.ID, Target: l.student, Month: 2, Year: 2025, DueDate: &early})
		require.NoError(t, err)
		feb := res.Assignment
		_, err = l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("1000"), Method: fee.PaymentMethodCash})
		require.NoError(t, err)

		applied, err := l.advances.ApplyAdvance(l.ctx, l.h, ApplyAdvanceRequest{Target: l.student})
		require.NoError(t, err)
		require.Len(t, applied.Outcomes, 1)
		assert.Equal(t, jan.ID, applied.Outcomes[0].AssignmentID)
		assert.True(t, l.get(feb.ID).Evaluation.Paid.IsZero())
	})

	t.Run("assignments refusing partial payment are skipped", func(t *testing.T) {
		l := newLedger(t)
		no := false
		res, err := l.assignments.Stamp(l.ctx, l.h, StampRequest{PlanBindingID: l.binding.ID, Target: l.student, Month: 1, Year: 2025, AllowPartialPayment: &no})
		require.NoError(t, err)
		feb := l.stamp(l.student, 2)
		_, err = l.advances.RecordAdvancePayment(l.ctx, l.h, RecordAdvanceRequest{Target: l.student, Amount: dec("600"), Method: fee.PaymentMethodCash})
		require.NoError(t, err)

		applied, err := l.advances.ApplyAdvance(l.ctx, l.h, ApplyAdvanceRequest{Target: l.student})
		require.NoError(t, err)
		require.Len(t, applied.Outcomes, 2)
		assert.Equal(t, res.Assignment.ID, applied.Outcomes[0].AssignmentID)
		assert.True(t, applied.Outcomes[0].Skipped)
		assert.Equal(t, fee.ErrPartialNotAllowed.Code, applied.Outcomes[0].Code)
		assert.Equal(t, fee.ErrPartialNotAllowed.Message, applied.Outcomes[0].Message)
		assert.Equal(t, feb.ID, applied.Outcomes[1].AssignmentID)
		assert.True(t, applied.Outcomes[1].Applied.Equal(dec("600")))
		assert.True(t, applied.RemainingBalance.IsZero())
	})

	t.Run("no balance applies nothing", func(t *testing.T) {
		l := newLedger(t)
		l.stamp(l.student, 1)

		applied, err := l.advances.ApplyAdvance(l.ctx, l.h, ApplyAdvanceRequest{Target: l.student})
		require.NoError(t, err)
		assert.Empty(t, applied.Outcomes)
		assert.True(t, applied.TotalApplied.IsZero())
	})
}
