package fee

import (
	"testing"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiverService(t *testing.T) {
	// A late partial payment assesses the fine of 50
	setup := func(t *testing.T) (*ledger, AssignmentView) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)
		l.clock.Set(jan15)
		l.pay(a.ID, "400")
		return l, a
	}

	t.Run("approved waiver removes the fine from the balance", func(t *testing.T) {
		l, a := setup(t)

		w, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("50"), Reason: "medical"})
		require.NoError(t, err)
		assert.Equal(t, fee.WaiverPending, w.Status)
		assert.True(t, w.OriginalFineAmount.Equal(dec("50")))
		assert.True(t, w.RemainingFineAmount.IsZero())
		assert.Equal(t, *l.h.Actor(), w.RequestedBy)

		decision, err := l.waivers.ApproveWaiver(l.ctx, l.h, DecideWaiverRequest{WaiverID: w.ID, Note: "ok"})
		require.NoError(t, err)
		assert.Equal(t, fee.WaiverApproved, decision.Waiver.Status)
		require.NotNil(t, decision.Assignment)

		ev := decision.Assignment.Evaluation
		assert.True(t, ev.Fine.IsZero())
		assert.True(t, ev.Final.Equal(dec("1000")))
		assert.True(t, ev.Balance.Equal(dec("600")))
		assert.True(t, l.get(a.ID).Evaluation.Balance.Equal(dec("600")))
		assert.Contains(t, l.publisher.types(), fee.EventTypeWaiverApproved)

		waivers, err := l.waivers.ListWaivers(l.ctx, l.h, a.ID)
		require.NoError(t, err)
		require.Len(t, waivers, 1)
		assert.Equal(t, fee.WaiverApproved, waivers[0].Status)
	})

	t.Run("partial waiver caps the fine", func(t *testing.T) {
		l, a := setup(t)

		w, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("20")})
		require.NoError(t, err)
		_, err = l.waivers.ApproveWaiver(l.ctx, l.h, DecideWaiverRequest{WaiverID: w.ID})
		require.NoError(t, err)

		ev := l.get(a.ID).Evaluation
		assert.True(t, ev.Fine.Equal(dec("30")))
		assert.True(t, ev.Balance.Equal(dec("630")))
	})

	t.Run("only one pending waiver per assignment", func(t *testing.T) {
		l, a := setup(t)

		_, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("10")})
		require.NoError(t, err)
		_, err = l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("10")})
		assert.ErrorIs(t, err, fee.ErrWaiverPending)
	})

	t.Run("waiver cannot exceed the accrued fine", func(t *testing.T) {
		l, a := setup(t)

		_, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("60")})
		assert.ErrorIs(t, err, fee.ErrExceedsAccruedFine)
	})

	t.Run("nothing to waive before the due date", func(t *testing.T) {
		l := newLedger(t)
		a := l.stamp(l.student, 1)

		_, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("10")})
		assert.ErrorIs(t, err, fee.ErrNoFineAccrued)
	})

	t.Run("rejected waiver leaves the assignment and cannot be decided again", func(t *testing.T) {
		l, a := setup(t)

		w, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("50")})
		require.NoError(t, err)
		decision, err := l.waivers.RejectWaiver(l.ctx, l.h, DecideWaiverRequest{WaiverID: w.ID, Note: "no"})
		require.NoError(t, err)
		assert.Equal(t, fee.WaiverRejected, decision.Waiver.Status)
		assert.Nil(t, decision.Assignment)
		assert.True(t, l.get(a.ID).Evaluation.Balance.Equal(dec("650")))

		_, err = l.waivers.ApproveWaiver(l.ctx, l.h, DecideWaiverRequest{WaiverID: w.ID})
		assert.ErrorIs(t, err, fee.ErrWaiverNotPending)
	})

	t.Run("waiver of another tenant is not found", func(t *testing.T) {
		l, a := setup(t)

		w, err := l.waivers.RequestWaiver(l.ctx, l.h, RequestWaiverRequest{AssignmentID: a.ID, WaiverAmount: dec("50")})
		require.NoError(t, err)
		other := l.otherTenant().WithActor(uuid.New())
		_, err = l.waivers.ApproveWaiver(l.ctx, other, DecideWaiverRequest{WaiverID: w.ID})
		assert.ErrorIs(t, err, fee.ErrWaiverNotFound)
	})
}
