package fee

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingTransactor struct{}

func (panickingTransactor) WithinTransaction(context.Context, func(context.Context, fee.Repositories) error) error {
	panic("connection pool exhausted")
}

type failingTransactor struct{}

func (failingTransactor) WithinTransaction(context.Context, func(context.Context, fee.Repositories) error) error {
	return errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestEngine_Results(t *testing.T) {
	l := newLedger(t)
	engine := NewEngine(l.deps, WithClock(l.clock.Now), WithEventPublisher(l.publisher))

	t.Run("success carries data and message", func(t *testing.T) {
		res := engine.Stamp(l.ctx, l.h, StampRequest{PlanBindingID: l.binding.ID, Target: l.student, Month: 1, Year: 2025})

		require.True(t, res.Success)
		require.NotNil(t, res.Data)
		assert.True(t, res.Data.Created)
		assert.NotEmpty(t, res.Message)
		assert.Empty(t, res.ErrorCode)
		assert.NoError(t, res.Err())
	})

	t.Run("domain failure keeps kind code and message", func(t *testing.T) {
		res := engine.GetAssignment(l.ctx, l.h, uuid.New())

		assert.False(t, res.Success)
		assert.Nil(t, res.Data)
		assert.Equal(t, shared.KindNotFound, res.ErrorKind)
		assert.Equal(t, fee.ErrAssignmentNotFound.Code, res.ErrorCode)
		assert.Equal(t, fee.ErrAssignmentNotFound.Message, res.Message)
		assert.ErrorIs(t, res.Err(), fee.ErrAssignmentNotFound)
	})

	t.Run("batch rejection lists every failing line", func(t *testing.T) {
		jan := l.get(l.stamp(l.student, 1).ID)
		res := engine.PayMultipleFees(l.ctx, l.h, PayMultipleFeesRequest{
			Target: l.student,
			Lines: []PaymentLine{
				{AssignmentID: jan.ID, Amount: dec("100")},
				{AssignmentID: uuid.New(), Amount: dec("100")},
				{AssignmentID: jan.ID, Amount: dec("0")},
			},
			Method: fee.PaymentMethodCash,
		})

		assert.False(t, res.Success)
		assert.Equal(t, ErrBatchRejected.Code, res.ErrorCode)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, 1, res.Errors[0].Index)
		assert.Equal(t, fee.ErrAssignmentNotFound.Code, res.Errors[0].Code)
		assert.Equal(t, 2, res.Errors[1].Index)
		assert.Equal(t, fee.ErrInvalidAmount.Code, res.Errors[1].Code)
		assert.True(t, l.get(jan.ID).Evaluation.Paid.IsZero())
	})

	t.Run("missing tenant is a validation failure", func(t *testing.T) {
		res := engine.ListFeeTypes(l.ctx, shared.TenantHandle{}, shared.DefaultFilter())

		assert.False(t, res.Success)
		assert.Equal(t, shared.KindValidation, res.ErrorKind)
		assert.Equal(t, shared.ErrTenantRequired.Code, res.ErrorCode)
	})
}

func TestEngine_InfrastructureFailures(t *testing.T) {
	l := newLedger(t)

	t.Run("store errors are hidden behind a generic message", func(t *testing.T) {
		deps := l.deps
		deps.Transactor = failingTransactor{}
		engine := NewEngine(deps, WithClock(l.clock.Now))

		res := engine.CreateFeeGroup(l.ctx, l.h, CreateFeeGroupRequest{Name: "Grade 3"})
		require.True(t, res.Success, "fee groups are created outside a transaction")

		stamp := engine.Stamp(l.ctx, l.h, StampRequest{PlanBindingID: l.binding.ID, Target: l.student, Month: 1, Year: 2025})
		assert.False(t, stamp.Success)
		assert.Equal(t, shared.KindInfrastructure, stamp.ErrorKind)
		assert.NotContains(t, stamp.Message, "10.0.0.5")
		assert.Contains(t, stamp.Message, "stamp")
	})

	t.Run("panics are recovered into a failed result", func(t *testing.T) {
		deps := l.deps
		deps.Transactor = panickingTransactor{}
		engine := NewEngine(deps, WithClock(l.clock.Now))

		var res Result[*PaymentReceipt]
		require.NotPanics(t, func() {
			res = engine.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{AssignmentID: uuid.New(), Amount: dec("10"), Method: fee.PaymentMethodCash})
		})
		assert.False(t, res.Success)
		assert.Equal(t, shared.KindInfrastructure, res.ErrorKind)
		assert.Equal(t, "INTERNAL_ERROR", res.ErrorCode)
		assert.NotContains(t, res.Message, "pool")
	})
}
