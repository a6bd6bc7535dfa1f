package fee

import (
	"testing"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_FeeTypes(t *testing.T) {
	l := newLedger(t)

	t.Run("codes are normalized and unique per tenant", func(t *testing.T) {
		_, err := l.catalog.CreateFeeType(l.ctx, l.h, CreateFeeTypeRequest{Name: "Tuition again", Code: " tuition ", Frequency: fee.FrequencyMonthly})
		assert.ErrorIs(t, err, fee.ErrDuplicateCode)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))

		other := l.otherTenant().WithActor(uuid.New())
		created, err := l.catalog.CreateFeeType(l.ctx, other, CreateFeeTypeRequest{Name: "Tuition", Code: "tuition", Frequency: fee.FrequencyAnnually})
		require.NoError(t, err)
		assert.Equal(t, "TUITION", created.Code)
	})

	t.Run("invalid frequency is rejected", func(t *testing.T) {
		_, err := l.catalog.CreateFeeType(l.ctx, l.h, CreateFeeTypeRequest{Name: "Library", Code: "LIB", Frequency: "WEEKLY"})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		assert.Equal(t, "INVALID_FREQUENCY", shared.CodeOf(err))
	})

	t.Run("update bumps the version", func(t *testing.T) {
		updated, err := l.catalog.UpdateFeeType(l.ctx, l.h, l.feeType.ID, UpdateFeeTypeRequest{Name: "Tuition Fee", Frequency: fee.FrequencyQuarterly})
		require.NoError(t, err)
		assert.Equal(t, "Tuition Fee", updated.Name)
		assert.Equal(t, fee.FrequencyQuarterly, updated.Frequency)
		assert.Greater(t, updated.Version, l.feeType.Version)
	})

	t.Run("referenced fee type cannot be deleted", func(t *testing.T) {
		err := l.catalog.DeleteFeeType(l.ctx, l.h, l.feeType.ID)
		assert.ErrorIs(t, err, fee.ErrReferencedByBinding)
	})

	t.Run("unreferenced fee type is deleted and hidden", func(t *testing.T) {
		lib, err := l.catalog.CreateFeeType(l.ctx, l.h, CreateFeeTypeRequest{Name: "Library", Code: "LIB", Frequency: fee.FrequencyOneTime})
		require.NoError(t, err)

		require.NoError(t, l.catalog.DeleteFeeType(l.ctx, l.h, lib.ID))
		_, err = l.catalog.GetFeeType(l.ctx, l.h, lib.ID)
		assert.ErrorIs(t, err, fee.ErrFeeTypeNotFound)

		page, err := l.catalog.ListFeeTypes(l.ctx, l.h, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})
}

func TestCatalogService_Discounts(t *testing.T) {
	l := newLedger(t)

	discount, err := l.catalog.CreateDiscount(l.ctx, l.h, CreateDiscountRequest{
		Name:        "Staff",
		Code:        "STAFF",
		Type:        fee.DiscountTypeFixed,
		FixedAmount: dec("150"),
		MaxUses:     3,
	})
	require.NoError(t, err)
	assert.True(t, discount.FixedAmount.Equal(dec("150")))
	assert.Equal(t, 3, discount.MaxUses)

	t.Run("duplicate code is rejected", func(t *testing.T) {
		_, err := l.catalog.CreateDiscount(l.ctx, l.h, CreateDiscountRequest{Name: "Staff 2", Code: "staff", Type: fee.DiscountTypePercentage, Percentage: dec("5")})
		assert.ErrorIs(t, err, fee.ErrDuplicateCode)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := l.catalog.CreateDiscount(l.ctx, l.h, CreateDiscountRequest{Name: "Odd", Code: "ODD", Type: "BOGUS"})
		assert.Equal(t, "INVALID_DISCOUNT_TYPE", shared.CodeOf(err))
	})

	t.Run("discount bound to a plan cannot be deleted", func(t *testing.T) {
		due := due10
		_, err := l.catalog.UpdatePlanBinding(l.ctx, l.h, l.binding.ID, UpdatePlanBindingRequest{
			DiscountID:          &discount.ID,
			Amount:              dec("1000"),
			DueDate:             &due,
			Fine:                fee.FixedFine(dec("50")),
			AllowPartialPayment: true,
		})
		require.NoError(t, err)

		err = l.catalog.DeleteDiscount(l.ctx, l.h, discount.ID)
		assert.ErrorIs(t, err, fee.ErrReferencedByBinding)
		assert.Equal(t, shared.KindPolicy, shared.KindOf(err))
	})

	t.Run("binding cannot point at a missing discount", func(t *testing.T) {
		missing := uuid.New()
		_, err := l.catalog.UpdatePlanBinding(l.ctx, l.h, l.binding.ID, UpdatePlanBindingRequest{
			DiscountID: &missing,
			Amount:     dec("1000"),
			Fine:       fee.NoFine(),
		})
		assert.ErrorIs(t, err, fee.ErrDiscountNotFound)
	})
}

func TestCatalogService_GroupsAndBindings(t *testing.T) {
	l := newLedger(t)

	t.Run("fee type is bound once per group", func(t *testing.T) {
		_, err := l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
			FeeGroupID: l.group.ID,
			FeeTypeID:  l.feeType.ID,
			Amount:     dec("500"),
			Fine:       fee.NoFine(),
		})
		assert.ErrorIs(t, err, fee.ErrDuplicateBinding)
	})

	t.Run("binding needs a live group and fee type", func(t *testing.T) {
		_, err := l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
			FeeGroupID: uuid.New(),
			FeeTypeID:  l.feeType.ID,
			Amount:     dec("500"),
			Fine:       fee.NoFine(),
		})
		assert.ErrorIs(t, err, fee.ErrFeeGroupNotFound)

		_, err = l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
			FeeGroupID: l.group.ID,
			FeeTypeID:  uuid.New(),
			Amount:     dec("500"),
			Fine:       fee.NoFine(),
		})
		assert.ErrorIs(t, err, fee.ErrFeeTypeNotFound)
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		lib, err := l.catalog.CreateFeeType(l.ctx, l.h, CreateFeeTypeRequest{Name: "Library", Code: "LIB", Frequency: fee.FrequencyOneTime})
		require.NoError(t, err)
		_, err = l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
			FeeGroupID: l.group.ID,
			FeeTypeID:  lib.ID,
			Amount:     dec("-1"),
			Fine:       fee.NoFine(),
		})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("group with bindings cannot be deleted", func(t *testing.T) {
		err := l.catalog.DeleteFeeGroup(l.ctx, l.h, l.group.ID)
		assert.ErrorIs(t, err, fee.ErrReferencedByBinding)
	})

	t.Run("stamped binding is in use", func(t *testing.T) {
		l.stamp(l.student, 1)

		err := l.catalog.DeletePlanBinding(l.ctx, l.h, l.binding.ID)
		assert.ErrorIs(t, err, fee.ErrBindingInUse)
	})

	t.Run("unstamped binding and empty group are removed", func(t *testing.T) {
		group, err := l.catalog.CreateFeeGroup(l.ctx, l.h, CreateFeeGroupRequest{Name: "Grade 2"})
		require.NoError(t, err)
		binding, err := l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
			FeeGroupID: group.ID,
			FeeTypeID:  l.feeType.ID,
			Amount:     dec("1200"),
			Fine:       fee.NoFine(),
		})
		require.NoError(t, err)
		assert.True(t, binding.AllowPartialPayment)

		bindings, err := l.catalog.ListPlanBindings(l.ctx, l.h, group.ID)
		require.NoError(t, err)
		assert.Len(t, bindings, 1)

		require.NoError(t, l.catalog.DeletePlanBinding(l.ctx, l.h, binding.ID))
		_, err = l.catalog.GetPlanBinding(l.ctx, l.h, binding.ID)
		assert.ErrorIs(t, err, fee.ErrBindingNotFound)

		require.NoError(t, l.catalog.DeleteFeeGroup(l.ctx, l.h, group.ID))
		page, err := l.catalog.ListFeeGroups(l.ctx, l.h, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})
}
