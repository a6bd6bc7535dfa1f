package fee

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeeType(t *testing.T) {
	t.Run("normalizes code", func(t *testing.T) {
		ft, err := NewFeeType(uuid.New(), " Tuition ", " tuition ", FrequencyMonthly, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "Tuition", ft.Name)
		assert.Equal(t, "TUITION", ft.Code)
	})

	t.Run("validates input", func(t *testing.T) {
		_, err := NewFeeType(uuid.New(), "", "X", FrequencyMonthly, time.Now())
		assert.Error(t, err)
		_, err = NewFeeType(uuid.New(), "X", "", FrequencyMonthly, time.Now())
		assert.Error(t, err)
		_, err = NewFeeType(uuid.New(), "X", "X", Frequency("WEEKLY"), time.Now())
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("system types cannot be deleted", func(t *testing.T) {
		ft, err := NewFeeType(uuid.New(), "Admission", "ADM", FrequencyOneTime, time.Now())
		require.NoError(t, err)
		ft.MarkSystem()
		assert.Equal(t, shared.KindPolicy, shared.KindOf(ft.SoftDelete(nil, time.Now())))
		assert.False(t, ft.IsDeleted())
	})
}

func TestFeeDiscount_Resolve(t *testing.T) {
	tenantID := uuid.New()
	now := day(2025, time.January, 1)

	t.Run("percentage", func(t *testing.T) {
		d, err := NewPercentageDiscount(tenantID, "Sibling", "SIB", dec("10"), now)
		require.NoError(t, err)
		d.Recurring()
		assert.True(t, d.Resolve(dec("1000"), now, false, prec).Equal(dec("100")))
	})

	t.Run("fixed never exceeds base", func(t *testing.T) {
		d, err := NewFixedDiscount(tenantID, "Scholarship", "SCH", dec("1500"), now)
		require.NoError(t, err)
		assert.True(t, d.Resolve(dec("1000"), now, true, prec).Equal(dec("1000")))
	})

	t.Run("non-recurring only applies to first period", func(t *testing.T) {
		d, err := NewFixedDiscount(tenantID, "Welcome", "WEL", dec("200"), now)
		require.NoError(t, err)
		assert.True(t, d.Resolve(dec("1000"), now, true, prec).Equal(dec("200")))
		assert.True(t, d.Resolve(dec("1000"), now, false, prec).IsZero())
	})

	t.Run("expired yields zero", func(t *testing.T) {
		d, err := NewFixedDiscount(tenantID, "Early", "EARLY", dec("200"), now)
		require.NoError(t, err)
		d.Recurring().WithExpiry(day(2024, time.December, 31))
		assert.True(t, d.IsExpired(now))
		assert.True(t, d.Resolve(dec("1000"), now, true, prec).IsZero())
	})

	t.Run("exhausted yields zero", func(t *testing.T) {
		d, err := NewFixedDiscount(tenantID, "Limited", "LIM", dec("200"), now)
		require.NoError(t, err)
		d.WithMaxUses(1)
		require.NoError(t, d.RecordUse(now))
		assert.True(t, d.IsExhausted())
		assert.True(t, d.Resolve(dec("1000"), now, true, prec).IsZero())
		assert.Error(t, d.RecordUse(now))
	})

	t.Run("invalid construction", func(t *testing.T) {
		_, err := NewPercentageDiscount(tenantID, "Bad", "BAD", dec("101"), now)
		assert.Error(t, err)
		_, err = NewFixedDiscount(tenantID, "Bad", "BAD", dec("0"), now)
		assert.Error(t, err)
	})

	t.Run("validate enforces one meaningful amount", func(t *testing.T) {
		d, err := NewFixedDiscount(tenantID, "Both", "BOTH", dec("10"), now)
		require.NoError(t, err)
		assert.NoError(t, d.Validate())
		d.Percentage = dec("5")
		assert.Error(t, d.Validate())
	})
}

func TestPlanBinding(t *testing.T) {
	tenantID := uuid.New()

	t.Run("defaults to no fine", func(t *testing.T) {
		b, err := NewPlanBinding(tenantID, uuid.New(), uuid.New(), PlanBindingTerms{Amount: dec("500")}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, FineNone, b.Fine.Type)
		assert.Nil(t, b.DueDateFor(FrequencyMonthly, 2, 2025))
	})

	t.Run("rejects negative amount and bad fine", func(t *testing.T) {
		_, err := NewPlanBinding(tenantID, uuid.New(), uuid.New(), PlanBindingTerms{Amount: dec("-1")}, time.Now())
		assert.Error(t, err)
		_, err = NewPlanBinding(tenantID, uuid.New(), uuid.New(), PlanBindingTerms{Amount: dec("1"), Fine: FixedFine(dec("-5"))}, time.Now())
		assert.Error(t, err)
		_, err = NewPlanBinding(tenantID, uuid.Nil, uuid.New(), PlanBindingTerms{Amount: dec("1")}, time.Now())
		assert.Error(t, err)
	})

	t.Run("due date follows billing period", func(t *testing.T) {
		due := day(2025, time.January, 31)
		b, err := NewPlanBinding(tenantID, uuid.New(), uuid.New(), PlanBindingTerms{Amount: dec("500"), DueDate: &due}, time.Now())
		require.NoError(t, err)

		feb := b.DueDateFor(FrequencyMonthly, 2, 2025)
		require.NotNil(t, feb)
		assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), *feb)

		once := b.DueDateFor(FrequencyOneTime, 6, 2025)
		require.NotNil(t, once)
		assert.Equal(t, time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC), *once)
	})

	t.Run("update bumps version", func(t *testing.T) {
		b, err := NewPlanBinding(tenantID, uuid.New(), uuid.New(), PlanBindingTerms{Amount: dec("500")}, time.Now())
		require.NoError(t, err)
		require.NoError(t, b.Update(PlanBindingTerms{Amount: dec("600"), Fine: PercentageFine(dec("5"))}, nil, time.Now()))
		assert.True(t, b.Amount.Equal(dec("600")))
		assert.Equal(t, 2, b.Version)
	})
}

func TestFineRule_Accrue(t *testing.T) {
	assert.True(t, NoFine().Accrue(dec("1000"), prec).IsZero())
	assert.True(t, FixedFine(dec("50")).Accrue(dec("1000"), prec).Equal(dec("50")))
	assert.True(t, PercentageFine(dec("1.25")).Accrue(dec("1000"), prec).Equal(dec("12.5")))
}

func TestTarget(t *testing.T) {
	t.Run("tagged variants", func(t *testing.T) {
		id := uuid.New()
		s := StudentTarget(id)
		assert.True(t, s.IsStudent())
		assert.False(t, s.IsApplication())
		assert.NotNil(t, s.StudentID())
		assert.Nil(t, s.ApplicationID())

		a := ApplicationTarget(id)
		assert.False(t, a.Equal(s))
		assert.NotNil(t, a.ApplicationID())
	})

	t.Run("zero target is invalid", func(t *testing.T) {
		assert.ErrorIs(t, Target{}.Validate(), ErrInvalidTarget)
		_, err := NewTarget(TargetStudent, uuid.Nil)
		assert.ErrorIs(t, err, ErrInvalidTarget)
		_, err = NewTarget(TargetKind("TEACHER"), uuid.New())
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("refs must be exclusive", func(t *testing.T) {
		s, a := uuid.New(), uuid.New()
		_, err := TargetFromRefs(&s, &a)
		assert.ErrorIs(t, err, ErrInvalidTarget)
		_, err = TargetFromRefs(nil, nil)
		assert.ErrorIs(t, err, ErrInvalidTarget)
		got, err := TargetFromRefs(nil, &a)
		require.NoError(t, err)
		assert.True(t, got.IsApplication())
	})
}
