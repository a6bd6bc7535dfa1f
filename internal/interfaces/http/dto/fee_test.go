package dto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school/backend/internal/domain/fee"
)

func TestTargetRef_ToTarget(t *testing.T) {
	id := uuid.New()

	target, err := TargetRef{TargetType: "STUDENT", TargetID: id.String()}.ToTarget()
	require.NoError(t, err)
	assert.True(t, target.IsStudent())
	assert.Equal(t, id, target.ID())

	target, err = TargetRef{TargetType: "APPLICATION", TargetID: id.String()}.ToTarget()
	require.NoError(t, err)
	assert.True(t, target.IsApplication())

	_, err = TargetRef{TargetType: "STUDENT", TargetID: "nope"}.ToTarget()
	assert.ErrorIs(t, err, fee.ErrInvalidTarget)
	_, err = TargetRef{TargetType: "PARENT", TargetID: id.String()}.ToTarget()
	assert.ErrorIs(t, err, fee.ErrInvalidTarget)
}

func TestFineRequest_ToRule(t *testing.T) {
	var missing *FineRequest
	assert.Equal(t, fee.NoFine(), missing.ToRule())
	assert.Equal(t, fee.NoFine(), (&FineRequest{}).ToRule())

	pct := decimal.RequireFromString("2.5")
	rule := (&FineRequest{Type: "PERCENTAGE", Percentage: &pct}).ToRule()
	assert.Equal(t, fee.FinePercentage, rule.Type)
	assert.True(t, rule.Percentage.Equal(pct))
	assert.True(t, rule.Amount.IsZero())
}

func TestAssignmentListQuery_ToFilter(t *testing.T) {
	studentID, bindingID := uuid.New(), uuid.New()
	month := 4

	filter, err := AssignmentListQuery{
		ListRequest:   ListRequest{Page: 2},
		TargetType:    "STUDENT",
		TargetID:      studentID.String(),
		PlanBindingID: bindingID.String(),
		Month:         &month,
	}.ToFilter()
	require.NoError(t, err)
	assert.Equal(t, 2, filter.Page)
	require.NotNil(t, filter.Target)
	assert.Equal(t, studentID, filter.Target.ID())
	require.NotNil(t, filter.PlanBindingID)
	assert.Equal(t, bindingID, *filter.PlanBindingID)
	assert.Equal(t, &month, filter.Month)
	assert.Nil(t, filter.Year)

	filter, err = AssignmentListQuery{}.ToFilter()
	require.NoError(t, err)
	assert.Nil(t, filter.Target)

	_, err = AssignmentListQuery{TargetID: studentID.String()}.ToFilter()
	assert.Error(t, err, "a target ID needs its type")
}

func TestPayMultipleFeesRequest_ToCommand(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := PayMultipleFeesRequest{
		Lines: []PaymentLineRequest{
			{AssignmentID: a, Amount: decimal.NewFromInt(100)},
			{AssignmentID: b, Amount: decimal.RequireFromString("49.99")},
		},
		Method:      "CASH",
		ReferenceNo: "R-1",
	}
	target := fee.StudentTarget(uuid.New())

	cmd := req.ToCommand(target)
	assert.Equal(t, target, cmd.Target)
	require.Len(t, cmd.Lines, 2)
	assert.Equal(t, b, cmd.Lines[1].AssignmentID)
	assert.True(t, cmd.Lines[1].Amount.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, fee.PaymentMethodCash, cmd.Method)
	assert.Equal(t, "R-1", cmd.ReferenceNo)
}

func TestCreateDiscountRequest_ToCommand(t *testing.T) {
	pct := decimal.NewFromInt(10)
	cmd := CreateDiscountRequest{Name: "Sibling", Code: "SIB", Type: "PERCENTAGE", Percentage: &pct, IsRecurring: true}.ToCommand()

	assert.Equal(t, fee.DiscountTypePercentage, cmd.Type)
	assert.True(t, cmd.Percentage.Equal(pct))
	assert.True(t, cmd.FixedAmount.IsZero())
	assert.True(t, cmd.IsRecurring)
}
