package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	r := NewHandlerRegistry()
	payments := newRecordingHandler("FeePaymentRecorded", "FeePaymentReverted")
	audit := newRecordingHandler()

	r.Register(payments, payments.EventTypes()...)
	r.Register(audit)

	assert.Equal(t, []any{payments, audit}, asAny(r.GetHandlers("FeePaymentRecorded")))
	assert.Equal(t, []any{payments, audit}, asAny(r.GetHandlers("FeePaymentReverted")))
	assert.Equal(t, []any{audit}, asAny(r.GetHandlers("FineWaiverApproved")))
	assert.Equal(t, 2, r.Len())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	r := NewHandlerRegistry()
	a := newRecordingHandler("FeeAssignmentStamped")
	b := newRecordingHandler("FeeAssignmentStamped")
	wild := newRecordingHandler()
	r.Register(a, "FeeAssignmentStamped")
	r.Register(b, "FeeAssignmentStamped")
	r.Register(wild)

	r.Unregister(a)
	assert.Equal(t, []any{b, wild}, asAny(r.GetHandlers("FeeAssignmentStamped")))

	r.Unregister(b)
	r.Unregister(wild)
	assert.Empty(t, r.GetHandlers("FeeAssignmentStamped"))
	assert.Zero(t, r.Len())
}

func TestHandlerRegistry_GetHandlersReturnsCopy(t *testing.T) {
	r := NewHandlerRegistry()
	a := newRecordingHandler("AdvanceDeposited")
	r.Register(a, "AdvanceDeposited")

	got := r.GetHandlers("AdvanceDeposited")
	got[0] = newRecordingHandler()

	assert.Same(t, a, r.GetHandlers("AdvanceDeposited")[0])
}
