package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	m := NewMockDB(t)
	m.Mock.ExpectExec("DELETE FROM fee_types").WillReturnResult(sqlmock.NewResult(0, 1))

	res := m.DB.Exec("DELETE FROM fee_types WHERE id = ?", NewTestUUID("x"))
	require.NoError(t, res.Error)
	assert.Equal(t, int64(1), res.RowsAffected)
	m.ExpectationsWereMet(t)
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
	assert.NotEqual(t, TestTenantID(), TestUserID())
}

func TestTenantHandle(t *testing.T) {
	h := TenantHandle(TestTenantID())
	assert.Equal(t, TestTenantID(), h.TenantID())
	require.NotNil(t, h.Actor())
	assert.Equal(t, TestUserID(), *h.Actor())
	assert.NoError(t, h.Validate())
}

func TestDecAndDate(t *testing.T) {
	assert.True(t, Dec("10.50").Equal(Dec("10.5")))
	assert.Panics(t, func() { Dec("ten") })

	d := Date(2025, time.January, 10)
	assert.Equal(t, time.UTC, d.Location())
	assert.Zero(t, d.Hour())
}

func TestClock(t *testing.T) {
	start := Date(2025, time.January, 5)
	c := NewClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(24 * time.Hour)
	assert.Equal(t, Date(2025, time.January, 6), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestContextWithTimeout(t *testing.T) {
	ctx := ContextWithTimeout(t, time.Minute)
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestRequireEventually(t *testing.T) {
	var n atomic.Int32
	RequireEventually(t, func() bool { return n.Add(1) >= 3 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, n.Load(), int32(3))
}
