package fee

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

var (
	jan5  = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	jan15 = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	jan20 = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	due10 = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memoryDirectory is a TargetDirectory over a fixed set of targets
type memoryDirectory struct {
	mu      sync.Mutex
	targets map[uuid.UUID]map[fee.Target]bool
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{targets: make(map[uuid.UUID]map[fee.Target]bool)}
}

func (d *memoryDirectory) add(tenantID uuid.UUID, target fee.Target) fee.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.targets[tenantID] == nil {
		d.targets[tenantID] = make(map[fee.Target]bool)
	}
	d.targets[tenantID][target] = true
	return target
}

func (d *memoryDirectory) Exists(_ context.Context, tenantID uuid.UUID, target fee.Target) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets[tenantID][target], nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// conflictingTransactor fails the first n units of work with a version conflict
type conflictingTransactor struct {
	inner fee.Transactor
	mu    sync.Mutex
	n     int
	calls int
}

func (t *conflictingTransactor) WithinTransaction(ctx context.Context, fn func(context.Context, fee.Repositories) error) error {
	t.mu.Lock()
	t.calls++
	fail := t.n > 0
	if fail {
		t.n--
	}
	t.mu.Unlock()
	if fail {
		return fee.ErrConcurrentModification
	}
	return t.inner.WithinTransaction(ctx, fn)
}

// ledger wires every fee service over one in-memory SQLite database. The
// default plan is a monthly tuition of 1000 due on the 10th with a fixed
// fine of 50.
type ledger struct {
	t         *testing.T
	ctx       context.Context
	clock     *testClock
	deps      Dependencies
	directory *memoryDirectory
	publisher *recordingPublisher
	h         shared.TenantHandle

	catalog     *CatalogService
	assignments *AssignmentService
	payments    *PaymentService
	advances    *AdvanceService
	waivers     *WaiverService

	feeType *FeeTypeResponse
	group   *FeeGroupResponse
	binding *PlanBindingResponse
	student fee.Target
}

func newLedger(t *testing.T, opts ...Option) *ledger {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	db, err := persistence.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), persistence.WithAutoMigrate())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	l := &ledger{
		t:         t,
		ctx:       context.Background(),
		clock:     &testClock{now: jan5},
		directory: newMemoryDirectory(),
		publisher: &recordingPublisher{},
		h:         shared.MustTenantHandle(uuid.New()).WithActor(uuid.New()),
	}
	l.deps = Dependencies{
		Transactor: persistence.NewGormFeeTransactor(db.DB),
		Repos:      persistence.NewFeeRepositories(db.DB),
		Directory:  l.directory,
	}
	l.build(opts...)

	l.student = l.directory.add(l.h.TenantID(), fee.StudentTarget(uuid.New()))
	l.feeType, err = l.catalog.CreateFeeType(l.ctx, l.h, CreateFeeTypeRequest{Name: "Tuition", Code: "TUITION", Frequency: fee.FrequencyMonthly})
	require.NoError(t, err)
	l.group, err = l.catalog.CreateFeeGroup(l.ctx, l.h, CreateFeeGroupRequest{Name: "Grade 1"})
	require.NoError(t, err)
	due := due10
	l.binding, err = l.catalog.CreatePlanBinding(l.ctx, l.h, CreatePlanBindingRequest{
		FeeGroupID: l.group.ID,
		FeeTypeID:  l.feeType.ID,
		Amount:     dec("1000"),
		DueDate:    &due,
		Fine:       fee.FixedFine(dec("50")),
	})
	require.NoError(t, err)
	return l
}

// build (re)creates the services over the current dependencies
func (l *ledger) build(opts ...Option) {
	base := []Option{WithClock(l.clock.Now), WithEventPublisher(l.publisher)}
	opts = append(base, opts...)
	l.catalog = NewCatalogService(l.deps, opts...)
	l.assignments = NewAssignmentService(l.deps, opts...)
	l.payments = NewPaymentService(l.deps, opts...)
	l.advances = NewAdvanceService(l.deps, opts...)
	l.waivers = NewWaiverService(l.deps, opts...)
}

func (l *ledger) stamp(target fee.Target, month int) AssignmentView {
	l.t.Helper()
	res, err := l.assignments.Stamp(l.ctx, l.h, StampRequest{
		PlanBindingID: l.binding.ID,
		Target:        target,
		Month:         month,
		Year:          2025,
	})
	require.NoError(l.t, err)
	return res.Assignment
}

func (l *ledger) pay(assignmentID uuid.UUID, amount string) *PaymentReceipt {
	l.t.Helper()
	receipt, err := l.payments.PaySingleFee(l.ctx, l.h, PaySingleFeeRequest{
		AssignmentID: assignmentID,
		Amount:       dec(amount),
		Method:       fee.PaymentMethodCash,
	})
	require.NoError(l.t, err)
	return receipt
}

func (l *ledger) get(id uuid.UUID) *AssignmentView {
	l.t.Helper()
	view, err := l.assignments.GetAssignment(l.ctx, l.h, id)
	require.NoError(l.t, err)
	return view
}

func (l *ledger) otherTenant() shared.TenantHandle {
	return shared.MustTenantHandle(uuid.New())
}
