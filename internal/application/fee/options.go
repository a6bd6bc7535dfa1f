package fee

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AdvanceOrder selects which open assignments ApplyAdvance pays first
type AdvanceOrder string

const (
	// AdvanceOldestDueFirst pays the earliest due date first; undated fees go last
	AdvanceOldestDueFirst AdvanceOrder = "oldest_due_first"
	// AdvancePeriodOrder pays in (year, month) order
	AdvancePeriodOrder AdvanceOrder = "period_order"
)

// IsValid reports whether o is a known ordering
func (o AdvanceOrder) IsValid() bool {
	return o == AdvanceOldestDueFirst || o == AdvancePeriodOrder
}

// Policy holds the tunable rules of the payment engine
type Policy struct {
	// AllowOverpayment routes the excess of a single payment to the advance ledger
	AllowOverpayment bool
	// ReversalWindow is how long after the end of a billing month payments may be reverted
	ReversalWindow time.Duration
	// MaxConflictRetries bounds retries after an optimistic lock conflict
	MaxConflictRetries int
	// AdvanceOrder is the consumption order used by ApplyAdvance
	AdvanceOrder AdvanceOrder
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		AllowOverpayment:   false,
		ReversalWindow:     30 * 24 * time.Hour,
		MaxConflictRetries: 3,
		AdvanceOrder:       AdvanceOldestDueFirst,
	}
}

// PrecisionResolver returns the rounding precision of a tenant.
// It is consulted on every call so configuration changes apply to the next request.
type PrecisionResolver interface {
	PrecisionFor(tenantID uuid.UUID) valueobject.Precision
}

// StaticPrecision resolves a default precision with per-tenant overrides
type StaticPrecision struct {
	Default   valueobject.Precision
	PerTenant map[uuid.UUID]valueobject.Precision
}

// PrecisionFor returns the tenant override or the default
func (p StaticPrecision) PrecisionFor(tenantID uuid.UUID) valueobject.Precision {
	if places, ok := p.PerTenant[tenantID]; ok {
		return places
	}
	return p.Default
}

// Dependencies are the collaborators every fee service needs
type Dependencies struct {
	// Transactor opens units of work
	Transactor fee.Transactor
	// Repos are bound to the base connection and serve reads outside a transaction
	Repos fee.Repositories
	// Directory resolves students and applications
	Directory fee.TargetDirectory
}

// Option customizes a service
type Option func(*core)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *core) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPolicy sets the payment policy
func WithPolicy(p Policy) Option {
	return func(c *core) {
		c.policy = p
	}
}

// WithPrecision sets the precision resolver
func WithPrecision(r PrecisionResolver) Option {
	return func(c *core) {
		if r != nil {
			c.precision = r
		}
	}
}

// WithEventPublisher sets where committed domain events are published
func WithEventPublisher(p shared.EventPublisher) Option {
	return func(c *core) {
		c.publisher = p
	}
}

// WithMetrics records business metrics for every operation
func WithMetrics(m *telemetry.BusinessMetrics) Option {
	return func(c *core) {
		c.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.logger = l
		}
	}
}

// core is the state shared by all fee services
type core struct {
	tx        fee.Transactor
	repos     fee.Repositories
	directory fee.TargetDirectory
	now       func() time.Time
	policy    Policy
	precision PrecisionResolver
	publisher shared.EventPublisher
	metrics   *telemetry.BusinessMetrics
	logger    *zap.Logger
}

func newCore(deps Dependencies, opts ...Option) *core {
	c := &core{
		tx:        deps.Transactor,
		repos:     deps.Repos,
		directory: deps.Directory,
		now: func() time.Time {
			return time.Now().UTC()
		},
		policy:    DefaultPolicy(),
		precision: StaticPrecision{Default: valueobject.DefaultPrecision},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.MaxConflictRetries < 0 {
		c.policy.MaxConflictRetries = 0
	}
	if !c.policy.AdvanceOrder.IsValid() {
		c.policy.AdvanceOrder = AdvanceOldestDueFirst
	}
	return c
}

// retry runs fn until it succeeds, fails with something other than a
// version conflict, or the retry budget is spent
func (c *core) retry(ctx context.Context, tenantID uuid.UUID, operation string, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= c.policy.MaxConflictRetries; attempt++ {
		err = fn(attempt)
		if !errors.Is(err, fee.ErrConcurrentModification) {
			return err
		}
		if c.metrics != nil {
			c.metrics.RecordConflict(ctx, tenantID, operation)
		}
		c.logger.Debug("optimistic lock conflict, retrying",
			zap.String("operation", operation),
			zap.String("tenant_id", tenantID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	return err
}

// publish hands committed events to the publisher. Failures are logged and
// never undo the committed write.
func (c *core) publish(ctx context.Context, events []shared.DomainEvent) {
	if c.publisher == nil || len(events) == 0 {
		return
	}
	if err := c.publisher.Publish(ctx, events...); err != nil {
		c.logger.Warn("failed to publish fee events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// ensureTarget validates target and resolves it in the directory. Called
// before opening a transaction so the lookup never waits on held connections.
func (c *core) ensureTarget(ctx context.Context, tenantID uuid.UUID, target fee.Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	if c.directory == nil {
		return nil
	}
	ok, err := c.directory.Exists(ctx, tenantID, target)
	if err != nil {
		return err
	}
	if !ok {
		return fee.ErrTargetNotFound
	}
	return nil
}

// drainEvents collects and clears the pending events of aggregates
func drainEvents(aggs ...shared.AggregateRoot) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, a := range aggs {
		if a == nil {
			continue
		}
		events = append(events, a.GetDomainEvents()...)
		a.ClearDomainEvents()
	}
	return events
}
