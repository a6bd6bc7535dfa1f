package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/domain/shared/valueobject"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AssignmentService stamps, reads and removes fee assignments and converts
// provisional application fees to students
type AssignmentService struct {
	*core
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(deps Dependencies, opts ...Option) *AssignmentService {
	return &AssignmentService{core: newCore(deps, opts...)}
}

// StampRequest represents a request to stamp one billing period
type StampRequest struct {
	PlanBindingID       uuid.UUID
	Target              fee.Target
	Month               int
	Year                int
	DueDate             *time.Time
	AllowPartialPayment *bool
}

// StampGroupRequest represents a request to stamp every binding of a group
type StampGroupRequest struct {
	FeeGroupID uuid.UUID
	Target     fee.Target
	Month      int
	Year       int
}

// Stamp creates the assignment of (target, binding, month, year). Stamping a
// period that already exists returns it with Created=false.
func (s *AssignmentService) Stamp(ctx context.Context, h shared.TenantHandle, req StampRequest) (*StampResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_assignment", "stamp")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlanBindingID, req.PlanBindingID.String(),
		telemetry.SpanAttrTargetType, string(req.Target.Kind()),
		telemetry.SpanAttrTargetID, req.Target.ID().String(),
	)

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureTarget(ctx, h.TenantID(), req.Target); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.stamp(ctx, h, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAssignmentID, result.Assignment.ID.String())
	return result, nil
}

// stamp runs the stamp transaction for a target that is already resolved
func (s *AssignmentService) stamp(ctx context.Context, h shared.TenantHandle, req StampRequest) (*StampResult, error) {
	if err := fee.ValidatePeriod(req.Month, req.Year); err != nil {
		return nil, err
	}
	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)

	var (
		result *StampResult
		events []shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "stamp", func(int) error {
		result, events = nil, nil
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			existing, err := repos.Assignments.FindForPeriod(ctx, tenantID, req.Target, req.PlanBindingID, req.Month, req.Year)
			switch {
			case err == nil:
				result, err = existingStamp(existing, now, precision)
				return err
			case !errors.Is(err, fee.ErrAssignmentNotFound):
				return err
			}

			binding, err := repos.Bindings.FindByIDForTenant(ctx, tenantID, req.PlanBindingID)
			if err != nil {
				return err
			}
			feeType, err := repos.FeeTypes.FindByIDForTenant(ctx, tenantID, binding.FeeTypeID)
			if err != nil {
				return err
			}

			spec := fee.StampSpec{
				Target:              req.Target,
				Binding:             binding,
				Frequency:           feeType.Frequency,
				Month:               req.Month,
				Year:                req.Year,
				DueDate:             req.DueDate,
				AllowPartialPayment: req.AllowPartialPayment,
			}
			if binding.DiscountID != nil {
				discount, err := repos.Discounts.FindByIDForTenant(ctx, tenantID, *binding.DiscountID)
				if err != nil {
					return err
				}
				seen, err := repos.Assignments.ExistsForFeeType(ctx, tenantID, req.Target, binding.FeeTypeID)
				if err != nil {
					return err
				}
				amount := discount.Resolve(binding.Amount, now, !seen, precision)
				if amount.IsPositive() {
					if err := discount.RecordUse(now); err != nil {
						return err
					}
					if err := repos.Discounts.SaveWithLock(ctx, discount); err != nil {
						return err
					}
					spec.DiscountAmount = amount
					spec.DiscountID = &discount.ID
				}
			}

			assignment, err := fee.NewFeeAssignment(tenantID, spec, precision, now)
			if err != nil {
				return err
			}
			assignment.SetCreatedBy(h.Actor())
			ev := assignment.Evaluate(now, precision)
			if err := repos.Assignments.Create(ctx, assignment, ev); err != nil {
				return err
			}
			events = drainEvents(assignment)
			result = &StampResult{Assignment: ToAssignmentView(assignment, ev), Created: true}
			return nil
		})
	})

	// A concurrent stamp won the unique index; its row is the answer
	if errors.Is(err, fee.ErrDuplicatePeriod) {
		existing, ferr := s.repos.Assignments.FindForPeriod(ctx, tenantID, req.Target, req.PlanBindingID, req.Month, req.Year)
		if ferr != nil {
			return nil, fmt.Errorf("failed to re-read stamped period: %w", ferr)
		}
		result, err = existingStamp(existing, s.now(), precision)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	if s.metrics != nil {
		s.metrics.RecordStamp(ctx, tenantID, string(req.Target.Kind()), result.Created)
	}
	if result.Created {
		s.logger.Info("fee assignment stamped",
			zap.String("tenant_id", tenantID.String()),
			zap.String("assignment_id", result.Assignment.ID.String()),
			zap.String("target", req.Target.String()),
			zap.Int("month", req.Month),
			zap.Int("year", req.Year),
		)
	}
	return result, nil
}

// existingStamp answers a replayed stamp with the stored row. A deleted row
// keeps its period and blocks restamping.
func existingStamp(a *fee.FeeAssignment, now time.Time, precision valueobject.Precision) (*StampResult, error) {
	if a.IsDeleted() {
		return nil, fee.ErrAssignmentDeleted
	}
	return &StampResult{Assignment: ToAssignmentView(a, a.Evaluate(now, precision)), Created: false}, nil
}

// StampGroup stamps every binding of a fee group for one period. Bindings are
// stamped independently; a failing binding is reported and does not stop the rest.
func (s *AssignmentService) StampGroup(ctx context.Context, h shared.TenantHandle, req StampGroupRequest) (*StampGroupResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_assignment", "stamp_group")
	defer span.End()

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := fee.ValidatePeriod(req.Month, req.Year); err != nil {
		return nil, err
	}
	if err := s.ensureTarget(ctx, h.TenantID(), req.Target); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := s.repos.Groups.FindByIDForTenant(ctx, h.TenantID(), req.FeeGroupID); err != nil {
		return nil, err
	}
	bindings, err := s.repos.Bindings.FindByGroup(ctx, h.TenantID(), req.FeeGroupID)
	if err != nil {
		return nil, err
	}

	out := &StampGroupResult{FeeGroupID: req.FeeGroupID, Items: make([]StampGroupItem, 0, len(bindings))}
	for i, b := range bindings {
		item := StampGroupItem{PlanBindingID: b.ID, FeeTypeID: b.FeeTypeID}
		result, err := s.stamp(ctx, h, StampRequest{
			PlanBindingID: b.ID,
			Target:        req.Target,
			Month:         req.Month,
			Year:          req.Year,
		})
		switch {
		case err != nil:
			le := newLineError(i, uuid.Nil, err)
			item.Error = &le
			out.Failed++
		case result.Created:
			item.Result = result
			out.Created++
		default:
			item.Result = result
			out.Existing++
		}
		out.Items = append(out.Items, item)
	}

	telemetry.AddEvent(span, "group_stamped",
		"created", out.Created,
		"existing", out.Existing,
		"failed", out.Failed,
	)
	return out, nil
}

// GetAssignment returns an assignment evaluated now
func (s *AssignmentService) GetAssignment(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*AssignmentView, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	a, err := s.repos.Assignments.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	view := ToAssignmentView(a, a.Evaluate(s.now(), s.precision.PrecisionFor(h.TenantID())))
	return &view, nil
}

// ListAssignments lists assignments evaluated now
func (s *AssignmentService) ListAssignments(ctx context.Context, h shared.TenantHandle, filter fee.AssignmentFilter) (*shared.Paginated[AssignmentView], error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if filter.Target != nil {
		if err := filter.Target.Validate(); err != nil {
			return nil, err
		}
	}
	filter.Filter = filter.Filter.Normalize()
	assignments, total, err := s.repos.Assignments.FindAllForTenant(ctx, h.TenantID(), filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	precision := s.precision.PrecisionFor(h.TenantID())
	items := make([]AssignmentView, len(assignments))
	for i := range assignments {
		items[i] = ToAssignmentView(&assignments[i], assignments[i].Evaluate(now, precision))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// DeleteAssignment soft-deletes an assignment that has never been paid
func (s *AssignmentService) DeleteAssignment(ctx context.Context, h shared.TenantHandle, id uuid.UUID) error {
	if err := h.Validate(); err != nil {
		return err
	}
	precision := s.precision.PrecisionFor(h.TenantID())
	return s.retry(ctx, h.TenantID(), "delete_assignment", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			a, err := repos.Assignments.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if a.IsDeleted() {
				return nil
			}
			now := s.now()
			if err := a.SoftDelete(h.Actor(), now); err != nil {
				return err
			}
			return repos.Assignments.SaveWithLock(ctx, a, a.Evaluate(now, precision))
		})
	})
}

// ConvertProvisionalToActive moves everything billed to an application onto
// the admitted student in one transaction. History is kept; each moved
// assignment records the application it came from. A second conversion of
// the same application fails with ALREADY_MIGRATED.
func (s *AssignmentService) ConvertProvisionalToActive(ctx context.Context, h shared.TenantHandle, applicationID, studentID uuid.UUID) (*ConversionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_assignment", "convert_provisional")
	defer span.End()

	if err := h.Validate(); err != nil {
		return nil, err
	}
	if applicationID == uuid.Nil || studentID == uuid.Nil {
		return nil, fee.ErrInvalidTarget
	}
	app := fee.ApplicationTarget(applicationID)
	student := fee.StudentTarget(studentID)
	if err := s.ensureTarget(ctx, h.TenantID(), student); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tenantID := h.TenantID()
	precision := s.precision.PrecisionFor(tenantID)
	var (
		result *ConversionResult
		event  shared.DomainEvent
	)
	err := s.retry(ctx, tenantID, "convert_provisional", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			now := s.now()
			marker, err := repos.Migrations.FindByApplication(ctx, tenantID, applicationID)
			if err != nil {
				return err
			}
			if marker != nil {
				return fee.ErrAlreadyMigrated
			}

			res := &ConversionResult{ApplicationID: applicationID, StudentID: studentID}
			assignments, err := repos.Assignments.FindByTarget(ctx, tenantID, app)
			if err != nil {
				return err
			}
			for i := range assignments {
				a := &assignments[i]
				if err := a.ReassignTo(student, now); err != nil {
					return err
				}
				if err := repos.Assignments.SaveWithLock(ctx, a, a.Evaluate(now, precision)); err != nil {
					return err
				}
			}
			res.AssignmentsMoved = len(assignments)

			if res.TransactionsMoved, err = repos.Transactions.RetargetApplication(ctx, tenantID, applicationID, studentID); err != nil {
				return err
			}
			if res.WaiversMoved, err = repos.Waivers.RetargetApplication(ctx, tenantID, applicationID, studentID); err != nil {
				return err
			}
			if err := s.moveAdvance(ctx, repos, h, app, student, now, res); err != nil {
				return err
			}
			if res.EntriesMoved, err = repos.Advances.RetargetApplicationEntries(ctx, tenantID, applicationID, studentID); err != nil {
				return err
			}

			marker, err = fee.NewProvisionalMigration(tenantID, applicationID, studentID, h.Actor(), now)
			if err != nil {
				return err
			}
			marker.AssignmentsMoved = res.AssignmentsMoved
			marker.TransactionsMoved = res.TransactionsMoved
			marker.WaiversMoved = res.WaiversMoved
			marker.AdvanceMoved = res.AdvanceMoved || res.AdvanceMerged
			if err := repos.Migrations.Create(ctx, marker); err != nil {
				return err
			}
			result = res
			event = fee.NewProvisionalConvertedEvent(marker, now)
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, []shared.DomainEvent{event})
	s.logger.Info("provisional fees converted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("application_id", applicationID.String()),
		zap.String("student_id", studentID.String()),
		zap.Int("assignments_moved", result.AssignmentsMoved),
		zap.Int64("transactions_moved", result.TransactionsMoved),
	)
	return result, nil
}

// moveAdvance hands the application's advance account to the student. When
// the student already has an account the balance is transferred into it so
// each target keeps a single locked balance row.
func (s *AssignmentService) moveAdvance(ctx context.Context, repos fee.Repositories, h shared.TenantHandle, app, student fee.Target, now time.Time, res *ConversionResult) error {
	appAccount, err := repos.Advances.FindAccount(ctx, h.TenantID(), app)
	if err != nil || appAccount == nil {
		return err
	}
	studentAccount, err := repos.Advances.FindAccount(ctx, h.TenantID(), student)
	if err != nil {
		return err
	}
	if studentAccount == nil {
		if err := appAccount.Retarget(student, now); err != nil {
			return err
		}
		res.AdvanceMoved = true
		return repos.Advances.SaveAccountWithLock(ctx, appAccount)
	}

	out, in, err := appAccount.TransferTo(studentAccount, now)
	if err != nil || out == nil {
		return err
	}
	if err := repos.Advances.SaveAccountWithLock(ctx, appAccount); err != nil {
		return err
	}
	if err := repos.Advances.SaveAccountWithLock(ctx, studentAccount); err != nil {
		return err
	}
	if err := repos.Advances.AppendEntry(ctx, out.WithOperator(h.Actor())); err != nil {
		return err
	}
	if err := repos.Advances.AppendEntry(ctx, in.WithOperator(h.Actor())); err != nil {
		return err
	}
	res.AdvanceMerged = true
	return nil
}
