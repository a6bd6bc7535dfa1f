package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages fee types, discounts, fee groups and plan bindings
type CatalogService struct {
	*core
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(deps Dependencies, opts ...Option) *CatalogService {
	return &CatalogService{core: newCore(deps, opts...)}
}

// CreateFeeTypeRequest represents a request to create a fee type
type CreateFeeTypeRequest struct {
	Name      string
	Code      string
	Frequency fee.Frequency
}

// UpdateFeeTypeRequest represents a request to update a fee type
type UpdateFeeTypeRequest struct {
	Name      string
	Frequency fee.Frequency
}

// CreateFeeType creates a fee type with a tenant-unique code
func (s *CatalogService) CreateFeeType(ctx context.Context, h shared.TenantHandle, req CreateFeeTypeRequest) (*FeeTypeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_catalog", "create_fee_type")
	defer span.End()

	if err := h.Validate(); err != nil {
		return nil, err
	}
	feeType, err := fee.NewFeeType(h.TenantID(), req.Name, req.Code, req.Frequency, s.now())
	if err != nil {
		return nil, err
	}
	feeType.SetCreatedBy(h.Actor())

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
		exists, err := repos.FeeTypes.ExistsByCode(ctx, h.TenantID(), feeType.Code)
		if err != nil {
			return err
		}
		if exists {
			return fee.ErrDuplicateCode
		}
		return repos.FeeTypes.Create(ctx, feeType)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := ToFeeTypeResponse(feeType)
	return &resp, nil
}

// UpdateFeeType renames a fee type or changes its frequency
func (s *CatalogService) UpdateFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID, req UpdateFeeTypeRequest) (*FeeTypeResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	var feeType *fee.FeeType
	err := s.retry(ctx, h.TenantID(), "update_fee_type", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			var err error
			feeType, err = repos.FeeTypes.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if err := feeType.Update(req.Name, req.Frequency, h.Actor(), s.now()); err != nil {
				return err
			}
			return repos.FeeTypes.SaveWithLock(ctx, feeType)
		})
	})
	if err != nil {
		return nil, err
	}
	resp := ToFeeTypeResponse(feeType)
	return &resp, nil
}

// GetFeeType returns a live fee type
func (s *CatalogService) GetFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*FeeTypeResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	feeType, err := s.repos.FeeTypes.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	resp := ToFeeTypeResponse(feeType)
	return &resp, nil
}

// ListFeeTypes lists live fee types
func (s *CatalogService) ListFeeTypes(ctx context.Context, h shared.TenantHandle, filter shared.Filter) (*shared.Paginated[FeeTypeResponse], error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	types, total, err := s.repos.FeeTypes.FindAllForTenant(ctx, h.TenantID(), filter)
	if err != nil {
		return nil, err
	}
	items := make([]FeeTypeResponse, len(types))
	for i := range types {
		items[i] = ToFeeTypeResponse(&types[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// DeleteFeeType soft-deletes a fee type no plan binding refers to
func (s *CatalogService) DeleteFeeType(ctx context.Context, h shared.TenantHandle, id uuid.UUID) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return s.retry(ctx, h.TenantID(), "delete_fee_type", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			feeType, err := repos.FeeTypes.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if err := ensureUnreferenced(ctx, repos, h.TenantID(), fee.BindingReference{FeeTypeID: &id}); err != nil {
				return err
			}
			if err := feeType.SoftDelete(h.Actor(), s.now()); err != nil {
				return err
			}
			return repos.FeeTypes.SaveWithLock(ctx, feeType)
		})
	})
}

// CreateDiscountRequest represents a request to create a discount
type CreateDiscountRequest struct {
	Name        string
	Code        string
	Type        fee.DiscountType
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
	ExpiryDate  *time.Time
	MaxUses     int
	IsRecurring bool
}

// CreateDiscount creates a percentage or fixed discount
func (s *CatalogService) CreateDiscount(ctx context.Context, h shared.TenantHandle, req CreateDiscountRequest) (*FeeDiscountResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	now := s.now()

	var (
		discount *fee.FeeDiscount
		err      error
	)
	switch req.Type {
	case fee.DiscountTypePercentage:
		discount, err = fee.NewPercentageDiscount(h.TenantID(), req.Name, req.Code, req.Percentage, now)
	case fee.DiscountTypeFixed:
		discount, err = fee.NewFixedDiscount(h.TenantID(), req.Name, req.Code, req.FixedAmount, now)
	default:
		err = shared.NewValidationError("INVALID_DISCOUNT_TYPE", "Invalid discount type")
	}
	if err != nil {
		return nil, err
	}
	if req.ExpiryDate != nil {
		discount.WithExpiry(*req.ExpiryDate)
	}
	discount.WithMaxUses(req.MaxUses)
	if req.IsRecurring {
		discount.Recurring()
	}
	discount.SetCreatedBy(h.Actor())

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
		exists, err := repos.Discounts.ExistsByCode(ctx, h.TenantID(), discount.Code)
		if err != nil {
			return err
		}
		if exists {
			return fee.ErrDuplicateCode
		}
		return repos.Discounts.Create(ctx, discount)
	})
	if err != nil {
		return nil, err
	}
	resp := ToFeeDiscountResponse(discount)
	return &resp, nil
}

// GetDiscount returns a discount
func (s *CatalogService) GetDiscount(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*FeeDiscountResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	discount, err := s.repos.Discounts.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	resp := ToFeeDiscountResponse(discount)
	return &resp, nil
}

// DeleteDiscount soft-deletes a discount no plan binding refers to
func (s *CatalogService) DeleteDiscount(ctx context.Context, h shared.TenantHandle, id uuid.UUID) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return s.retry(ctx, h.TenantID(), "delete_discount", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			discount, err := repos.Discounts.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if discount.DeletedAt != nil {
				return nil
			}
			if err := ensureUnreferenced(ctx, repos, h.TenantID(), fee.BindingReference{DiscountID: &id}); err != nil {
				return err
			}
			discount.SoftDelete(h.Actor(), s.now())
			return repos.Discounts.SaveWithLock(ctx, discount)
		})
	})
}

// CreateFeeGroupRequest represents a request to create a fee group
type CreateFeeGroupRequest struct {
	Name        string
	Description string
}

// CreateFeeGroup creates a fee group
func (s *CatalogService) CreateFeeGroup(ctx context.Context, h shared.TenantHandle, req CreateFeeGroupRequest) (*FeeGroupResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	group, err := fee.NewFeeGroup(h.TenantID(), req.Name, req.Description, s.now())
	if err != nil {
		return nil, err
	}
	group.SetCreatedBy(h.Actor())
	if err := s.repos.Groups.Create(ctx, group); err != nil {
		return nil, err
	}
	resp := ToFeeGroupResponse(group)
	return &resp, nil
}

// ListFeeGroups lists live fee groups
func (s *CatalogService) ListFeeGroups(ctx context.Context, h shared.TenantHandle, filter shared.Filter) (*shared.Paginated[FeeGroupResponse], error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	groups, total, err := s.repos.Groups.FindAllForTenant(ctx, h.TenantID(), filter)
	if err != nil {
		return nil, err
	}
	items := make([]FeeGroupResponse, len(groups))
	for i := range groups {
		items[i] = ToFeeGroupResponse(&groups[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// DeleteFeeGroup soft-deletes a fee group that has no plan bindings
func (s *CatalogService) DeleteFeeGroup(ctx context.Context, h shared.TenantHandle, id uuid.UUID) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return s.retry(ctx, h.TenantID(), "delete_fee_group", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			group, err := repos.Groups.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if err := ensureUnreferenced(ctx, repos, h.TenantID(), fee.BindingReference{FeeGroupID: &id}); err != nil {
				return err
			}
			if err := group.SoftDelete(h.Actor(), s.now()); err != nil {
				return err
			}
			return repos.Groups.SaveWithLock(ctx, group)
		})
	})
}

// CreatePlanBindingRequest represents a request to bind a fee type into a group
type CreatePlanBindingRequest struct {
	FeeGroupID          uuid.UUID
	FeeTypeID           uuid.UUID
	DiscountID          *uuid.UUID
	Amount              decimal.Decimal
	DueDate             *time.Time
	Fine                fee.FineRule
	AllowPartialPayment *bool
}

// UpdatePlanBindingRequest replaces the terms of a binding
type UpdatePlanBindingRequest struct {
	DiscountID          *uuid.UUID
	Amount              decimal.Decimal
	DueDate             *time.Time
	Fine                fee.FineRule
	AllowPartialPayment bool
}

// CreatePlanBinding binds a fee type into a fee group. A fee type can be
// bound once per group.
func (s *CatalogService) CreatePlanBinding(ctx context.Context, h shared.TenantHandle, req CreatePlanBindingRequest) (*PlanBindingResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_catalog", "create_plan_binding")
	defer span.End()

	if err := h.Validate(); err != nil {
		return nil, err
	}
	allowPartial := true
	if req.AllowPartialPayment != nil {
		allowPartial = *req.AllowPartialPayment
	}
	binding, err := fee.NewPlanBinding(h.TenantID(), req.FeeGroupID, req.FeeTypeID, fee.PlanBindingTerms{
		Amount:              req.Amount,
		DueDate:             req.DueDate,
		Fine:                req.Fine,
		DiscountID:          req.DiscountID,
		AllowPartialPayment: allowPartial,
	}, s.now())
	if err != nil {
		return nil, err
	}
	binding.SetCreatedBy(h.Actor())

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
		if _, err := repos.Groups.FindByIDForTenant(ctx, h.TenantID(), req.FeeGroupID); err != nil {
			return err
		}
		if _, err := repos.FeeTypes.FindByIDForTenant(ctx, h.TenantID(), req.FeeTypeID); err != nil {
			return err
		}
		if err := ensureLiveDiscount(ctx, repos, h.TenantID(), req.DiscountID); err != nil {
			return err
		}
		exists, err := repos.Bindings.ExistsByGroupAndType(ctx, h.TenantID(), req.FeeGroupID, req.FeeTypeID)
		if err != nil {
			return err
		}
		if exists {
			return fee.ErrDuplicateBinding
		}
		return repos.Bindings.Create(ctx, binding)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPlanBindingID, binding.ID.String())
	s.logger.Info("plan binding created",
		zap.String("tenant_id", h.TenantID().String()),
		zap.String("plan_binding_id", binding.ID.String()),
		zap.String("fee_group_id", binding.FeeGroupID.String()),
		zap.String("fee_type_id", binding.FeeTypeID.String()),
	)
	resp := ToPlanBindingResponse(binding)
	return &resp, nil
}

// UpdatePlanBinding replaces the terms of a binding. Assignments already
// stamped keep their terms.
func (s *CatalogService) UpdatePlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID, req UpdatePlanBindingRequest) (*PlanBindingResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	var binding *fee.PlanBinding
	err := s.retry(ctx, h.TenantID(), "update_plan_binding", func(int) error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
			var err error
			binding, err = repos.Bindings.FindByIDForTenant(ctx, h.TenantID(), id)
			if err != nil {
				return err
			}
			if err := ensureLiveDiscount(ctx, repos, h.TenantID(), req.DiscountID); err != nil {
				return err
			}
			if err := binding.Update(fee.PlanBindingTerms{
				Amount:              req.Amount,
				DueDate:             req.DueDate,
				Fine:                req.Fine,
				DiscountID:          req.DiscountID,
				AllowPartialPayment: req.AllowPartialPayment,
			}, h.Actor(), s.now()); err != nil {
				return err
			}
			return repos.Bindings.SaveWithLock(ctx, binding)
		})
	})
	if err != nil {
		return nil, err
	}
	resp := ToPlanBindingResponse(binding)
	return &resp, nil
}

// GetPlanBinding returns a binding
func (s *CatalogService) GetPlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID) (*PlanBindingResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	binding, err := s.repos.Bindings.FindByIDForTenant(ctx, h.TenantID(), id)
	if err != nil {
		return nil, err
	}
	resp := ToPlanBindingResponse(binding)
	return &resp, nil
}

// ListPlanBindings lists the bindings of a fee group
func (s *CatalogService) ListPlanBindings(ctx context.Context, h shared.TenantHandle, feeGroupID uuid.UUID) ([]PlanBindingResponse, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	bindings, err := s.repos.Bindings.FindByGroup(ctx, h.TenantID(), feeGroupID)
	if err != nil {
		return nil, err
	}
	items := make([]PlanBindingResponse, len(bindings))
	for i := range bindings {
		items[i] = ToPlanBindingResponse(&bindings[i])
	}
	return items, nil
}

// DeletePlanBinding removes a binding that no assignment was stamped from
func (s *CatalogService) DeletePlanBinding(ctx context.Context, h shared.TenantHandle, id uuid.UUID) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context, repos fee.Repositories) error {
		if _, err := repos.Bindings.FindByIDForTenant(ctx, h.TenantID(), id); err != nil {
			return err
		}
		count, err := repos.Assignments.CountByPlanBinding(ctx, h.TenantID(), id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fee.ErrBindingInUse
		}
		return repos.Bindings.DeleteForTenant(ctx, h.TenantID(), id)
	})
}

func ensureUnreferenced(ctx context.Context, repos fee.Repositories, tenantID uuid.UUID, ref fee.BindingReference) error {
	count, err := repos.Bindings.CountReferencing(ctx, tenantID, ref)
	if err != nil {
		return fmt.Errorf("failed to count referencing bindings: %w", err)
	}
	if count > 0 {
		return fee.ErrReferencedByBinding
	}
	return nil
}

func ensureLiveDiscount(ctx context.Context, repos fee.Repositories, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	discount, err := repos.Discounts.FindByIDForTenant(ctx, tenantID, *id)
	if err != nil {
		return err
	}
	if discount.DeletedAt != nil {
		return fee.ErrDiscountNotFound
	}
	return nil
}
