package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/school/backend/internal/domain/fee"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FeeTypeModel is the persistence model for fee types
type FeeTypeModel struct {
	TenantAggregateModel
	Name      string     `gorm:"type:varchar(100);not null"`
	Code      string     `gorm:"type:varchar(50);not null;index"`
	Frequency string     `gorm:"type:varchar(20);not null"`
	IsSystem  bool       `gorm:"not null;default:false"`
	DeletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (FeeTypeModel) TableName() string {
	return "fee_types"
}

// ToDomain converts the persistence model to a domain FeeType
func (m *FeeTypeModel) ToDomain() *fee.FeeType {
	return &fee.FeeType{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Code:                m.Code,
		Frequency:           fee.Frequency(m.Frequency),
		IsSystem:            m.IsSystem,
		DeletedAt:           m.DeletedAt,
	}
}

// FeeTypeModelFromDomain creates a persistence model from a domain FeeType
func FeeTypeModelFromDomain(t *fee.FeeType) *FeeTypeModel {
	m := &FeeTypeModel{
		Name:      t.Name,
		Code:      t.Code,
		Frequency: string(t.Frequency),
		IsSystem:  t.IsSystem,
		DeletedAt: t.DeletedAt,
	}
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	return m
}

// FeeDiscountModel is the persistence model for discounts
type FeeDiscountModel struct {
	TenantAggregateModel
	Name        string          `gorm:"type:varchar(100);not null"`
	Code        string          `gorm:"type:varchar(50);not null;index"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Percentage  decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	FixedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ExpiryDate  *time.Time
	MaxUses     int        `gorm:"not null;default:0"`
	UseCount    int        `gorm:"not null;default:0"`
	IsRecurring bool       `gorm:"not null;default:false"`
	DeletedAt   *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (FeeDiscountModel) TableName() string {
	return "fee_discounts"
}

// ToDomain converts the persistence model to a domain FeeDiscount
func (m *FeeDiscountModel) ToDomain() *fee.FeeDiscount {
	return &fee.FeeDiscount{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Code:                m.Code,
		Type:                fee.DiscountType(m.Type),
		Percentage:          m.Percentage,
		FixedAmount:         m.FixedAmount,
		ExpiryDate:          m.ExpiryDate,
		MaxUses:             m.MaxUses,
		UseCount:            m.UseCount,
		IsRecurring:         m.IsRecurring,
		DeletedAt:           m.DeletedAt,
	}
}

// FeeDiscountModelFromDomain creates a persistence model from a domain FeeDiscount
func FeeDiscountModelFromDomain(d *fee.FeeDiscount) *FeeDiscountModel {
	m := &FeeDiscountModel{
		Name:        d.Name,
		Code:        d.Code,
		Type:        string(d.Type),
		Percentage:  d.Percentage,
		FixedAmount: d.FixedAmount,
		ExpiryDate:  d.ExpiryDate,
		MaxUses:     d.MaxUses,
		UseCount:    d.UseCount,
		IsRecurring: d.IsRecurring,
		DeletedAt:   d.DeletedAt,
	}
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	return m
}

// FeeGroupModel is the persistence model for fee groups
type FeeGroupModel struct {
	TenantAggregateModel
	Name        string     `gorm:"type:varchar(100);not null"`
	Description string     `gorm:"type:text"`
	IsSystem    bool       `gorm:"not null;default:false"`
	DeletedAt   *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (FeeGroupModel) TableName() string {
	return "fee_groups"
}

// ToDomain converts the persistence model to a domain FeeGroup
func (m *FeeGroupModel) ToDomain() *fee.FeeGroup {
	return &fee.FeeGroup{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Name:                m.Name,
		Description:         m.Description,
		IsSystem:            m.IsSystem,
		DeletedAt:           m.DeletedAt,
	}
}

// FeeGroupModelFromDomain creates a persistence model from a domain FeeGroup
func FeeGroupModelFromDomain(g *fee.FeeGroup) *FeeGroupModel {
	m := &FeeGroupModel{
		Name:        g.Name,
		Description: g.Description,
		IsSystem:    g.IsSystem,
		DeletedAt:   g.DeletedAt,
	}
	m.FromDomainTenantAggregateRoot(g.TenantAggregateRoot)
	return m
}

// FineColumns embeds a fine rule as three columns
type FineColumns struct {
	FineType       string          `gorm:"type:varchar(20);not null;default:'NONE'"`
	FinePercentage decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	FineAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

func fineColumnsFromDomain(r fee.FineRule) FineColumns {
	return FineColumns{FineType: string(r.Type), FinePercentage: r.Percentage, FineAmount: r.Amount}
}

// ToDomain rebuilds the fine rule
func (c FineColumns) ToDomain() fee.FineRule {
	if c.FineType == "" {
		return fee.NoFine()
	}
	return fee.FineRule{Type: fee.FineType(c.FineType), Percentage: c.FinePercentage, Amount: c.FineAmount}
}

// PlanBindingModel is the persistence model for fee group / fee type bindings
type PlanBindingModel struct {
	TenantAggregateModel
	FeeGroupID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_fee_plan_binding_group_type,priority:1"`
	FeeTypeID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_fee_plan_binding_group_type,priority:2;index"`
	DiscountID          *uuid.UUID      `gorm:"type:uuid;index"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DueDate             *time.Time
	FineColumns         `gorm:"embedded"`
	AllowPartialPayment bool `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlanBindingModel) TableName() string {
	return "fee_plan_bindings"
}

// ToDomain converts the persistence model to a domain PlanBinding
func (m *PlanBindingModel) ToDomain() *fee.PlanBinding {
	return &fee.PlanBinding{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		FeeGroupID:          m.FeeGroupID,
		FeeTypeID:           m.FeeTypeID,
		DiscountID:          m.DiscountID,
		Amount:              m.Amount,
		DueDate:             m.DueDate,
		Fine:                m.FineColumns.ToDomain(),
		AllowPartialPayment: m.AllowPartialPayment,
	}
}

// PlanBindingModelFromDomain creates a persistence model from a domain PlanBinding
func PlanBindingModelFromDomain(b *fee.PlanBinding) *PlanBindingModel {
	m := &PlanBindingModel{
		FeeGroupID:          b.FeeGroupID,
		FeeTypeID:           b.FeeTypeID,
		DiscountID:          b.DiscountID,
		Amount:              b.Amount,
		DueDate:             b.DueDate,
		FineColumns:         fineColumnsFromDomain(b.Fine),
		AllowPartialPayment: b.AllowPartialPayment,
	}
	m.FromDomainTenantAggregateRoot(b.TenantAggregateRoot)
	return m
}

// FeeAssignmentModel is the persistence model for fee assignments.
// FineAmount..Status are a snapshot taken at write time; reads re-evaluate.
type FeeAssignmentModel struct {
	TenantAggregateModel
	TargetType          string              `gorm:"type:varchar(20);not null;uniqueIndex:uq_fee_assignment_period,priority:1;index:idx_fee_assignment_target,priority:1"`
	TargetID            uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_fee_assignment_period,priority:2;index:idx_fee_assignment_target,priority:2"`
	PlanBindingID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_fee_assignment_period,priority:3;index"`
	Month               int                 `gorm:"not null;uniqueIndex:uq_fee_assignment_period,priority:4"`
	Year                int                 `gorm:"not null;uniqueIndex:uq_fee_assignment_period,priority:5"`
	FeeTypeID           uuid.UUID           `gorm:"type:uuid;not null;index"`
	Amount              decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	DiscountAmount      decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountID          *uuid.UUID          `gorm:"type:uuid"`
	PaidAmount          decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Fine                FineColumns         `gorm:"embedded;embeddedPrefix:rule_"`
	AssessedFine        decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	FineCeiling         decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	DueDate             *time.Time          `gorm:"index"`
	AllowPartialPayment bool                `gorm:"not null"`
	OriginApplicationID *uuid.UUID          `gorm:"type:uuid;index"`
	FineAmount          decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	FinalAmount         decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceAmount       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Status              string              `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	EvaluatedAt         time.Time           `gorm:"not null"`
	DeletedAt           *time.Time          `gorm:"index"`
}

// TableName returns the table name for GORM
func (FeeAssignmentModel) TableName() string {
	return "fee_assignments"
}

// ToDomain converts the persistence model to a domain FeeAssignment
func (m *FeeAssignmentModel) ToDomain() (*fee.FeeAssignment, error) {
	target, err := fee.NewTarget(fee.TargetKind(m.TargetType), m.TargetID)
	if err != nil {
		return nil, err
	}
	return &fee.FeeAssignment{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Target:              target,
		PlanBindingID:       m.PlanBindingID,
		FeeTypeID:           m.FeeTypeID,
		Month:               m.Month,
		Year:                m.Year,
		Amount:              m.Amount,
		DiscountAmount:      m.DiscountAmount,
		DiscountID:          m.DiscountID,
		PaidAmount:          m.PaidAmount,
		Fine:                m.Fine.ToDomain(),
		AssessedFine:        fromNullDecimal(m.AssessedFine),
		FineCeiling:         fromNullDecimal(m.FineCeiling),
		DueDate:             m.DueDate,
		AllowPartialPayment: m.AllowPartialPayment,
		OriginApplicationID: m.OriginApplicationID,
		DeletedAt:           m.DeletedAt,
	}, nil
}

// FeeAssignmentModelFromDomain creates a persistence model from a domain
// FeeAssignment and the evaluation taken at write time
func FeeAssignmentModelFromDomain(a *fee.FeeAssignment, snapshot fee.Evaluation) *FeeAssignmentModel {
	m := &FeeAssignmentModel{
		TargetType:          string(a.Target.Kind()),
		TargetID:            a.Target.ID(),
		PlanBindingID:       a.PlanBindingID,
		Month:               a.Month,
		Year:                a.Year,
		FeeTypeID:           a.FeeTypeID,
		Amount:              a.Amount,
		DiscountAmount:      a.DiscountAmount,
		DiscountID:          a.DiscountID,
		PaidAmount:          a.PaidAmount,
		Fine:                fineColumnsFromDomain(a.Fine),
		AssessedFine:        toNullDecimal(a.AssessedFine),
		FineCeiling:         toNullDecimal(a.FineCeiling),
		DueDate:             a.DueDate,
		AllowPartialPayment: a.AllowPartialPayment,
		OriginApplicationID: a.OriginApplicationID,
		FineAmount:          snapshot.Fine,
		FinalAmount:         snapshot.Final,
		BalanceAmount:       snapshot.Balance,
		Status:              string(snapshot.Status),
		EvaluatedAt:         snapshot.AsOf,
		DeletedAt:           a.DeletedAt,
	}
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	return m
}

// FeeTransactionModel is the persistence model for fee transactions
type FeeTransactionModel struct {
	TenantAggregateModel
	AssignmentID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	TargetType      string            `gorm:"type:varchar(20);not null;index:idx_fee_transaction_target,priority:1"`
	TargetID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_fee_transaction_target,priority:2"`
	AmountPaid      decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	PaymentDate     time.Time         `gorm:"not null"`
	Method          string            `gorm:"type:varchar(20);not null"`
	ReferenceNo     string            `gorm:"type:varchar(100)"`
	DiscountApplied decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	FineApplied     decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Status          string            `gorm:"type:varchar(20);not null;index"`
	Note            string            `gorm:"type:text"`
	BatchID         *uuid.UUID        `gorm:"type:uuid;index"`
	AdvanceEntryID  *uuid.UUID        `gorm:"type:uuid"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	RevertedAt      *time.Time
	RevertedBy      *uuid.UUID `gorm:"type:uuid"`
	RevertReason    string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (FeeTransactionModel) TableName() string {
	return "fee_transactions"
}

// ToDomain converts the persistence model to a domain FeeTransaction
func (m *FeeTransactionModel) ToDomain() (*fee.FeeTransaction, error) {
	target, err := fee.NewTarget(fee.TargetKind(m.TargetType), m.TargetID)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if len(m.Metadata) > 0 {
		metadata = map[string]interface{}(m.Metadata)
	}
	return &fee.FeeTransaction{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		AssignmentID:        m.AssignmentID,
		Target:              target,
		AmountPaid:          m.AmountPaid,
		PaymentDate:         m.PaymentDate,
		Method:              fee.PaymentMethod(m.Method),
		ReferenceNo:         m.ReferenceNo,
		DiscountApplied:     m.DiscountApplied,
		FineApplied:         m.FineApplied,
		Status:              fee.TransactionStatus(m.Status),
		Note:                m.Note,
		BatchID:             m.BatchID,
		AdvanceEntryID:      m.AdvanceEntryID,
		Metadata:            metadata,
		RevertedAt:          m.RevertedAt,
		RevertedBy:          m.RevertedBy,
		RevertReason:        m.RevertReason,
	}, nil
}

// FeeTransactionModelFromDomain creates a persistence model from a domain FeeTransaction
func FeeTransactionModelFromDomain(t *fee.FeeTransaction) *FeeTransactionModel {
	m := &FeeTransactionModel{
		AssignmentID:    t.AssignmentID,
		TargetType:      string(t.Target.Kind()),
		TargetID:        t.Target.ID(),
		AmountPaid:      t.AmountPaid,
		PaymentDate:     t.PaymentDate,
		Method:          string(t.Method),
		ReferenceNo:     t.ReferenceNo,
		DiscountApplied: t.DiscountApplied,
		FineApplied:     t.FineApplied,
		Status:          string(t.Status),
		Note:            t.Note,
		BatchID:         t.BatchID,
		AdvanceEntryID:  t.AdvanceEntryID,
		RevertedAt:      t.RevertedAt,
		RevertedBy:      t.RevertedBy,
		RevertReason:    t.RevertReason,
	}
	if len(t.Metadata) > 0 {
		m.Metadata = datatypes.JSONMap(t.Metadata)
	}
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	return m
}

// FineWaiverModel is the persistence model for fine waivers
type FineWaiverModel struct {
	TenantAggregateModel
	AssignmentID        uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uq_fine_waiver_pending,where:status = 'PENDING'"`
	TargetType          string          `gorm:"type:varchar(20);not null"`
	TargetID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	OriginalFineAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WaiverAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemainingFineAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason              string          `gorm:"type:text"`
	Status              string          `gorm:"type:varchar(20);not null;index"`
	RequestedBy         uuid.UUID       `gorm:"type:uuid;not null"`
	RequestedDate       time.Time       `gorm:"not null"`
	ApprovedBy          *uuid.UUID      `gorm:"type:uuid"`
	ApprovalDate        *time.Time
	ApprovalNote        string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (FineWaiverModel) TableName() string {
	return "fine_waivers"
}

// ToDomain converts the persistence model to a domain FineWaiver
func (m *FineWaiverModel) ToDomain() (*fee.FineWaiver, error) {
	target, err := fee.NewTarget(fee.TargetKind(m.TargetType), m.TargetID)
	if err != nil {
		return nil, err
	}
	return &fee.FineWaiver{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		AssignmentID:        m.AssignmentID,
		Target:              target,
		OriginalFineAmount:  m.OriginalFineAmount,
		WaiverAmount:        m.WaiverAmount,
		RemainingFineAmount: m.RemainingFineAmount,
		Reason:              m.Reason,
		Status:              fee.WaiverStatus(m.Status),
		RequestedBy:         m.RequestedBy,
		RequestedDate:       m.RequestedDate,
		ApprovedBy:          m.ApprovedBy,
		ApprovalDate:        m.ApprovalDate,
		ApprovalNote:        m.ApprovalNote,
	}, nil
}

// FineWaiverModelFromDomain creates a persistence model from a domain FineWaiver
func FineWaiverModelFromDomain(w *fee.FineWaiver) *FineWaiverModel {
	m := &FineWaiverModel{
		AssignmentID:        w.AssignmentID,
		TargetType:          string(w.Target.Kind()),
		TargetID:            w.Target.ID(),
		OriginalFineAmount:  w.OriginalFineAmount,
		WaiverAmount:        w.WaiverAmount,
		RemainingFineAmount: w.RemainingFineAmount,
		Reason:              w.Reason,
		Status:              string(w.Status),
		RequestedBy:         w.RequestedBy,
		RequestedDate:       w.RequestedDate,
		ApprovedBy:          w.ApprovedBy,
		ApprovalDate:        w.ApprovalDate,
		ApprovalNote:        w.ApprovalNote,
	}
	m.FromDomainTenantAggregateRoot(w.TenantAggregateRoot)
	return m
}

// AdvanceAccountModel is the persistence model for advance balance rows
type AdvanceAccountModel struct {
	TenantAggregateModel
	TargetType string          `gorm:"type:varchar(20);not null;uniqueIndex:uq_advance_account_target,priority:1"`
	TargetID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_advance_account_target,priority:2"`
	Balance    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (AdvanceAccountModel) TableName() string {
	return "advance_accounts"
}

// ToDomain converts the persistence model to a domain AdvanceAccount
func (m *AdvanceAccountModel) ToDomain() (*fee.AdvanceAccount, error) {
	target, err := fee.NewTarget(fee.TargetKind(m.TargetType), m.TargetID)
	if err != nil {
		return nil, err
	}
	return &fee.AdvanceAccount{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Target:              target,
		Balance:             m.Balance,
	}, nil
}

// AdvanceAccountModelFromDomain creates a persistence model from a domain AdvanceAccount
func AdvanceAccountModelFromDomain(a *fee.AdvanceAccount) *AdvanceAccountModel {
	m := &AdvanceAccountModel{
		TargetType: string(a.Target.Kind()),
		TargetID:   a.Target.ID(),
		Balance:    a.Balance,
	}
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	return m
}

// AdvanceLedgerEntryModel is the persistence model for immutable advance ledger rows
type AdvanceLedgerEntryModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetType    string          `gorm:"type:varchar(20);not null;index:idx_advance_entry_target,priority:1"`
	TargetID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_advance_entry_target,priority:2"`
	EntryType     string          `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AssignmentID  *uuid.UUID      `gorm:"type:uuid;index"`
	TransactionID *uuid.UUID      `gorm:"type:uuid;index"`
	Method        string          `gorm:"type:varchar(20)"`
	ReferenceNo   string          `gorm:"type:varchar(100)"`
	Remark        string          `gorm:"type:text"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AdvanceLedgerEntryModel) TableName() string {
	return "advance_ledger_entries"
}

// ToDomain converts the persistence model to a domain AdvanceEntry
func (m *AdvanceLedgerEntryModel) ToDomain() (*fee.AdvanceEntry, error) {
	target, err := fee.NewTarget(fee.TargetKind(m.TargetType), m.TargetID)
	if err != nil {
		return nil, err
	}
	return &fee.AdvanceEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		AccountID:     m.AccountID,
		Target:        target,
		Type:          fee.AdvanceEntryType(m.EntryType),
		Amount:        m.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		AssignmentID:  m.AssignmentID,
		TransactionID: m.TransactionID,
		Method:        fee.PaymentMethod(m.Method),
		ReferenceNo:   m.ReferenceNo,
		Remark:        m.Remark,
		CreatedBy:     m.CreatedBy,
	}, nil
}

// AdvanceLedgerEntryModelFromDomain creates a persistence model from a domain AdvanceEntry
func AdvanceLedgerEntryModelFromDomain(e *fee.AdvanceEntry) *AdvanceLedgerEntryModel {
	m := &AdvanceLedgerEntryModel{
		TenantID:      e.TenantID,
		AccountID:     e.AccountID,
		TargetType:    string(e.Target.Kind()),
		TargetID:      e.Target.ID(),
		EntryType:     string(e.Type),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		AssignmentID:  e.AssignmentID,
		TransactionID: e.TransactionID,
		Method:        string(e.Method),
		ReferenceNo:   e.ReferenceNo,
		Remark:        e.Remark,
		CreatedBy:     e.CreatedBy,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// ProvisionalMigrationModel is the persistence model for conversion markers
type ProvisionalMigrationModel struct {
	BaseModel
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_provisional_migration_application,priority:1"`
	ApplicationID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_provisional_migration_application,priority:2"`
	StudentID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssignmentsMoved  int        `gorm:"not null;default:0"`
	TransactionsMoved int64      `gorm:"not null;default:0"`
	WaiversMoved      int64      `gorm:"not null;default:0"`
	AdvanceMoved      bool       `gorm:"not null;default:false"`
	MigratedBy        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ProvisionalMigrationModel) TableName() string {
	return "provisional_migrations"
}

// ToDomain converts the persistence model to a domain ProvisionalMigration
func (m *ProvisionalMigrationModel) ToDomain() *fee.ProvisionalMigration {
	return &fee.ProvisionalMigration{
		BaseEntity:        m.BaseModel.ToDomain(),
		TenantID:          m.TenantID,
		ApplicationID:     m.ApplicationID,
		StudentID:         m.StudentID,
		AssignmentsMoved:  m.AssignmentsMoved,
		TransactionsMoved: m.TransactionsMoved,
		WaiversMoved:      m.WaiversMoved,
		AdvanceMoved:      m.AdvanceMoved,
		MigratedBy:        m.MigratedBy,
	}
}

// ProvisionalMigrationModelFromDomain creates a persistence model from a domain marker
func ProvisionalMigrationModelFromDomain(p *fee.ProvisionalMigration) *ProvisionalMigrationModel {
	m := &ProvisionalMigrationModel{
		TenantID:          p.TenantID,
		ApplicationID:     p.ApplicationID,
		StudentID:         p.StudentID,
		AssignmentsMoved:  p.AssignmentsMoved,
		TransactionsMoved: p.TransactionsMoved,
		WaiversMoved:      p.WaiversMoved,
		AdvanceMoved:      p.AdvanceMoved,
		MigratedBy:        p.MigratedBy,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// StudentModel is the minimal read model of the student directory
type StudentModel struct {
	BaseModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	FullName  string     `gorm:"type:varchar(200);not null"`
	DeletedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// AdmissionApplicationModel is the minimal read model of admission applications
type AdmissionApplicationModel struct {
	BaseModel
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ApplicantName string     `gorm:"type:varchar(200);not null"`
	DeletedAt     *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (AdmissionApplicationModel) TableName() string {
	return "admission_applications"
}

// FeeLedgerModels lists every model of the fee ledger, in dependency order
func FeeLedgerModels() []interface{} {
	return []interface{}{
		&StudentModel{},
		&AdmissionApplicationModel{},
		&FeeTypeModel{},
		&FeeDiscountModel{},
		&FeeGroupModel{},
		&PlanBindingModel{},
		&FeeAssignmentModel{},
		&FeeTransactionModel{},
		&FineWaiverModel{},
		&AdvanceAccountModel{},
		&AdvanceLedgerEntryModel{},
		&ProvisionalMigrationModel{},
	}
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
