package handler

import (
	"github.com/school/backend/internal/interfaces/http/router"
)

// FeeRoutes groups every fee ledger route by resource
func FeeRoutes(h *FeeHandler) []*router.DomainGroup {
	feeTypes := router.NewDomainGroup("fee-types", "/fee-types").
		POST("", h.CreateFeeType).
		GET("", h.ListFeeTypes).
		GET("/:id", h.GetFeeType).
		PUT("/:id", h.UpdateFeeType).
		DELETE("/:id", h.DeleteFeeType)

	discounts := router.NewDomainGroup("fee-discounts", "/fee-discounts").
		POST("", h.CreateDiscount).
		GET("/:id", h.GetDiscount).
		DELETE("/:id", h.DeleteDiscount)

	groups := router.NewDomainGroup("fee-groups", "/fee-groups").
		POST("", h.CreateFeeGroup).
		GET("", h.ListFeeGroups).
		DELETE("/:id", h.DeleteFeeGroup).
		GET("/:id/plan-bindings", h.ListGroupBindings).
		POST("/:id/stamp", h.StampGroup)

	bindings := router.NewDomainGroup("plan-bindings", "/plan-bindings").
		POST("", h.CreatePlanBinding).
		GET("/:id", h.GetPlanBinding).
		PUT("/:id", h.UpdatePlanBinding).
		DELETE("/:id", h.DeletePlanBinding)

	assignments := router.NewDomainGroup("fee-assignments", "/fee-assignments").
		POST("", h.Stamp).
		GET("", h.ListAssignments).
		GET("/:id", h.GetAssignment).
		DELETE("/:id", h.DeleteAssignment).
		GET("/:id/transactions", h.ListTransactions).
		GET("/:id/waivers", h.ListWaivers)

	payments := router.NewDomainGroup("payments", "/payments").
		POST("", h.PaySingleFee).
		POST("/batch", h.PayMultipleFees).
		GET("/:id", h.GetTransaction).
		POST("/:id/revert", h.RevertTransaction)

	advances := router.NewDomainGroup("advances", "/advances").
		POST("", h.RecordAdvance).
		GET("/balance", h.GetAdvanceBalance).
		GET("/entries", h.ListAdvanceEntries).
		POST("/apply", h.ApplyAdvance)

	waivers := router.NewDomainGroup("fine-waivers", "/fine-waivers").
		POST("", h.RequestWaiver).
		GET("/:id", h.GetWaiver).
		POST("/:id/approve", h.ApproveWaiver).
		POST("/:id/reject", h.RejectWaiver)

	admissions := router.NewDomainGroup("admissions", "/admissions").
		POST("/:application_id/convert", h.ConvertAdmission)

	return []*router.DomainGroup{feeTypes, discounts, groups, bindings, assignments, payments, advances, waivers, admissions}
}

// RegisterFeeRoutes queues the fee routes on r
func RegisterFeeRoutes(r *router.Router, h *FeeHandler) {
	for _, g := range FeeRoutes(h) {
		r.Register(g)
	}
}
