package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/interfaces/http/dto"
)

// PaySingleFee handles POST /payments
// @ID           paySingleFee
// @Summary      Pay a fee
// @Description  Record a payment against one fee assignment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.PaySingleFeeRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.PaymentReceipt}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments [post]
func (h *FeeHandler) PaySingleFee(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.PaySingleFeeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.PaySingleFee(c.Request.Context(), th, req.ToCommand()))
}

// PayMultipleFees handles POST /payments/batch. A rejected batch lists every
// failing line under error.details.
// @ID           payMultipleFees
// @Summary      Pay several fees
// @Description  Record one receipt covering several assignments of a target; all lines succeed or none
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.PayMultipleFeesRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.BatchReceipt}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/batch [post]
func (h *FeeHandler) PayMultipleFees(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.PayMultipleFeesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := req.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusCreated, h.engine.PayMultipleFees(c.Request.Context(), th, req.ToCommand(target)))
}

// GetTransaction handles GET /payments/:id
// @ID           getFeeTransaction
// @Summary      Get fee transaction
// @Description  Get a payment transaction by ID
// @Tags         payments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.TransactionView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/{id} [get]
func (h *FeeHandler) GetTransaction(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetTransaction(c.Request.Context(), th, id))
}

// RevertTransaction handles POST /payments/:id/revert
// @ID           revertFeeTransaction
// @Summary      Revert fee transaction
// @Description  Revert a whole payment while its billing period is open
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Transaction ID" format(uuid)
// @Param        request body dto.RevertRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.RevertResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /payments/{id}/revert [post]
func (h *FeeHandler) RevertTransaction(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RevertRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.engine.RevertFeeTransaction(c.Request.Context(), th, feeapp.RevertRequest{
		TransactionID: id,
		Reason:        req.Reason,
	}))
}

// RecordAdvance handles POST /advances
// @ID           recordAdvancePayment
// @Summary      Record advance payment
// @Description  Deposit unapplied funds to a target's advance ledger
// @Tags         advances
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.RecordAdvanceRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.AdvanceEntryView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /advances [post]
func (h *FeeHandler) RecordAdvance(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.RecordAdvanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := req.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusCreated, h.engine.RecordAdvancePayment(c.Request.Context(), th, req.ToCommand(target)))
}

// GetAdvanceBalance handles GET /advances/balance?target_type=&target_id=
// @ID           getAdvanceBalance
// @Summary      Get advance balance
// @Description  Get a target's advance balance with ledger totals
// @Tags         advances
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        target_type query string true "Target type" Enums(STUDENT, APPLICATION)
// @Param        target_id query string true "Target ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.AdvanceBalanceView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /advances/balance [get]
func (h *FeeHandler) GetAdvanceBalance(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var ref dto.TargetRef
	if !h.BindQuery(c, &ref) {
		return
	}
	target, err := ref.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusOK, h.engine.GetAdvanceBalance(c.Request.Context(), th, target))
}

// ListAdvanceEntries handles GET /advances/entries?target_type=&target_id=
// @ID           listAdvanceEntries
// @Summary      List advance entries
// @Description  List a target's advance ledger oldest first
// @Tags         advances
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        target_type query string true "Target type" Enums(STUDENT, APPLICATION)
// @Param        target_id query string true "Target ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]feeapp.AdvanceEntryView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /advances/entries [get]
func (h *FeeHandler) ListAdvanceEntries(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var ref dto.TargetRef
	if !h.BindQuery(c, &ref) {
		return
	}
	target, err := ref.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusOK, h.engine.ListAdvanceEntries(c.Request.Context(), th, target))
}

// ApplyAdvance handles POST /advances/apply
// @ID           applyAdvance
// @Summary      Apply advance balance
// @Description  Pay a target's open assignments from its advance balance
// @Tags         advances
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.TargetRef true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.ApplyAdvanceResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /advances/apply [post]
func (h *FeeHandler) ApplyAdvance(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var ref dto.TargetRef
	if !h.BindJSON(c, &ref) {
		return
	}
	target, err := ref.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusOK, h.engine.ApplyAdvance(c.Request.Context(), th, feeapp.ApplyAdvanceRequest{Target: target}))
}
