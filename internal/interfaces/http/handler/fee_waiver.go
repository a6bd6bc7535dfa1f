package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/domain/shared"
	"github.com/school/backend/internal/interfaces/http/dto"
)

// RequestWaiver handles POST /fine-waivers. The requester is the caller.
// @ID           requestFineWaiver
// @Summary      Request fine waiver
// @Description  Ask to waive part of an assignment's accrued fine
// @Tags         fine-waivers
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.RequestWaiverRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.WaiverView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fine-waivers [post]
func (h *FeeHandler) RequestWaiver(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.RequestWaiverRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.RequestWaiver(c.Request.Context(), th, feeapp.RequestWaiverRequest{
		AssignmentID: req.AssignmentID,
		WaiverAmount: req.WaiverAmount,
		Reason:       req.Reason,
	}))
}

// GetWaiver handles GET /fine-waivers/:id
// @ID           getFineWaiver
// @Summary      Get fine waiver
// @Description  Get a fine waiver by ID
// @Tags         fine-waivers
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Waiver ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.WaiverView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fine-waivers/{id} [get]
func (h *FeeHandler) GetWaiver(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetWaiver(c.Request.Context(), th, id))
}

// ApproveWaiver handles POST /fine-waivers/:id/approve
// @ID           approveFineWaiver
// @Summary      Approve fine waiver
// @Description  Approve a pending waiver and cap the assignment's fine
// @Tags         fine-waivers
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Waiver ID" format(uuid)
// @Param        request body dto.DecideWaiverRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.WaiverDecision}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fine-waivers/{id}/approve [post]
func (h *FeeHandler) ApproveWaiver(c *gin.Context) {
	h.decideWaiver(c, h.engine.ApproveWaiver)
}

// RejectWaiver handles POST /fine-waivers/:id/reject
// @ID           rejectFineWaiver
// @Summary      Reject fine waiver
// @Description  Reject a pending waiver
// @Tags         fine-waivers
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Waiver ID" format(uuid)
// @Param        request body dto.DecideWaiverRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.WaiverDecision}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fine-waivers/{id}/reject [post]
func (h *FeeHandler) RejectWaiver(c *gin.Context) {
	h.decideWaiver(c, h.engine.RejectWaiver)
}

type waiverDecider func(ctx context.Context, th shared.TenantHandle, req feeapp.DecideWaiverRequest) feeapp.Result[*feeapp.WaiverDecision]

// decideWaiver records the caller as the decider
func (h *FeeHandler) decideWaiver(c *gin.Context, decide waiverDecider) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.DecideWaiverRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, decide(c.Request.Context(), th, feeapp.DecideWaiverRequest{
		WaiverID: id,
		Note:     req.Note,
	}))
}
