package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/school/backend/internal/interfaces/http/dto"
)

// Stamp handles POST /fee-assignments. A period that was already stamped
// answers 200 with the existing assignment instead of 201.
// @ID           stampFeeAssignment
// @Summary      Stamp fee assignment
// @Description  Bill a plan binding to a student or application for one period
// @Tags         fee-assignments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.StampRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.StampResult}
// @Success      200 {object} dto.Response{data=feeapp.StampResult} "Period already stamped"
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments [post]
func (h *FeeHandler) Stamp(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.StampRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := req.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}

	res := h.engine.Stamp(c.Request.Context(), th, req.ToCommand(target))
	status := http.StatusOK
	if res.Success && res.Data.Created {
		status = http.StatusCreated
	}
	respond(c, status, res)
}

// StampGroup handles POST /fee-groups/:id/stamp
// @ID           stampFeeGroup
// @Summary      Stamp fee group
// @Description  Bill every binding of a fee group to a target for one period
// @Tags         fee-groups
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee group ID" format(uuid)
// @Param        request body dto.StampGroupRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.StampGroupResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-groups/{id}/stamp [post]
func (h *FeeHandler) StampGroup(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	groupID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.StampGroupRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := req.ToTarget()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respond(c, http.StatusOK, h.engine.StampGroup(c.Request.Context(), th, req.ToCommand(groupID, target)))
}

// GetAssignment handles GET /fee-assignments/:id
// @ID           getFeeAssignment
// @Summary      Get fee assignment
// @Description  Get a fee assignment evaluated as of now
// @Tags         fee-assignments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Assignment ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.AssignmentView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments/{id} [get]
func (h *FeeHandler) GetAssignment(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetAssignment(c.Request.Context(), th, id))
}

// ListAssignments handles GET /fee-assignments
// @ID           listFeeAssignments
// @Summary      List fee assignments
// @Description  List fee assignments by target, binding or period
// @Tags         fee-assignments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Param        search query string false "Search term"
// @Param        target_type query string false "Target type" Enums(STUDENT, APPLICATION)
// @Param        target_id query string false "Target ID" format(uuid)
// @Param        plan_binding_id query string false "Plan binding ID" format(uuid)
// @Param        month query int false "Billing month" minimum(1) maximum(12)
// @Param        year query int false "Billing year"
// @Param        include_deleted query bool false "Include deleted assignments"
// @Success      200 {object} dto.Response{data=[]feeapp.AssignmentView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments [get]
func (h *FeeHandler) ListAssignments(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var q dto.AssignmentListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.BadRequest(c, dto.ErrCodeValidation, err.Error())
		return
	}
	respondPage(c, h.engine.ListAssignments(c.Request.Context(), th, filter))
}

// DeleteAssignment handles DELETE /fee-assignments/:id
// @ID           deleteFeeAssignment
// @Summary      Delete fee assignment
// @Description  Soft delete an assignment with nothing paid
// @Tags         fee-assignments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Assignment ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments/{id} [delete]
func (h *FeeHandler) DeleteAssignment(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respondEmpty(c, h.engine.DeleteAssignment(c.Request.Context(), th, id))
}

// ListTransactions handles GET /fee-assignments/:id/transactions
// @ID           listAssignmentTransactions
// @Summary      List assignment transactions
// @Description  List the payment transactions of an assignment oldest first
// @Tags         fee-assignments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Assignment ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]feeapp.TransactionView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments/{id}/transactions [get]
func (h *FeeHandler) ListTransactions(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.ListTransactions(c.Request.Context(), th, id))
}

// ListWaivers handles GET /fee-assignments/:id/waivers
// @ID           listAssignmentWaivers
// @Summary      List assignment waivers
// @Description  List the fine waivers of an assignment
// @Tags         fee-assignments
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Assignment ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]feeapp.WaiverView}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-assignments/{id}/waivers [get]
func (h *FeeHandler) ListWaivers(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.ListWaivers(c.Request.Context(), th, id))
}

// ConvertAdmission handles POST /admissions/:application_id/convert
// @ID           convertAdmission
// @Summary      Convert admission fees
// @Description  Move an admitted application's fees, payments and advance balance to the student
// @Tags         admissions
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        application_id path string true "Application ID" format(uuid)
// @Param        request body dto.ConvertRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.ConversionResult}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /admissions/{application_id}/convert [post]
func (h *FeeHandler) ConvertAdmission(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	applicationID, ok := h.ParamUUID(c, "application_id")
	if !ok {
		return
	}
	var req dto.ConvertRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.engine.ConvertProvisionalToActive(c.Request.Context(), th, applicationID, req.StudentID))
}
