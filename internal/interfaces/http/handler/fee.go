package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	feeapp "github.com/school/backend/internal/application/fee"
	"github.com/school/backend/internal/interfaces/http/dto"
)

// FeeHandler serves the fee ledger API
type FeeHandler struct {
	BaseHandler
	engine *feeapp.Engine
}

// NewFeeHandler creates a FeeHandler over engine
func NewFeeHandler(engine *feeapp.Engine) *FeeHandler {
	return &FeeHandler{engine: engine}
}

// CreateFeeType handles POST /fee-types
// @ID           createFeeType
// @Summary      Create fee type
// @Description  Create a fee type with a tenant-unique code
// @Tags         fee-types
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.CreateFeeTypeRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.FeeTypeResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-types [post]
func (h *FeeHandler) CreateFeeType(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.CreateFeeTypeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.CreateFeeType(c.Request.Context(), th, req.ToCommand()))
}

// UpdateFeeType handles PUT /fee-types/:id
// @ID           updateFeeType
// @Summary      Update fee type
// @Description  Rename a fee type or change its frequency
// @Tags         fee-types
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee type ID" format(uuid)
// @Param        request body dto.UpdateFeeTypeRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.FeeTypeResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-types/{id} [put]
func (h *FeeHandler) UpdateFeeType(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateFeeTypeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.engine.UpdateFeeType(c.Request.Context(), th, id, req.ToCommand()))
}

// GetFeeType handles GET /fee-types/:id
// @ID           getFeeType
// @Summary      Get fee type
// @Description  Get a fee type by ID
// @Tags         fee-types
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee type ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.FeeTypeResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-types/{id} [get]
func (h *FeeHandler) GetFeeType(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetFeeType(c.Request.Context(), th, id))
}

// ListFeeTypes handles GET /fee-types
// @ID           listFeeTypes
// @Summary      List fee types
// @Description  List fee types with pagination
// @Tags         fee-types
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Param        search query string false "Search term"
// @Success      200 {object} dto.Response{data=[]feeapp.FeeTypeResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-types [get]
func (h *FeeHandler) ListFeeTypes(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	respondPage(c, h.engine.ListFeeTypes(c.Request.Context(), th, q.ToFilter()))
}

// DeleteFeeType handles DELETE /fee-types/:id
// @ID           deleteFeeType
// @Summary      Delete fee type
// @Description  Soft delete a fee type that no plan binding uses
// @Tags         fee-types
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee type ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-types/{id} [delete]
func (h *FeeHandler) DeleteFeeType(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respondEmpty(c, h.engine.DeleteFeeType(c.Request.Context(), th, id))
}

// CreateDiscount handles POST /fee-discounts
// @ID           createFeeDiscount
// @Summary      Create fee discount
// @Description  Create a fixed or percentage fee discount
// @Tags         fee-discounts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.CreateDiscountRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.FeeDiscountResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-discounts [post]
func (h *FeeHandler) CreateDiscount(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.CreateDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.CreateDiscount(c.Request.Context(), th, req.ToCommand()))
}

// GetDiscount handles GET /fee-discounts/:id
// @ID           getFeeDiscount
// @Summary      Get fee discount
// @Description  Get a fee discount by ID
// @Tags         fee-discounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Discount ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.FeeDiscountResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-discounts/{id} [get]
func (h *FeeHandler) GetDiscount(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetDiscount(c.Request.Context(), th, id))
}

// DeleteDiscount handles DELETE /fee-discounts/:id
// @ID           deleteFeeDiscount
// @Summary      Delete fee discount
// @Description  Soft delete a fee discount
// @Tags         fee-discounts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Discount ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-discounts/{id} [delete]
func (h *FeeHandler) DeleteDiscount(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respondEmpty(c, h.engine.DeleteDiscount(c.Request.Context(), th, id))
}

// CreateFeeGroup handles POST /fee-groups
// @ID           createFeeGroup
// @Summary      Create fee group
// @Description  Create a fee group that bundles plan bindings
// @Tags         fee-groups
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.CreateFeeGroupRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.FeeGroupResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-groups [post]
func (h *FeeHandler) CreateFeeGroup(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.CreateFeeGroupRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.CreateFeeGroup(c.Request.Context(), th, req.ToCommand()))
}

// ListFeeGroups handles GET /fee-groups
// @ID           listFeeGroups
// @Summary      List fee groups
// @Description  List fee groups with pagination
// @Tags         fee-groups
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Param        search query string false "Search term"
// @Success      200 {object} dto.Response{data=[]feeapp.FeeGroupResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-groups [get]
func (h *FeeHandler) ListFeeGroups(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	respondPage(c, h.engine.ListFeeGroups(c.Request.Context(), th, q.ToFilter()))
}

// DeleteFeeGroup handles DELETE /fee-groups/:id
// @ID           deleteFeeGroup
// @Summary      Delete fee group
// @Description  Soft delete a fee group without bindings
// @Tags         fee-groups
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee group ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-groups/{id} [delete]
func (h *FeeHandler) DeleteFeeGroup(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respondEmpty(c, h.engine.DeleteFeeGroup(c.Request.Context(), th, id))
}

// ListGroupBindings handles GET /fee-groups/:id/plan-bindings
// @ID           listFeeGroupBindings
// @Summary      List group plan bindings
// @Description  List the plan bindings of a fee group
// @Tags         fee-groups
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Fee group ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]feeapp.PlanBindingResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /fee-groups/{id}/plan-bindings [get]
func (h *FeeHandler) ListGroupBindings(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.ListPlanBindings(c.Request.Context(), th, id))
}

// CreatePlanBinding handles POST /plan-bindings
// @ID           createPlanBinding
// @Summary      Create plan binding
// @Description  Bind a fee type to a fee group with an amount, due date and fine rule
// @Tags         plan-bindings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        request body dto.CreatePlanBindingRequest true "Request body"
// @Success      201 {object} dto.Response{data=feeapp.PlanBindingResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /plan-bindings [post]
func (h *FeeHandler) CreatePlanBinding(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.CreatePlanBindingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusCreated, h.engine.CreatePlanBinding(c.Request.Context(), th, req.ToCommand()))
}

// GetPlanBinding handles GET /plan-bindings/:id
// @ID           getPlanBinding
// @Summary      Get plan binding
// @Description  Get a plan binding by ID
// @Tags         plan-bindings
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Plan binding ID" format(uuid)
// @Success      200 {object} dto.Response{data=feeapp.PlanBindingResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /plan-bindings/{id} [get]
func (h *FeeHandler) GetPlanBinding(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.engine.GetPlanBinding(c.Request.Context(), th, id))
}

// UpdatePlanBinding handles PUT /plan-bindings/:id
// @ID           updatePlanBinding
// @Summary      Update plan binding
// @Description  Change the terms of a plan binding; existing assignments keep their snapshot
// @Tags         plan-bindings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Plan binding ID" format(uuid)
// @Param        request body dto.UpdatePlanBindingRequest true "Request body"
// @Success      200 {object} dto.Response{data=feeapp.PlanBindingResponse}
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /plan-bindings/{id} [put]
func (h *FeeHandler) UpdatePlanBinding(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePlanBindingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	respond(c, http.StatusOK, h.engine.UpdatePlanBinding(c.Request.Context(), th, id, req.ToCommand()))
}

// DeletePlanBinding handles DELETE /plan-bindings/:id
// @ID           deletePlanBinding
// @Summary      Delete plan binding
// @Description  Delete a plan binding that no assignment references
// @Tags         plan-bindings
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (development only)"
// @Param        id path string true "Plan binding ID" format(uuid)
// @Success      204
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /plan-bindings/{id} [delete]
func (h *FeeHandler) DeletePlanBinding(c *gin.Context) {
	th, ok := h.Tenant(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	respondEmpty(c, h.engine.DeletePlanBinding(c.Request.Context(), th, id))
}
