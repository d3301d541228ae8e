package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/installments"
	"retailledger/internal/domain/sales"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// InstallmentHandler serves /installments and /sales/:id/installments.
type InstallmentHandler struct {
	*BaseHandler
	installments *installments.Manager
}

// NewInstallmentHandler creates an installment handler.
func NewInstallmentHandler(base *BaseHandler, manager *installments.Manager) *InstallmentHandler {
	return &InstallmentHandler{BaseHandler: base, installments: manager}
}

// RegisterRoutes mounts the installment routes on rg.
func (h *InstallmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/installments", h.Create)
	rg.POST("/installments/bulk", h.CreateMany)
	rg.POST("/installments/schedule", h.Schedule)
	rg.POST("/installments/pay-multiple", h.PayMultiple)
	rg.PUT("/installments/:id/pay", h.Pay)
	rg.DELETE("/installments/:id", h.Delete)
	rg.GET("/sales/:id/installments", h.ListBySale)
}

// Create handles POST /installments.
func (h *InstallmentHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var req dto.CreateInstallmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inst, err := h.installments.Create(c.Request.Context(), req.SaleID, req.InstallmentInput, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inst)
}

// CreateMany handles POST /installments/bulk.
func (h *InstallmentHandler) CreateMany(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var req dto.BulkInstallmentsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	list, err := h.installments.CreateMany(c.Request.Context(), req.SaleID, req.Installments, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, list)
}

// Schedule handles POST /installments/schedule. Nothing is persisted.
func (h *InstallmentHandler) Schedule(c *gin.Context) {
	var req dto.ScheduleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lines, err := h.installments.Schedule(req.ToPlan())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewScheduleResponse(lines))
}

// Pay handles PUT /installments/:id/pay.
func (h *InstallmentHandler) Pay(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	installmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var in installments.PayInput
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &in) {
		return
	}
	inst, err := h.installments.MarkAsPaid(c.Request.Context(), installmentID, in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inst)
}

// PayMultiple handles POST /installments/pay-multiple.
func (h *InstallmentHandler) PayMultiple(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PayMultipleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	paid, err := h.installments.PayMultiple(c.Request.Context(), req.InstallmentIDs, installments.PayInput{
		PaymentDate:   req.PaymentDate,
		PaymentMethod: req.PaymentMethod,
	}, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if paid == nil {
		paid = []sales.Installment{}
	}
	h.OK(c, paid)
}

// Delete handles DELETE /installments/:id; a paid installment is voided.
func (h *InstallmentHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	installmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.installments.Void(c.Request.Context(), installmentID, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ListBySale handles GET /sales/:id/installments.
func (h *InstallmentHandler) ListBySale(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	list, err := h.installments.ListBySale(c.Request.Context(), saleID, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, list)
}
