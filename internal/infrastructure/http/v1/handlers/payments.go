package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/payments"
)

// PaymentHandler serves /payments and /sales/:id/payments.
type PaymentHandler struct {
	*BaseHandler
	payments *payments.Manager
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(base *BaseHandler, manager *payments.Manager) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, payments: manager}
}

// RegisterRoutes mounts the payment routes on rg.
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments", h.Create)
	rg.PUT("/payments/:id", h.Update)
	rg.DELETE("/payments/:id", h.Delete)
	rg.GET("/sales/:id/payments", h.ListBySale)
}

// Create handles POST /payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var in payments.CreateInput
	if !h.BindJSON(c, &in) {
		return
	}
	p, err := h.payments.Create(c.Request.Context(), in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Update handles PUT /payments/:id.
func (h *PaymentHandler) Update(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var patch payments.Patch
	if !h.BindJSON(c, &patch) {
		return
	}
	p, err := h.payments.Update(c.Request.Context(), paymentID, patch, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Delete handles DELETE /payments/:id.
func (h *PaymentHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.payments.Delete(c.Request.Context(), paymentID, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ListBySale handles GET /sales/:id/payments.
func (h *PaymentHandler) ListBySale(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	list, err := h.payments.ListBySale(c.Request.Context(), saleID, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, list)
}
