package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/sales"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// SaleHandler serves /sales.
type SaleHandler struct {
	*BaseHandler
	sales *sales.Manager
}

// NewSaleHandler creates a sale handler.
func NewSaleHandler(base *BaseHandler, manager *sales.Manager) *SaleHandler {
	return &SaleHandler{BaseHandler: base, sales: manager}
}

// RegisterRoutes mounts the sale routes on rg.
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

// Create handles POST /sales.
func (h *SaleHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var in sales.Input
	if !h.BindJSON(c, &in) {
		return
	}
	sale, err := h.sales.Create(c.Request.Context(), in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, sale)
}

// List handles GET /sales.
func (h *SaleHandler) List(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var q dto.SaleListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.sales.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /sales/:id.
func (h *SaleHandler) Get(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.sales.Get(c.Request.Context(), saleID, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// Update handles PUT /sales/:id.
func (h *SaleHandler) Update(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var in sales.Input
	if !h.BindJSON(c, &in) {
		return
	}
	sale, err := h.sales.Update(c.Request.Context(), saleID, in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sale)
}

// Delete handles DELETE /sales/:id; the sale is voided with all its effects.
func (h *SaleHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.sales.Void(c.Request.Context(), saleID, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
