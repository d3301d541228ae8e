package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/returns"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// ExpenseHandler serves /expenses.
type ExpenseHandler struct {
	*BaseHandler
	expenses *expenses.Service
}

// NewExpenseHandler creates an expense handler.
func NewExpenseHandler(base *BaseHandler, service *expenses.Service) *ExpenseHandler {
	return &ExpenseHandler{BaseHandler: base, expenses: service}
}

// RegisterRoutes mounts the expense routes on rg.
func (h *ExpenseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.DELETE("/:id", h.Delete)
}

// Create handles POST /expenses.
func (h *ExpenseHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var in expenses.Input
	if !h.BindJSON(c, &in) {
		return
	}
	e, err := h.expenses.Create(c.Request.Context(), in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// List handles GET /expenses.
func (h *ExpenseHandler) List(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.expenses.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Delete handles DELETE /expenses/:id.
func (h *ExpenseHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	expenseID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.expenses.Delete(c.Request.Context(), expenseID, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// ReturnHandler serves /returns.
type ReturnHandler struct {
	*BaseHandler
	returns *returns.Service
}

// NewReturnHandler creates a return handler.
func NewReturnHandler(base *BaseHandler, service *returns.Service) *ReturnHandler {
	return &ReturnHandler{BaseHandler: base, returns: service}
}

// RegisterRoutes mounts the return routes on rg.
func (h *ReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.DELETE("/:id", h.Delete)
}

// Create handles POST /returns.
func (h *ReturnHandler) Create(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var in returns.Input
	if !h.BindJSON(c, &in) {
		return
	}
	r, err := h.returns.Create(c.Request.Context(), in, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// List handles GET /returns.
func (h *ReturnHandler) List(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.returns.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Delete handles DELETE /returns/:id.
func (h *ReturnHandler) Delete(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	returnID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.returns.Delete(c.Request.Context(), returnID, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
