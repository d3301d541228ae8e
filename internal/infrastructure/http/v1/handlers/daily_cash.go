package handlers

import (
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/cashregister"
	"retailledger/internal/infrastructure/http/v1/dto"
)

// DailyCashHandler serves /daily-cash.
type DailyCashHandler struct {
	*BaseHandler
	register *cashregister.Service
}

// NewDailyCashHandler creates a daily cash handler.
func NewDailyCashHandler(base *BaseHandler, register *cashregister.Service) *DailyCashHandler {
	return &DailyCashHandler{BaseHandler: base, register: register}
}

// RegisterRoutes mounts the register routes on rg.
func (h *DailyCashHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/today", h.Today)
	rg.GET("/date/:date", h.GetByDate)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Open)
	rg.PUT("/:id", h.Update)
	rg.PUT("/:id/close", h.Close)
	rg.PUT("/:id/reopen", h.Reopen)
	rg.POST("/:id/movements", h.AddMovement)
}

// Today handles GET /daily-cash/today, creating today's register on first access.
func (h *DailyCashHandler) Today(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dc, err := h.register.Today(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// GetByDate handles GET /daily-cash/date/:date.
func (h *DailyCashHandler) GetByDate(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	day, ok := h.ParseDay(c, "date")
	if !ok {
		return
	}
	dc, err := h.register.GetByDate(c.Request.Context(), userID, day)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// Get handles GET /daily-cash/:id.
func (h *DailyCashHandler) Get(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dailyCashID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	dc, err := h.register.GetByID(c.Request.Context(), userID, dailyCashID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// Open handles POST /daily-cash.
func (h *DailyCashHandler) Open(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	var req dto.OpenDailyCashRequest
	if !h.BindJSON(c, &req) {
		return
	}
	dc, err := h.register.Open(c.Request.Context(), userID, req.ToInput(userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dc)
}

// Update handles PUT /daily-cash/:id.
func (h *DailyCashHandler) Update(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dailyCashID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDailyCashRequest
	if !h.BindJSON(c, &req) {
		return
	}
	dc, err := h.register.Update(c.Request.Context(), userID, dailyCashID, req.ToInput(userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// Close handles PUT /daily-cash/:id/close.
func (h *DailyCashHandler) Close(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dailyCashID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseDailyCashRequest
	if !h.BindJSON(c, &req) {
		return
	}
	dc, err := h.register.Close(c.Request.Context(), userID, dailyCashID, req.ToInput(userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// Reopen handles PUT /daily-cash/:id/reopen.
func (h *DailyCashHandler) Reopen(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dailyCashID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	dc, err := h.register.Reopen(c.Request.Context(), userID, dailyCashID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dc)
}

// AddMovement handles POST /daily-cash/:id/movements.
func (h *DailyCashHandler) AddMovement(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	dailyCashID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	dc, err := h.register.AddManual(c.Request.Context(), userID, dailyCashID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dc)
}
