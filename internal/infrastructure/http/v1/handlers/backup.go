package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/domain/backup"
)

// maxImportBytes bounds the (possibly compressed) import body.
const maxImportBytes = 64 << 20

// BackupHandler serves /backup.
type BackupHandler struct {
	*BaseHandler
	backup *backup.Service
	codec  *backup.Codec
}

// NewBackupHandler creates a backup handler.
func NewBackupHandler(base *BaseHandler, service *backup.Service, codec *backup.Codec) *BackupHandler {
	return &BackupHandler{BaseHandler: base, backup: service, codec: codec}
}

// RegisterRoutes mounts the backup routes on rg.
func (h *BackupHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export", h.Export)
	rg.POST("/import", h.Import)
}

// Export handles GET /backup/export[?compress=zstd].
func (h *BackupHandler) Export(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}
	snap, err := h.backup.Export(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	algo := backup.CompressionNone
	if strings.EqualFold(c.Query("compress"), string(backup.CompressionZstd)) {
		algo = backup.CompressionZstd
	}
	body, err := h.codec.Encode(snap, algo)
	if err != nil {
		h.Error(c, err)
		return
	}

	filename := fmt.Sprintf("backup-%s.json", snap.ExportedAt.Format(clock.DateLayout))
	contentType := "application/json"
	if algo == backup.CompressionZstd {
		filename += ".zst"
		contentType = "application/zstd"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

// Import handles POST /backup/import. A zstd body is announced with Content-Encoding: zstd.
func (h *BackupHandler) Import(c *gin.Context) {
	userID, ok := h.RequireUser(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		h.Error(c, apperror.NewValidation("failed to read request body").WithDetail("error", err.Error()))
		return
	}
	if len(body) > maxImportBytes {
		appErr := apperror.NewValidation("backup too large")
		appErr.HTTPStatus = http.StatusRequestEntityTooLarge
		h.Error(c, appErr.WithDetail("max_bytes", maxImportBytes))
		return
	}

	algo := backup.CompressionNone
	if strings.EqualFold(c.GetHeader("Content-Encoding"), string(backup.CompressionZstd)) {
		algo = backup.CompressionZstd
	}
	snap, err := h.codec.Decode(body, algo)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.backup.Import(c.Request.Context(), userID, snap); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, fmt.Sprintf("imported %d rows", snap.Rows()))
}
