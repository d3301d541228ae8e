package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/pkg/logger"
)

// MaintenanceChecker reports whether a user's data is being restored.
type MaintenanceChecker interface {
	InMaintenance(ctx context.Context, userID string) (bool, error)
}

// Maintenance rejects writes while the caller's account is locked by a backup import.
// Reads pass through. A failing checker lets the request through with a warning.
func Maintenance(checker MaintenanceChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := appctx.GetUserID(ctx)
		if userID == "" {
			c.Next()
			return
		}

		active, err := checker.InMaintenance(ctx, userID)
		if err != nil {
			logger.Warn(ctx, "maintenance check failed", "error", err)
			c.Next()
			return
		}
		if active {
			_ = c.Error(apperror.NewMaintenance(userID))
			c.Abort()
			return
		}

		c.Next()
	}
}
