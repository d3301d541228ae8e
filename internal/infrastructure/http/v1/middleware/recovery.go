// Package middleware provides the gin middleware chain of the ledger API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"retailledger/internal/core/apperror"
	"retailledger/pkg/logger"
)

// Recovery turns a handler panic into a 500 rendered by ErrorHandler.
// Any transaction open in the panicking goroutine has already been rolled back by the tx manager.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"error", rec,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id")),
			)
			c.Abort()
		}()
		c.Next()
	}
}
