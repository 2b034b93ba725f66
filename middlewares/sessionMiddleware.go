package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

const CorrelationHeader = "X-Correlation-Id"

// CorrelationMiddleware tags every request with a correlation id, reusing the
// caller's header when present. The id ends up in log fields and outbox rows.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.Request.Header.Get(CorrelationHeader))
		if cid == "" || len(cid) > 64 {
			cid = uuid.NewString()
		}
		c.Writer.Header().Set(CorrelationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}
