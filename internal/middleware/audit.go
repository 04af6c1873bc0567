package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acadreg/acadreg-api/internal/models"
	"github.com/acadreg/acadreg-api/pkg/jobs"
)

// Audit records an audit entry after a successful request. The write
// happens off the request path through the audit queue; a full queue
// drops the entry rather than stalling the response.
func Audit(queue *jobs.Queue, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = queue.Enqueue(jobs.Job{
			Type: action,
			Payload: &models.AuditLog{
				UserID:     userID,
				Action:     action,
				Resource:   resource,
				ResourceID: resourceID,
				NewValues:  body,
				IPAddress:  c.ClientIP(),
				UserAgent:  c.GetHeader("User-Agent"),
			},
		})
	}
}
