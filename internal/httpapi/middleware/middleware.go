package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/UnuProxy/JYE-MainWeb/internal/auth"
	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	RequestIDKey      = "request_id"
	ConversationIDKey = "conversation_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			if id, err := common.NewULID(); err == nil {
				rid = id
			}
		}
		c.Set(RequestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic: %v", r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// SessionRequired validates the anonymous widget session token and stashes
// its conversation id for handlers to check against request bodies.
func SessionRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if tokenStr == "" || tokenStr == h {
			common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
			c.Abort()
			return
		}
		convID, err := auth.ParseSession(tokenStr, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid session token")
			c.Abort()
			return
		}
		c.Set(ConversationIDKey, convID)
		c.Next()
	}
}
