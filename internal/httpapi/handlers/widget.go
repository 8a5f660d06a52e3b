package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/auth"
	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionTTL = 24 * time.Hour

// WidgetConfig bootstraps a widget session: the store-connection config the
// client consumes once at startup. Accepts the locally stored conversation
// id, allocating a fresh one on first open, and issues the session token the
// remaining endpoints require.
func (h *Handler) WidgetConfig(c *gin.Context) {
	convID := c.Query("conversation_id")
	if convID == "" {
		convID = uuid.NewString()
	}

	if _, err := h.Store.GetConversation(c.Request.Context(), convID); err != nil {
		log.Printf("[WidgetConfig] ensure conversation conversation_id=%s err=%v", convID, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to open conversation")
		return
	}

	token, err := auth.SignSession(convID, h.Cfg.JWTSecret, sessionTTL)
	if err != nil {
		log.Printf("[WidgetConfig] sign token conversation_id=%s err=%v", convID, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to issue session token")
		return
	}

	common.OK(c, gin.H{
		"conversation_id": convID,
		"token":           token,
		"events_path":     "/conversations/" + convID + "/events",
		"debounce_ms":     int(h.Cfg.MessageDebounce / time.Millisecond),
	})
}
