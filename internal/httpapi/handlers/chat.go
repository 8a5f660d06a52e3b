package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"github.com/UnuProxy/JYE-MainWeb/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
)

func conversationFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.ConversationIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

type chatReq struct {
	UserMessage    string `json:"userMessage" binding:"required"`
	ConversationID string `json:"conversationId" binding:"required"`
	UserName       string `json:"userName"`
}

// Chat relays one user message to the completion provider and returns the
// bot reply. Provider failures surface as 500; the widget renders its static
// fallback in that case.
func (h *Handler) Chat(c *gin.Context) {
	convID, okk := conversationFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "user message is required")
		return
	}
	if req.ConversationID != convID {
		// token is bound to one conversation; hide others
		common.Fail(c, http.StatusNotFound, 40404, "conversation not found")
		return
	}

	reply, err := h.ChatSvc.HandleChat(c.Request.Context(), convID, req.UserName, req.UserMessage)
	if err != nil {
		if err == chat.ErrEmptyMessage {
			common.Fail(c, http.StatusBadRequest, 10001, "user message is required")
			return
		}
		log.Printf("[Chat] completion failed conversation_id=%s err=%v", convID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to fetch completion response")
		return
	}

	common.OK(c, gin.H{"response": reply})
}

type stopBotReq struct {
	ConversationID string `json:"conversationId" binding:"required"`
	AgentID        string `json:"agentId"`
}

// StopBot flips the conversation to agent handling. Best-effort by contract:
// the widget's own state machine reacts to the status event, not to this
// response.
func (h *Handler) StopBot(c *gin.Context) {
	convID, okk := conversationFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}

	var req stopBotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "conversation id is required")
		return
	}
	if req.ConversationID != convID {
		common.Fail(c, http.StatusNotFound, 40404, "conversation not found")
		return
	}

	if err := h.ChatSvc.StopBot(c.Request.Context(), convID, req.AgentID); err != nil {
		log.Printf("[StopBot] failed conversation_id=%s err=%v", convID, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to stop bot")
		return
	}
	common.OK(c, gin.H{"stopped": true})
}

// StreamEvents is the subscribe surface for widget clients: an SSE stream of
// the conversation snapshot followed by live change events.
func (h *Handler) StreamEvents(c *gin.Context) {
	convID, okk := conversationFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}
	if c.Param("conversation_id") != convID {
		common.Fail(c, http.StatusNotFound, 40404, "conversation not found")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ctx := c.Request.Context()

	events := make(chan chat.Event, 64)
	cancel, err := h.Store.Subscribe(ctx, convID, func(ev chat.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		writeJSON("error", gin.H{"type": "error", "message": "subscribe failed"})
		return
	}
	defer cancel()

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			writeJSON(string(ev.Type), ev)

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case <-ctx.Done():
			return
		}
	}
}
