package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"github.com/gin-gonic/gin"
)

type saveDetailsReq struct {
	FullName       string `json:"fullName"`
	PhoneNumber    string `json:"phoneNumber"`
	ConversationID string `json:"conversationId"`
}

// SaveDetails captures a visitor contact and queues it for the back-office
// webhook. Validation failures reject at the door with nothing persisted.
func (h *Handler) SaveDetails(c *gin.Context) {
	var req saveDetailsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.PhoneNumber) == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "full name and phone number are required")
		return
	}

	lead, err := h.ChatSvc.SaveLead(c.Request.Context(), req.FullName, req.PhoneNumber, req.ConversationID)
	if err != nil {
		if lead != nil {
			// stored but not enqueued; the row can be re-driven later
			log.Printf("[SaveDetails] enqueue failed lead_id=%d err=%v", lead.ID, err)
			common.OK(c, gin.H{"success": true})
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to save details")
		return
	}

	common.OK(c, gin.H{"success": true})
}
