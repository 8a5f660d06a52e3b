package handlers

import (
	"context"
	"strings"

	"github.com/UnuProxy/JYE-MainWeb/internal/ai"
	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"github.com/UnuProxy/JYE-MainWeb/internal/config"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Cfg     config.Config
	Store   *chat.Store
	ChatSvc *chat.Service
}

func NewHandler(cfg config.Config, store *chat.Store, leads chat.LeadPublisher) *Handler {
	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	model := cfg.OpenAIModel
	if strings.EqualFold(cfg.AIProvider, "ollama") {
		model = cfg.OllamaModel
	}
	svc := chat.NewService(store, reg, cfg.AIProvider, model, cfg.SystemPrompt, cfg.ChatContextWindowSize, leads)

	return &Handler{Cfg: cfg, Store: store, ChatSvc: svc}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"code": 0, "message": "pong", "data": nil})
}
