package httpapi

import (
	"net/http"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"github.com/UnuProxy/JYE-MainWeb/internal/config"
	"github.com/UnuProxy/JYE-MainWeb/internal/httpapi/handlers"
	"github.com/UnuProxy/JYE-MainWeb/internal/httpapi/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg config.Config, store *chat.Store, leads chat.LeadPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(cfg, store, leads)

	r.GET("/ping", h.Ping)

	// widget bootstrap (issues the session token) and lead capture
	r.GET("/widget-config", h.WidgetConfig)
	r.POST("/save-details", h.SaveDetails)

	// conversation-bound endpoints (session token required)
	sessionGroup := r.Group("/")
	sessionGroup.Use(middleware.SessionRequired(cfg.JWTSecret))
	sessionGroup.POST("/chat", h.Chat)
	sessionGroup.POST("/stop-bot", h.StopBot)
	sessionGroup.GET("/conversations/:conversation_id/events", h.StreamEvents)

	return r
}
