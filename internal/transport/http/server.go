package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireplan-server/internal/config"
)

// NewServer builds the HTTP server: health, WebSocket endpoint and read-only REST API.
// rounds may be nil when the archive is disabled.
func NewServer(hub Hub, rounds RoundLister, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	ws := NewWSHandler(hub, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		EventBuffer:        cfg.EventBuffer,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	api := NewAPIHandlers(hub, rounds, logger)
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rooms", api.ListRooms)
		apiGroup.GET("/rounds", api.ListRounds)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
