package routes

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"proctorcam/internal/config"
	"proctorcam/internal/handler"
	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/middleware"
	wshub "proctorcam/internal/service/websocket"
)

// SetupRoutes registers the page, the video stream, the status API, the
// alert websocket, metrics and the log viewer.
func SetupRoutes(monitor handler.SessionMonitor, hub *wshub.HubService, m *metrics.Metrics, cfg *config.Config, logger *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger, "/alert_status", "/metrics"))

	// Page and static files
	index := filepath.Join(cfg.StaticDirectory, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.StaticFile("/", index)
	} else {
		logger.Warning("No index page at %s", index)
	}
	r.Static("/static", cfg.StaticDirectory)

	// Stream and status
	r.GET("/video_feed", handler.VideoFeedHandler(monitor, logger))
	r.GET("/alert_status", handler.AlertStatusHandler(monitor))

	api := r.Group("/api")
	api.GET("/session", handler.SessionHandler(monitor))
	api.POST("/session/reset", handler.ResetSessionHandler(monitor, logger))

	r.GET("/ws/alerts", handler.AlertsWebsocketHandler(hub, monitor, logger))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// Log endpoints
	r.GET("/logs/:level", handler.ShowLogsHandler(logger))
	r.POST("/logs/:level/clear", handler.ClearLogsHandler(logger))

	return r
}
