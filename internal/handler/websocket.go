package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"proctorcam/internal/logger"
	"proctorcam/internal/service/pipeline"
	wshub "proctorcam/internal/service/websocket"
)

const viewerReadTimeout = 60 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AlertsWebsocketHandler registers the viewer in the hub. The current status
// is sent first, then every alert and session event.
func AlertsWebsocketHandler(hub *wshub.HubService, monitor SessionMonitor, logger *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		connection, err := Upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
			return nil
		})

		greeting, err := json.Marshal(pipeline.Event{
			Type:      pipeline.EventStatus,
			SessionID: monitor.Session().ID,
			Status:    monitor.Status(),
		})
		if err != nil {
			logger.Error("Failed to encode greeting: %v", err)
			greeting = nil
		}

		hub.Register(connection, greeting)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Alert viewer disconnected normally")
				} else {
					logger.Info("Alert viewer disconnected: %v", err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		}
	}
}
