package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"proctorcam/internal/logger"
	"proctorcam/internal/service/pipeline"
)

// SessionMonitor is the part of the monitoring session the HTTP layer uses.
type SessionMonitor interface {
	Status() pipeline.Status
	Session() pipeline.Session
	Reset() pipeline.Session
	Subscribe() (int, <-chan []byte)
	Unsubscribe(id int)
}

// AlertStatusHandler returns the announced alert as
// {"message","status","timestamp"}.
func AlertStatusHandler(monitor SessionMonitor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Cache-Control", "no-cache")
		ctx.JSON(http.StatusOK, monitor.Status())
	}
}

// SessionHandler returns the full session snapshot.
func SessionHandler(monitor SessionMonitor) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, monitor.Session())
	}
}

// ResetSessionHandler starts a new session and returns it.
func ResetSessionHandler(monitor SessionMonitor, logger *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		session := monitor.Reset()
		logger.Info("Session reset requested by %s", ctx.ClientIP())
		ctx.JSON(http.StatusOK, session)
	}
}
