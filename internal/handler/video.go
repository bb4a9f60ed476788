package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"proctorcam/internal/logger"
	"proctorcam/internal/service/stream"
)

// VideoFeedHandler streams annotated frames as MJPEG until the session ends
// or the client goes away.
func VideoFeedHandler(monitor SessionMonitor, logger *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, frames := monitor.Subscribe()
		defer monitor.Unsubscribe(id)

		ctx.Header("Content-Type", stream.ContentType)
		ctx.Header("Cache-Control", "no-cache")
		ctx.Status(http.StatusOK)
		ctx.Writer.WriteHeaderNow()
		ctx.Writer.Flush()

		err := stream.Serve(ctx.Request.Context(), ctx.Writer, ctx.Writer.Flush, frames)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Info("Video viewer disconnected: %v", err)
		}
	}
}
