package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"proctorcam/internal/logger"
)

// RequestLogger logs every finished request. Polling endpoints are logged
// only on failure so they do not flood info.log.
func RequestLogger(l *logger.Logger, quietPaths ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		path := ctx.Request.URL.Path
		latency := time.Since(start)

		switch {
		case status >= 500:
			l.Error("%s %s -> %d (%s)", ctx.Request.Method, path, status, latency)
		case status >= 400:
			l.Warning("%s %s -> %d (%s)", ctx.Request.Method, path, status, latency)
		case !isQuiet(path, quietPaths):
			l.Info("%s %s -> %d (%s)", ctx.Request.Method, path, status, latency)
		}
	}
}

func isQuiet(path string, quietPaths []string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
