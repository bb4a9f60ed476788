package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"proctorcam/internal/logger"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves the log file for :level as text/plain.
func ShowLogsHandler(l *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		filename, ok := logFiles[ctx.Param("level")]
		if !ok {
			ctx.String(http.StatusNotFound, "Unknown log level: %s", ctx.Param("level"))
			return
		}
		serveLogFile(ctx, l.Dir(), filename)
	}
}

// ClearLogsHandler truncates the log file for :level.
func ClearLogsHandler(l *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		filename, ok := logFiles[ctx.Param("level")]
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown log level"})
			return
		}
		if err := l.CleanLogs(filename); err != nil {
			l.Error("Failed to clear %s: %v", filename, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"cleared": filename})
	}
}

// serveLogFile sets headers and serves a log file if it exists.
func serveLogFile(ctx *gin.Context, logDir, filename string) {
	if logDir == "" {
		ctx.String(http.StatusNotFound, "Log file not found: %s", filename)
		return
	}

	filePath := filepath.Join(logDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		ctx.String(http.StatusNotFound, "Log file not found: %s", filename)
		return
	}

	ctx.Header("Content-Type", "text/plain; charset=utf-8")
	ctx.Header("Cache-Control", "no-cache")
	http.ServeFile(ctx.Writer, ctx.Request, filePath)
}
