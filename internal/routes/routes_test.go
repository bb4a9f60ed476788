package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"proctorcam/internal/config"
	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/service/pipeline"
	wshub "proctorcam/internal/service/websocket"
)

type stubMonitor struct{}

func (stubMonitor) Status() pipeline.Status {
	return pipeline.Status{Status: "ok", Timestamp: time.Now()}
}
func (stubMonitor) Session() pipeline.Session { return pipeline.Session{ID: "abc"} }
func (stubMonitor) Reset() pipeline.Session   { return pipeline.Session{ID: "def"} }
func (stubMonitor) Subscribe() (int, <-chan []byte) {
	ch := make(chan []byte)
	close(ch)
	return 0, ch
}
func (stubMonitor) Unsubscribe(int) {}

func setupServer(t *testing.T) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>monitor</h1>"), 0644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}

	l := logger.Discard()
	hub := wshub.NewHubService(l)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	m := metrics.New()
	cfg := &config.Config{StaticDirectory: static}
	server := httptest.NewServer(SetupRoutes(stubMonitor{}, hub, m, cfg, l))

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestSetupRoutes_Endpoints(t *testing.T) {
	server, m := setupServer(t)
	m.FrameProcessed()

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/", http.StatusOK, "monitor"},
		{"/alert_status", http.StatusOK, `"status":"ok"`},
		{"/api/session", http.StatusOK, `"id":"abc"`},
		{"/metrics", http.StatusOK, "proctor_frames_processed_total 1"},
		{"/logs/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, server.URL+tt.path)
			if code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, code)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("Expected body to contain %q, got %q", tt.contains, body)
			}
		})
	}
}

func TestSetupRoutes_ResetIsPostOnly(t *testing.T) {
	server, _ := setupServer(t)

	if code, _ := get(t, server.URL+"/api/session/reset"); code == http.StatusOK {
		t.Error("Expected GET on reset to be rejected")
	}

	resp, err := http.Post(server.URL+"/api/session/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestSetupRoutes_AlertSocketGreets(t *testing.T) {
	server, _ := setupServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read greeting: %v", err)
	}

	var event pipeline.Event
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("Failed to decode greeting: %v", err)
	}
	if event.Type != pipeline.EventStatus || event.SessionID != "abc" {
		t.Errorf("Unexpected greeting: %+v", event)
	}
}
