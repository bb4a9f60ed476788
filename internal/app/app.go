package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"proctorcam/internal/alert"
	"proctorcam/internal/config"
	"proctorcam/internal/logger"
	"proctorcam/internal/metrics"
	"proctorcam/internal/oracle"
	"proctorcam/internal/routes"
	"proctorcam/internal/service/enrichment"
	"proctorcam/internal/service/pipeline"
	"proctorcam/internal/service/stream"
	wshub "proctorcam/internal/service/websocket"
	"proctorcam/internal/vision"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	camera   *vision.Camera
	analyzer *vision.CascadeAnalyzer
	enricher *enrichment.Enricher
	hub      *wshub.HubService
	monitor  *pipeline.Monitor[*vision.Frame]

	// background loops started by Run; all of them have returned before
	// Run does.
	background []func(ctx context.Context)
}

// NewApp opens the camera, loads the cascades and wires the session.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	analyzer, err := vision.NewCascadeAnalyzer(
		cfg.FaceCascadePath,
		cfg.EyeCascadePath,
		vision.DetectorParams{ScaleFactor: cfg.FaceScaleFactor, MinNeighbors: cfg.FaceMinNeighbors},
		vision.DetectorParams{ScaleFactor: cfg.EyeScaleFactor, MinNeighbors: cfg.EyeMinNeighbors},
	)
	if err != nil {
		return nil, err
	}

	camera, err := vision.OpenCamera(cfg.CameraIndex, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		analyzer.Close()
		return nil, err
	}

	m := metrics.New()
	hub := wshub.NewHubService(logger)

	a := &App{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		camera:   camera,
		analyzer: analyzer,
		hub:      hub,
	}

	var remote pipeline.Enrichment
	if cfg.OracleAPIKey == "" {
		logger.Warning("⚠️  ORACLE_API_KEY is empty - remote object detection disabled")
	} else {
		client := oracle.NewClient(OracleConfig(cfg), logger)
		a.enricher = enrichment.New(EnrichmentConfig(cfg), client, logger, m)
		remote = a.enricher
	}

	monitor, err := pipeline.New[*vision.Frame](
		camera,
		analyzer,
		vision.NewRenderer(cfg.JPEGQuality),
		remote,
		pipeline.WithAlertConfig(AlertConfig(cfg)),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithEventSink(hub),
		pipeline.WithBroadcaster(stream.NewBroadcaster(logger, m)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.monitor = monitor

	a.background = append(a.background, hub.Run)
	if a.enricher != nil {
		a.background = append(a.background, func(ctx context.Context) { a.enricher.Run(ctx) })
	}
	a.background = append(a.background, func(ctx context.Context) {
		err := monitor.Run(ctx)
		if errors.Is(err, pipeline.ErrStreamEnded) {
			a.logger.Error("Session ended: %v - status endpoints stay available", err)
		}
	})

	return a, nil
}

// Run starts the background services and serves HTTP until ctx is done.
// A capture failure ends the session but the server keeps answering.
// Run returns only after every background loop has stopped, so Close may
// release the camera and classifiers right after.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	for _, run := range a.background {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	router := routes.SetupRoutes(a.monitor, a.hub, a.metrics, a.config, a.logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	fmt.Printf("🚀 Proctoring Monitor\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Camera: %d (%dx%d)\n", a.config.CameraIndex, a.config.FrameWidth, a.config.FrameHeight)
	if a.enricher != nil {
		fmt.Printf("🤖 Remote model: %s every %s\n", a.config.OracleModel, a.config.OracleInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Close releases the camera and the classifiers.
func (a *App) Close() error {
	var firstErr error
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			firstErr = err
		}
	}
	if a.analyzer != nil {
		if err := a.analyzer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AlertConfig maps process configuration to engine settings.
func AlertConfig(cfg *config.Config) alert.Config {
	c := alert.DefaultConfig()
	c.AbsenceThreshold = cfg.AbsenceThreshold
	c.IntruderThreshold = cfg.IntruderThreshold
	c.AttentionThreshold = cfg.AttentionThreshold
	c.ObjectMinConfidence = cfg.ObjectMinConfidence
	c.ObjectMinArea = cfg.ObjectMinArea
	c.Attention = alert.AttentionPolicy(cfg.AttentionPolicy)
	return c
}

// OracleConfig maps process configuration to the detector client.
func OracleConfig(cfg *config.Config) oracle.Config {
	return oracle.Config{
		Endpoint:   cfg.OracleEndpoint,
		Model:      cfg.OracleModel,
		APIKey:     cfg.OracleAPIKey,
		Confidence: cfg.OracleConfidence,
		Overlap:    cfg.OracleOverlap,
		Timeout:    cfg.OracleTimeout,
	}
}

// EnrichmentConfig maps process configuration to the polling loop.
func EnrichmentConfig(cfg *config.Config) enrichment.Config {
	return enrichment.Config{
		InputSize:  cfg.OracleInputSize,
		Interval:   cfg.OracleInterval,
		Timeout:    cfg.OracleTimeout,
		BackoffMax: cfg.OracleBackoffMax,
	}
}
