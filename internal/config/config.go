package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration. Every key can come from the
// environment (upper-case name), a .env file or an optional config file.
//
// The three alert thresholds count processed frames, so their real-time
// meaning depends on the frame rate the capture loop achieves.
type Config struct {
	Port            int
	LogDirectory    string
	StaticDirectory string

	CameraIndex int
	FrameWidth  int
	FrameHeight int
	JPEGQuality int

	FaceCascadePath  string
	EyeCascadePath   string
	FaceScaleFactor  float64
	FaceMinNeighbors int
	EyeScaleFactor   float64
	EyeMinNeighbors  int

	OracleEndpoint   string
	OracleModel      string
	OracleAPIKey     string
	OracleConfidence int // percent, forwarded to the detector
	OracleOverlap    int // percent, forwarded to the detector
	OracleInputSize  int
	OracleInterval   time.Duration
	OracleTimeout    time.Duration
	OracleBackoffMax time.Duration // 0 disables backoff

	AbsenceThreshold    int
	IntruderThreshold   int
	AttentionThreshold  int
	ObjectMinConfidence float64
	ObjectMinArea       int
	AttentionPolicy     string
}

var defaults = map[string]interface{}{
	"port":                  8080,
	"log_dir":               filepath.Join(".", "logs"),
	"static_dir":            filepath.Join(".", "static"),
	"camera_index":          0,
	"frame_width":           640,
	"frame_height":          480,
	"jpeg_quality":          80,
	"face_cascade":          filepath.Join(".", "data", "haarcascade_frontalface_default.xml"),
	"eye_cascade":           filepath.Join(".", "data", "haarcascade_eye.xml"),
	"face_scale_factor":     1.1,
	"face_min_neighbors":    5,
	"eye_scale_factor":      1.1,
	"eye_min_neighbors":     4,
	"oracle_endpoint":       "https://detect.roboflow.com",
	"oracle_model":          "interview-dxisb/3",
	"oracle_api_key":        "",
	"oracle_confidence":     60,
	"oracle_overlap":        30,
	"oracle_input_size":     640,
	"oracle_interval":       4 * time.Second,
	"oracle_timeout":        3 * time.Second,
	"oracle_backoff_max":    time.Duration(0),
	"absence_threshold":     10,
	"intruder_threshold":    10,
	"attention_threshold":   15,
	"object_min_confidence": 0.85,
	"object_min_area":       5000,
	"attention_policy":      "any",
}

// Load reads .env (if present), applies defaults, environment variables and
// an optional config file. An empty configFile looks for ./config.yaml and
// ignores it when missing. A nil v uses a fresh viper instance.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if v == nil {
		v = viper.New()
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Port:            v.GetInt("port"),
		LogDirectory:    v.GetString("log_dir"),
		StaticDirectory: v.GetString("static_dir"),

		CameraIndex: v.GetInt("camera_index"),
		FrameWidth:  v.GetInt("frame_width"),
		FrameHeight: v.GetInt("frame_height"),
		JPEGQuality: v.GetInt("jpeg_quality"),

		FaceCascadePath:  v.GetString("face_cascade"),
		EyeCascadePath:   v.GetString("eye_cascade"),
		FaceScaleFactor:  v.GetFloat64("face_scale_factor"),
		FaceMinNeighbors: v.GetInt("face_min_neighbors"),
		EyeScaleFactor:   v.GetFloat64("eye_scale_factor"),
		EyeMinNeighbors:  v.GetInt("eye_min_neighbors"),

		OracleEndpoint:   v.GetString("oracle_endpoint"),
		OracleModel:      v.GetString("oracle_model"),
		OracleAPIKey:     v.GetString("oracle_api_key"),
		OracleConfidence: v.GetInt("oracle_confidence"),
		OracleOverlap:    v.GetInt("oracle_overlap"),
		OracleInputSize:  v.GetInt("oracle_input_size"),
		OracleInterval:   v.GetDuration("oracle_interval"),
		OracleTimeout:    v.GetDuration("oracle_timeout"),
		OracleBackoffMax: v.GetDuration("oracle_backoff_max"),

		AbsenceThreshold:    v.GetInt("absence_threshold"),
		IntruderThreshold:   v.GetInt("intruder_threshold"),
		AttentionThreshold:  v.GetInt("attention_threshold"),
		ObjectMinConfidence: v.GetFloat64("object_min_confidence"),
		ObjectMinArea:       v.GetInt("object_min_area"),
		AttentionPolicy:     v.GetString("attention_policy"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d outside 1..100", c.JPEGQuality)
	}
	if c.FaceScaleFactor <= 1 || c.EyeScaleFactor <= 1 {
		return fmt.Errorf("cascade scale factors must be greater than 1")
	}
	if c.FaceMinNeighbors < 0 || c.EyeMinNeighbors < 0 {
		return fmt.Errorf("cascade min neighbors must not be negative")
	}
	if c.OracleInputSize <= 0 {
		return fmt.Errorf("invalid detector input size %d", c.OracleInputSize)
	}
	if c.OracleInterval <= 0 {
		return fmt.Errorf("detector interval must be positive")
	}
	if c.OracleTimeout <= 0 || c.OracleTimeout >= c.OracleInterval {
		return fmt.Errorf("detector timeout %s must be positive and shorter than the interval %s", c.OracleTimeout, c.OracleInterval)
	}
	if c.OracleBackoffMax < 0 {
		return fmt.Errorf("detector backoff must not be negative")
	}
	if c.AbsenceThreshold <= 0 || c.IntruderThreshold <= 0 || c.AttentionThreshold <= 0 {
		return fmt.Errorf("alert thresholds must be positive")
	}
	switch c.AttentionPolicy {
	case "any", "per_face":
	default:
		return fmt.Errorf("unknown attention policy %q", c.AttentionPolicy)
	}
	return nil
}
