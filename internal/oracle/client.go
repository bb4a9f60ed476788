// Package oracle talks to the remote object detector.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"proctorcam/internal/logger"
	"proctorcam/internal/model"
)

var (
	// ErrMalformed is returned when the response body cannot be understood.
	ErrMalformed = errors.New("malformed detector response")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("unexpected detector status")
)

const maxErrorBody = 512

// Config describes how to reach the detector.
type Config struct {
	Endpoint   string // base URL, e.g. https://detect.roboflow.com
	Model      string // model id appended to the endpoint path
	APIKey     string
	Confidence int // percent, applied by the detector
	Overlap    int // percent, applied by the detector
	Timeout    time.Duration
}

// Client submits JPEG images and decodes the returned predictions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a detector client. The HTTP timeout bounds every call.
func NewClient(cfg Config, logger *logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// URL returns the fully qualified request URL including query parameters.
func (c *Client) URL() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.Endpoint, "/") + "/" + strings.TrimLeft(c.cfg.Model, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid detector endpoint: %w", err)
	}

	q := base.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("confidence", strconv.Itoa(c.cfg.Confidence))
	q.Set("overlap", strconv.Itoa(c.cfg.Overlap))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Detect uploads one JPEG and returns the decoded predictions.
func (c *Client) Detect(ctx context.Context, jpeg []byte) ([]model.Prediction, error) {
	target, err := c.URL()
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartBody(jpeg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	predictions, skipped, err := Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 && c.logger != nil {
		c.logger.Warning("Skipped %d malformed prediction(s) from detector", skipped)
	}
	return predictions, nil
}

func multipartBody(jpeg []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
