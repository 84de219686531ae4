package jimeng

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://visual.volcengineapi.com"
	imagePath          = "/api/v1/images/generations"
	videoPath          = "/api/v1/videos/generations"
	defaultHTTPTimeout = 300 * time.Second
)

// Synthesizer renders keyframe images and first/last-frame conditioned video
// segments.
type Synthesizer interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, string, error)
	GenerateVideo(ctx context.Context, req VideoRequest) ([]byte, string, error)
}

// ImageRequest describes one still-image synthesis call. ReferencePaths are
// local files conditioning the output: subject references for style frames,
// the previous keyframe for chained keyframes.
type ImageRequest struct {
	Prompt         string
	ReferencePaths []string
	Width          int
	Height         int
}

// VideoRequest describes one segment synthesis call conditioned on its first
// and last frame.
type VideoRequest struct {
	Prompt         string
	FirstFramePath string
	LastFramePath  string
	DurationSec    float64
	FPS            int
}

// Client wraps the Jimeng (Volcengine Visual) synthesis API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the Jimeng client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a Jimeng API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// GenerateImage renders a still image and returns its bytes plus the file
// extension reported by the service.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, "", errors.New("jimeng image: prompt required")
	}
	body := imageRequestBody{
		Prompt: req.Prompt,
		Width:  req.Width,
		Height: req.Height,
	}
	for _, path := range req.ReferencePaths {
		encoded, err := encodeFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("jimeng image: %w", err)
		}
		body.ReferenceImages = append(body.ReferenceImages, encoded)
	}
	return c.generate(ctx, imagePath, "jimeng image", body, "png")
}

// GenerateVideo renders a segment conditioned on its boundary frames and
// returns its bytes plus the file extension reported by the service.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) ([]byte, string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, "", errors.New("jimeng video: prompt required")
	}
	if req.FirstFramePath == "" || req.LastFramePath == "" {
		return nil, "", errors.New("jimeng video: first and last frame required")
	}
	first, err := encodeFile(req.FirstFramePath)
	if err != nil {
		return nil, "", fmt.Errorf("jimeng video: %w", err)
	}
	last, err := encodeFile(req.LastFramePath)
	if err != nil {
		return nil, "", fmt.Errorf("jimeng video: %w", err)
	}
	body := videoRequestBody{
		Prompt:      req.Prompt,
		FirstFrame:  first,
		LastFrame:   last,
		DurationSec: req.DurationSec,
		FPS:         req.FPS,
	}
	return c.generate(ctx, videoPath, "jimeng video", body, "mp4")
}

func (c *Client) generate(ctx context.Context, path, operation string, body any, defaultExt string) ([]byte, string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, "", fmt.Errorf("%s: api key required", operation)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: encode request: %w", operation, err)
	}
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: build url: %w", operation, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, "", fmt.Errorf("%s: request: %w", operation, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("%s: request failed: %w", operation, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: read body: %w", operation, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("%s: http %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed generationResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, "", fmt.Errorf("%s: decode response: %w", operation, err)
	}
	if parsed.Error != nil {
		return nil, "", fmt.Errorf("%s: api error %s: %s", operation, parsed.Error.Code, strings.TrimSpace(parsed.Error.Message))
	}
	if parsed.Data.B64 == "" {
		return nil, "", fmt.Errorf("%s: empty payload", operation)
	}
	data, err := base64.StdEncoding.DecodeString(parsed.Data.B64)
	if err != nil {
		return nil, "", fmt.Errorf("%s: decode payload: %w", operation, err)
	}
	ext := strings.TrimPrefix(strings.TrimSpace(parsed.Data.Ext), ".")
	if ext == "" {
		ext = defaultExt
	}
	return data, ext, nil
}

func encodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

type imageRequestBody struct {
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	Width           int      `json:"width,omitempty"`
	Height          int      `json:"height,omitempty"`
}

type videoRequestBody struct {
	Prompt      string  `json:"prompt"`
	FirstFrame  string  `json:"first_frame"`
	LastFrame   string  `json:"last_frame"`
	DurationSec float64 `json:"duration_sec"`
	FPS         int     `json:"fps"`
}

type generationResponse struct {
	Data struct {
		B64 string `json:"b64_data"`
		Ext string `json:"ext"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
