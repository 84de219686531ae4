package qwen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel       = "qwen-vl-plus"
	generationPath     = "/services/aigc/multimodal-generation/generation"
	defaultHTTPTimeout = 60 * time.Second
)

// Describer produces a compact visual description of the subject from
// reference images plus the user's prompt.
type Describer interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}

// DescribeRequest carries the reference images and the originating prompt.
type DescribeRequest struct {
	Prompt     string
	ImagePaths []string
}

// Client wraps the DashScope Qwen-VL multimodal API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the Qwen client.
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

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs a Qwen-VL API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
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

// Describe sends the reference images to Qwen-VL and returns the model's
// description of the subject.
func (c *Client) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("qwen describe: api key required")
	}
	if len(req.ImagePaths) == 0 {
		return "", errors.New("qwen describe: at least one reference image required")
	}

	content := make([]map[string]string, 0, len(req.ImagePaths)+1)
	for _, path := range req.ImagePaths {
		encoded, err := encodeImage(path)
		if err != nil {
			return "", err
		}
		content = append(content, map[string]string{"image": encoded})
	}
	content = append(content, map[string]string{"text": buildPrompt(req.Prompt)})

	body := generationRequest{Model: c.model}
	body.Input.Messages = []message{{Role: "user", Content: content}}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("qwen describe: encode request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, generationPath)
	if err != nil {
		return "", fmt.Errorf("qwen describe: build url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("qwen describe: request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("qwen describe: request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("qwen describe: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("qwen describe: http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed generationResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("qwen describe: decode response: %w", err)
	}
	if parsed.Code != "" {
		return "", fmt.Errorf("qwen describe: api error %s: %s", parsed.Code, strings.TrimSpace(parsed.Message))
	}
	description := parsed.text()
	if description == "" {
		return "", errors.New("qwen describe: empty content")
	}
	return description, nil
}

func buildPrompt(origin string) string {
	origin = strings.TrimSpace(origin)
	lines := []string{
		"Describe this subject's stable visual identity for use as a cross-scene reference:",
		"species/breed impression, fur or skin coloring, eye color, distinctive markings,",
		"accessories, and overall body shape. Keep it under 120 words.",
	}
	if origin != "" {
		lines = append(lines, "User intent: "+origin)
	}
	return strings.Join(lines, " ")
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("qwen describe: read image %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

type generationRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
}

type message struct {
	Role    string              `json:"role"`
	Content []map[string]string `json:"content"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r generationResponse) text() string {
	for _, choice := range r.Output.Choices {
		for _, part := range choice.Message.Content {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}
