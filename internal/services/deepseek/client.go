package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.deepseek.com"
	defaultModel       = "deepseek-chat"
	defaultHTTPTimeout = 120 * time.Second
)

// Drafter turns the subject description and style bible into a storyboard:
// a JSON array of segment objects.
type Drafter interface {
	DraftStoryboard(ctx context.Context, req DraftRequest) (string, error)
}

// DraftRequest carries everything the storyboard prompt needs.
type DraftRequest struct {
	Prompt            string
	Description       string
	StyleBible        string
	TargetDurationSec int
	SegmentCount      int
	MaxSegmentSec     float64
	// Feedback holds quality-gate rejections from earlier drafts, oldest
	// first. The drafter folds them into the prompt.
	Feedback []string
}

// Client wraps the DeepSeek chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the DeepSeek client.
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

// NewClient constructs a DeepSeek API client.
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

// DraftStoryboard asks DeepSeek for a storyboard and returns the cleaned JSON
// array text. Parsing and validation belong to the caller.
func (c *Client) DraftStoryboard(ctx context.Context, req DraftRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("deepseek draft: api key required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return "", errors.New("deepseek draft: description required")
	}

	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
		Temperature: 0.7,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("deepseek draft: encode request: %w", err)
	}
	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("deepseek draft: build url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("deepseek draft: request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepseek draft: request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepseek draft: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("deepseek draft: http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(payload, &completion); err != nil {
		return "", fmt.Errorf("deepseek draft: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("deepseek draft: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("deepseek draft: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("deepseek draft: empty content")
	}
	return CleanJSON(content), nil
}

// CleanJSON strips markdown code fences and extracts the JSON root from chat
// output. Models routinely wrap JSON in prose or fences; an array root wins
// over an object root.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) >= 3 {
			s = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start != -1 && end > start {
		return s[start : end+1]
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

const systemPrompt = `You are a storyboard planner for short pet videos. ` +
	`Respond with a JSON array only. Each element describes one segment with fields: ` +
	`id (1-based int), duration_sec (number), style, shot, camera, story, ` +
	`props_bg (array of strings), end_anchor (object with pose, facing, expression, ` +
	`prop_state, position_hint_norm) and consistency_flags (array of strings). ` +
	`Adjacent segments must flow into each other through the end anchors.`

func buildUserPrompt(req DraftRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User prompt: %s\n", strings.TrimSpace(req.Prompt))
	fmt.Fprintf(&b, "Subject description:\n%s\n", strings.TrimSpace(req.Description))
	if style := strings.TrimSpace(req.StyleBible); style != "" {
		fmt.Fprintf(&b, "Style bible:\n%s\n", style)
	}
	fmt.Fprintf(&b, "Target duration: %d seconds across exactly %d segments.\n", req.TargetDurationSec, req.SegmentCount)
	if req.MaxSegmentSec > 0 {
		fmt.Fprintf(&b, "No segment may exceed %.1f seconds.\n", req.MaxSegmentSec)
	}
	if len(req.Feedback) > 0 {
		b.WriteString("Earlier drafts were rejected for these reasons; fix all of them:\n")
		for _, feedback := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", feedback)
		}
	}
	return b.String()
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
