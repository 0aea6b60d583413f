// Package openaiservice talks to an OpenAI-compatible model API for chat
// completions and image generation, and builds the prompts the wizard sends.
package openaiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/rs/zerolog"
)

// --- API configuration ---
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultChatModel  = "gpt-4o"
	DefaultImageModel = "dall-e-3"
	DefaultMaxTokens  = 1000
	DefaultTimeout    = 60 * time.Second

	// DefaultMaxImageBytes bounds a downloaded image.
	DefaultMaxImageBytes int64 = 20 << 20

	DefaultTemperature = 0.7

	maxErrorBody = 2048
)

// Config is the connection and model setup for the gateway.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	MaxTokens  int
	Timeout    time.Duration

	MaxImageBytes int64
}

// ImageOptions are passed through to the image generation endpoint.
type ImageOptions struct {
	Size    string
	Quality string
	Style   string
}

// DefaultImageOptions is a square, high detail, vivid image.
var DefaultImageOptions = ImageOptions{Size: "1024x1024", Quality: "hd", Style: "vivid"}

// Gateway is what the wizard pages need from the model API.
type Gateway interface {
	GenerateText(ctx context.Context, prompt string, history []wizard.Message, temperature float64) Result
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) Result
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Client is the HTTP implementation of Gateway. Each call makes exactly one
// request; there is no retry or backoff.
type Client struct {
	cfg        Config
	persona    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// New builds a client. persona is sent as the system message of every chat call.
func New(cfg Config, persona string, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	return &Client{
		cfg:        cfg,
		persona:    persona,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool { return c.cfg.APIKey != "" }

// --- Wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateText sends the persona, history and prompt to the chat endpoint
// and returns the first choice's content.
func (c *Client) GenerateText(ctx context.Context, prompt string, history []wizard.Message, temperature float64) Result {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: c.persona})
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload := chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	start := time.Now()
	var resp chatResponse
	err := c.call(ctx, "/chat/completions", payload, &resp)
	if err == nil && (len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "") {
		err = ErrEmptyResponse
	}
	c.record(ctx, "text", start, err)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: resp.Choices[0].Message.Content}
}

// GenerateImage asks for one image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) Result {
	if opts.Size == "" {
		opts.Size = DefaultImageOptions.Size
	}
	payload := imageRequest{
		Model:   c.cfg.ImageModel,
		Prompt:  prompt,
		N:       1,
		Size:    opts.Size,
		Quality: opts.Quality,
		Style:   opts.Style,
	}

	start := time.Now()
	var resp imageResponse
	err := c.call(ctx, "/images/generations", payload, &resp)
	if err == nil && (len(resp.Data) == 0 || resp.Data[0].URL == "") {
		err = ErrEmptyResponse
	}
	c.record(ctx, "image", start, err)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: resp.Data[0].URL}
}

// Text generates with the Degrade policy: failures come back as placeholder text.
func Text(ctx context.Context, g Gateway, prompt string, history []wizard.Message, temperature float64) string {
	v, _ := g.GenerateText(ctx, prompt, history, temperature).Resolve(Degrade)
	return v
}

// Image generates with the Propagate policy: failures come back as errors.
func Image(ctx context.Context, g Gateway, prompt string, opts ImageOptions) (string, error) {
	return g.GenerateImage(ctx, prompt, opts).Resolve(Propagate)
}

// call performs one authenticated JSON POST and decodes the 2xx body into out.
func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	if c.cfg.APIKey == "" {
		return ErrMissingCredential
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	zerolog.Ctx(ctx).Info().Str("path", path).Msg("calling model API")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) record(ctx context.Context, kind string, start time.Time, err error) {
	elapsed := time.Since(start)
	c.metrics.ObserveGeneration(kind, outcome(err), elapsed)

	logger := zerolog.Ctx(ctx)
	if err != nil {
		logger.Error().Err(err).Str("kind", kind).Dur("elapsed", elapsed).Msg("generation call failed")
		return
	}
	logger.Info().Str("kind", kind).Dur("elapsed", elapsed).Msg("generation call succeeded")
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "transport"
	}
}

// FetchImage downloads a generated image, typically for embedding in the report.
func (c *Client) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "image download failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > c.cfg.MaxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrImageTooLarge, c.cfg.MaxImageBytes)
	}
	return data, nil
}
