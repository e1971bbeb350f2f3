// Package llm talks to an Anthropic-compatible Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/pario-ai/fcagent/pkg/config"
	"github.com/pario-ai/fcagent/pkg/models"
)

const messagesPath = "/v1/messages"

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, p models.Prompt) (models.Completion, error)
}

// Client is a Completer backed by the Messages API.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
	log  *zap.Logger
}

// New creates a Client. A nil logger disables logging.
func New(cfg config.LLMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends a single-turn prompt and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, p models.Prompt) (models.Completion, error) {
	if !c.Configured() {
		return models.Completion{}, errors.New(errors.CodeInvalidConfig, "llm api key is not configured")
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	body, err := json.Marshal(models.AnthropicRequest{
		Model:       c.cfg.Model,
		System:      p.System,
		Messages:    []models.ChatMessage{{Role: "user", Content: p.User}},
		MaxTokens:   maxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.cfg.AnthropicVersion,
	}
	result, err := c.doUpstreamRequest(ctx, messagesPath, headers, body)
	if err != nil {
		return models.Completion{}, errors.Wrap(err, errors.CodeNetwork, "llm request failed")
	}

	if result.statusCode < 200 || result.statusCode >= 300 {
		msg := upstreamMessage(result.body)
		c.log.Warn("llm request rejected",
			zap.Int("status", result.statusCode),
			zap.String("error", msg),
		)
		return models.Completion{}, errors.WithContextMap(
			errors.Newf(errors.CodeNetwork, "llm returned status %d: %s", result.statusCode, msg),
			map[string]interface{}{"status": result.statusCode},
		)
	}

	var resp models.AnthropicResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return models.Completion{}, errors.Wrap(err, errors.CodeNetwork, "decode llm response")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := models.Completion{
		Text:       text.String(),
		Model:      resp.Model,
		StopReason: resp.StopReason,
	}
	if resp.Usage != nil {
		out.Usage = *resp.Usage
	}
	c.log.Debug("llm completion",
		zap.String("model", out.Model),
		zap.Int("input_tokens", out.Usage.InputTokens),
		zap.Int("output_tokens", out.Usage.OutputTokens),
	)
	return out, nil
}

type upstreamResult struct {
	statusCode int
	body       []byte
}

func (c *Client) doUpstreamRequest(ctx context.Context, path string, headers map[string]string, body []byte) (*upstreamResult, error) {
	target, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid llm URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(target.String(), "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &upstreamResult{statusCode: resp.StatusCode, body: respBody}, nil
}

func upstreamMessage(body []byte) string {
	var e models.AnthropicError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}
