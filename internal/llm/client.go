// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"lexchat-backend/internal/metrics"
	"lexchat-backend/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// ErrUpstream wraps every failure of the completion call: timeout, network error
// or a non-success response.
var ErrUpstream = errors.New("completion upstream error")

// NoContent is returned as the answer when the upstream reply carries no text.
const NoContent = "[no content]"

const completionsPath = "/chat/completions"

// Completer generates the assistant reply for a user message.
type Completer interface {
	Ask(ctx context.Context, message string, history []models.HistoryMessage) (string, error)
}

// Config configures Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string
	Timeout time.Duration
}

// Client is a Resty-backed Completer.
type Client struct {
	http    *resty.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

var _ Completer = (*Client)(nil)

// NewClient creates a completion client. A non-positive timeout means one minute.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)
	if cfg.Referer != "" {
		httpClient.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		httpClient.SetHeader("X-Title", cfg.Title)
	}

	return &Client{
		http:    httpClient,
		model:   cfg.Model,
		timeout: timeout,
		log:     log.With().Str("component", "llm_client").Logger(),
	}
}

// Ask sends the history (chronological, ending with the user message) to the model.
// Cancellation of ctx is not propagated; only the client timeout bounds the call.
func (c *Client) Ask(ctx context.Context, message string, history []models.HistoryMessage) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: buildMessages(message, history),
	}

	started := time.Now()
	var completion openai.ChatCompletionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&completion).
		Post(completionsPath)
	if err != nil {
		metrics.CompletionDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		metrics.CompletionDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode(), truncate(resp.String(), 400))
	}
	metrics.CompletionDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())

	c.log.Debug().
		Str("model", c.model).
		Int("prompt_tokens", completion.Usage.PromptTokens).
		Int("completion_tokens", completion.Usage.CompletionTokens).
		Dur("latency", time.Since(started)).
		Msg("completion received")

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return NoContent, nil
	}
	return completion.Choices[0].Message.Content, nil
}

// buildMessages converts the history and makes sure message is the final user turn.
func buildMessages(message string, history []models.HistoryMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, h := range history {
		out = append(out, openai.ChatCompletionMessage{Role: string(h.Role), Content: h.Content})
	}

	n := len(history)
	if n == 0 || history[n-1].Role != models.RoleUser || history[n-1].Content != message {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
