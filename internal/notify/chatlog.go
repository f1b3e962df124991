// Package notify delivers completed question/answer pairs to an external chat log.
package notify

import (
	"context"
	"sync"
	"time"

	"lexchat-backend/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is used when NewChatLogger receives a non-positive size.
const DefaultQueueSize = 256

// Entry is the payload posted to the chat log endpoint.
type Entry struct {
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
	UserID   *uuid.UUID `json:"userId"`
}

// ChatLogger posts entries from a bounded queue on a single worker.
// Delivery is at most once: full queue, network errors and non-2xx answers all drop the entry.
type ChatLogger struct {
	http  *resty.Client
	url   string
	queue chan Entry
	done  chan struct{}
	log   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChatLogger starts the delivery worker. An empty url yields a disabled logger.
func NewChatLogger(url string, queueSize int, timeout time.Duration, log zerolog.Logger) *ChatLogger {
	c := &ChatLogger{
		url:  url,
		done: make(chan struct{}),
		log:  log.With().Str("component", "chat_log").Logger(),
	}
	if url == "" {
		close(c.done)
		return c
	}

	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	c.queue = make(chan Entry, queueSize)
	c.http = resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	go c.run()
	return c
}

// Enabled reports whether entries are delivered anywhere.
func (c *ChatLogger) Enabled() bool {
	return c != nil && c.queue != nil
}

// Notify enqueues e without blocking. It returns false when the entry was not accepted.
func (c *ChatLogger) Notify(e Entry) bool {
	if !c.Enabled() {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.queue <- e:
		return true
	default:
		metrics.ChatLogDroppedTotal.Inc()
		c.log.Warn().Msg("chat log queue full, entry dropped")
		return false
	}
}

// Close stops accepting entries and waits for queued ones to be sent or ctx to end.
func (c *ChatLogger) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if c.queue != nil {
			close(c.queue)
		}
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ChatLogger) run() {
	defer close(c.done)
	for e := range c.queue {
		c.send(e)
	}
}

func (c *ChatLogger) send(e Entry) {
	resp, err := c.http.R().SetBody(e).Post(c.url)
	if err != nil {
		c.log.Warn().Err(err).Msg("chat log delivery failed")
		return
	}
	if resp.IsError() {
		c.log.Warn().Int("status", resp.StatusCode()).Msg("chat log endpoint rejected entry")
	}
}
