package services

import (
	"context"
	"fmt"
	"strings"

	"lexchat-backend/internal/llm"
	"lexchat-backend/internal/metrics"
	"lexchat-backend/internal/models"
	"lexchat-backend/internal/notify"

	"github.com/rs/zerolog"
)

// GuestChatService answers anonymous questions. Nothing is persisted.
type GuestChatService struct {
	llm      llm.Completer
	notifier ChatLogNotifier
	log      zerolog.Logger
}

func NewGuestChatService(completer llm.Completer, notifier ChatLogNotifier, log zerolog.Logger) *GuestChatService {
	return &GuestChatService{
		llm:      completer,
		notifier: notifier,
		log:      log.With().Str("component", "guest_chat_service").Logger(),
	}
}

// Reply asks the model without history. An empty message is answered with ok=false
// rather than an error. Completion failures are returned wrapping llm.ErrUpstream.
func (s *GuestChatService) Reply(ctx context.Context, req models.GuestChatRequest) (*models.GuestChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return &models.GuestChatResponse{OK: false, Error: "Empty message"}, nil
	}

	answer, err := s.llm.Ask(ctx, message, nil)
	if err != nil {
		metrics.CompletionFailuresTotal.WithLabelValues("guest").Inc()
		s.log.Warn().Err(err).Msg("guest completion failed")
		return nil, fmt.Errorf("guest reply: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(notify.Entry{Question: message, Answer: answer})
	}
	return &models.GuestChatResponse{OK: true, Reply: answer, ChatID: req.ChatID}, nil
}
