package services

import (
	"context"
	"fmt"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
)

const (
	// HistoryLimit is the number of turns sent to the completion API.
	HistoryLimit = 20
	// WindowLimit is the number of messages returned after a send.
	WindowLimit = 50
)

// HistoryBuilder reads the tail of a conversation.
type HistoryBuilder struct {
	store store.Store
}

// NewHistoryBuilder creates a HistoryBuilder.
func NewHistoryBuilder(s store.Store) *HistoryBuilder {
	return &HistoryBuilder{store: s}
}

// Window returns at most limit of the most recent messages in chronological order.
// The store reads newest first so only the tail of a long chat is scanned.
func (h *HistoryBuilder) Window(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}

	msgs, err := h.store.ListRecentMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Build returns the role/content pairs of the last limit messages, oldest first.
func (h *HistoryBuilder) Build(ctx context.Context, chatID uuid.UUID, limit int) ([]models.HistoryMessage, error) {
	msgs, err := h.Window(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}

	history := make([]models.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, models.HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return history, nil
}
