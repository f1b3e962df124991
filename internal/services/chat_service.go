package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lexchat-backend/internal/config"
	"lexchat-backend/internal/llm"
	"lexchat-backend/internal/metrics"
	"lexchat-backend/internal/models"
	"lexchat-backend/internal/notify"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultChatTitle is used for chats created without a title.
	DefaultChatTitle = "New conversation"
	titleMaxRunes    = 80
)

// ChatLogNotifier receives completed question/answer pairs.
type ChatLogNotifier interface {
	Notify(e notify.Entry) bool
}

// ChatService handles chat-related business logic.
type ChatService struct {
	store    store.Store
	llm      llm.Completer
	notifier ChatLogNotifier
	history  *HistoryBuilder
	quota    *QuotaPolicy
	opts     config.ChatOptions
	log      zerolog.Logger
}

// NewChatService creates a new ChatService. notifier may be nil.
func NewChatService(s store.Store, completer llm.Completer, notifier ChatLogNotifier, opts config.ChatOptions, log zerolog.Logger) *ChatService {
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = config.DefaultCompletionTimeout
	}
	return &ChatService{
		store:    s,
		llm:      completer,
		notifier: notifier,
		history:  NewHistoryBuilder(s),
		quota:    NewQuotaPolicy(),
		opts:     opts,
		log:      log.With().Str("component", "chat_service").Logger(),
	}
}

// DeriveTitle builds a chat title from the opening message: its first 80 characters.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
	}
	return strings.TrimSpace(string(runes))
}

// SendMessage stores a user message, asks the model for a reply and stores the reply.
//
// The quota check, the chat creation (when chatID is nil) and the user message write
// share one transaction serialized per user, so a rejected send writes nothing.
// A failed completion leaves the user message in place and reports a pending reply.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrInvalidInput)
	}

	var chatID uuid.UUID
	newChat := strings.TrimSpace(req.ChatID) == ""
	if !newChat {
		chat, err := s.ownedChat(ctx, userID, req.ChatID)
		if err != nil {
			return nil, err
		}
		chatID = chat.ID
	}

	tier, err := s.userTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	title := DeriveTitle(content)
	var userMsg *models.Message
	err = s.store.InTx(ctx, func(tx store.MessageTx) error {
		if s.quota.Applies(tier, s.opts.DailyMessageLimit) {
			if err := tx.LockUserMessages(ctx, userID); err != nil {
				return err
			}
			allowed, err := s.quota.IsAllowed(ctx, tx, userID, tier, s.opts.DailyMessageLimit)
			if err != nil {
				return err
			}
			if !allowed {
				return ErrQuotaExceeded
			}
		}

		if chatID == uuid.Nil {
			chat, err := tx.CreateChat(ctx, store.CreateChatParams{UserID: userID, Title: title})
			if err != nil {
				return err
			}
			chatID = chat.ID
		}

		var err error
		userMsg, err = tx.InsertMessage(ctx, chatID, models.RoleUser, content)
		if err != nil {
			return err
		}
		return tx.TouchChat(ctx, chatID, title)
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			metrics.QuotaRejectionsTotal.WithLabelValues(string(tier)).Inc()
			s.log.Info().Str("user_id", userID.String()).Str("tier", string(tier)).Int("limit", s.opts.DailyMessageLimit).Msg("daily message limit reached")
			return nil, ErrQuotaExceeded
		}
		if newChat && errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	if newChat {
		metrics.ChatsCreatedTotal.Inc()
	}
	metrics.MessagesStoredTotal.WithLabelValues(string(models.RoleUser)).Inc()

	resp := &models.SendMessageResponse{
		ChatID:          chatID,
		UserMessageID:   userMsg.ID,
		AssistantStatus: models.AssistantPending,
	}

	history, err := s.history.Build(ctx, chatID, HistoryLimit)
	if err != nil {
		return nil, err
	}

	answer, askErr := s.ask(ctx, content, history)
	if askErr != nil {
		metrics.CompletionFailuresTotal.WithLabelValues("chat").Inc()
		s.log.Warn().Err(askErr).Str("chat_id", chatID.String()).Str("user_id", userID.String()).Msg("completion failed, reply left pending")
	} else {
		var assistantMsg *models.Message
		err = s.store.InTx(ctx, func(tx store.MessageTx) error {
			var err error
			assistantMsg, err = tx.InsertMessage(ctx, chatID, models.RoleAssistant, answer)
			if err != nil {
				return err
			}
			return tx.TouchChat(ctx, chatID, "")
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store assistant message: %w", err)
		}
		metrics.MessagesStoredTotal.WithLabelValues(string(models.RoleAssistant)).Inc()

		resp.AssistantMessageID = &assistantMsg.ID
		resp.AssistantStatus = models.AssistantCompleted

		if s.notifier != nil {
			s.notifier.Notify(notify.Entry{Question: content, Answer: answer, UserID: &userID})
		}
	}

	window, err := s.history.Window(ctx, chatID, WindowLimit)
	if err != nil {
		return nil, err
	}
	resp.Messages = models.NewMessageResponses(window)
	return resp, nil
}

// ask bounds the completion call by the configured timeout, independent of the caller.
func (s *ChatService) ask(ctx context.Context, content string, history []models.HistoryMessage) (string, error) {
	askCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CompletionTimeout)
	defer cancel()

	started := time.Now()
	answer, err := s.llm.Ask(askCtx, content, history)
	if err != nil {
		return "", err
	}
	s.log.Debug().Dur("latency", time.Since(started)).Int("history", len(history)).Msg("completion succeeded")
	return answer, nil
}

// ownedChat resolves a client supplied chat id. Ids that do not parse, do not
// exist or belong to someone else all yield ErrChatNotFoundOrForbidden.
func (s *ChatService) ownedChat(ctx context.Context, userID uuid.UUID, rawID string) (*models.Chat, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, ErrChatNotFoundOrForbidden
	}
	chat, err := s.store.GetChatByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFoundOrForbidden
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return chat, nil
}

// userTier resolves the user's plan for the quota. A missing user is treated as
// free tier; writing a chat for it then fails with ErrUserNotFound.
func (s *ChatService) userTier(ctx context.Context, userID uuid.UUID) (models.Tier, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.TierFree, nil
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return user.Tier(), nil
}

// CreateChat creates an empty chat. A blank title becomes DefaultChatTitle.
func (s *ChatService) CreateChat(ctx context.Context, userID uuid.UUID, req models.CreateChatRequest) (*models.ChatResponse, error) {
	title := DefaultChatTitle
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		title = strings.TrimSpace(*req.Title)
	}

	chat, err := s.store.CreateChat(ctx, store.CreateChatParams{UserID: userID, Title: title})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create chat in store: %w", err)
	}
	metrics.ChatsCreatedTotal.Inc()

	resp := models.NewChatResponse(*chat)
	return &resp, nil
}

// ListChats returns the user's chats, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) ([]models.ChatResponse, error) {
	chats, err := s.store.ListChatsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	resp := make([]models.ChatResponse, 0, len(chats))
	for _, c := range chats {
		resp = append(resp, models.NewChatResponse(c))
	}
	return resp, nil
}

// ListMessages returns every message of an owned chat, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID uuid.UUID) ([]models.MessageResponse, error) {
	if _, err := s.store.GetChatByID(ctx, chatID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFoundOrForbidden
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	msgs, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return models.NewMessageResponses(msgs), nil
}

// RenameChat sets a new, trimmed title.
func (s *ChatService) RenameChat(ctx context.Context, userID, chatID uuid.UUID, title string) (*models.RenameChatResponse, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}

	chat, err := s.store.RenameChat(ctx, chatID, userID, title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to rename chat: %w", err)
	}
	return &models.RenameChatResponse{ID: chat.ID, Title: chat.Title}, nil
}

// DeleteChat removes the chat and all of its messages.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uuid.UUID) error {
	if err := s.store.DeleteChat(ctx, chatID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChatNotFound
		}
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	s.log.Debug().Str("chat_id", chatID.String()).Str("user_id", userID.String()).Msg("chat deleted")
	return nil
}
