package store

import (
	"context"
	"errors"
	"time"

	"lexchat-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
// For chats this also covers rows owned by a different user.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint (e.g. user email) is violated.
var ErrDuplicate = errors.New("record already exists")

// CreateUserParams contains parameters for creating a user.
type CreateUserParams struct {
	ID             uuid.UUID
	Email          string
	Name           *string
	HashedPassword string
	Plan           models.Tier
}

// CreateChatParams contains parameters for creating a chat.
type CreateChatParams struct {
	ID     uuid.UUID // generated when uuid.Nil
	UserID uuid.UUID
	Title  string
}

// Store defines the interface for database operations.
// This allows for fakes in tests and potential DB backend switching.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, search string) ([]models.User, error)
	UpdateUserPlan(ctx context.Context, id uuid.UUID, plan models.Tier) (*models.User, error)

	// Chat operations. Every lookup is scoped by the owning user.
	// CreateChat returns ErrNotFound when the owner does not exist.
	CreateChat(ctx context.Context, arg CreateChatParams) (*models.Chat, error)
	GetChatByID(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error)
	ListChatsByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
	RenameChat(ctx context.Context, id, userID uuid.UUID, title string) (*models.Chat, error)
	// DeleteChat removes the chat and all of its messages atomically.
	DeleteChat(ctx context.Context, id, userID uuid.UUID) error

	// Message operations
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
	// ListRecentMessages returns at most limit messages, newest first.
	ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error)

	// InTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx MessageTx) error) error
}

// MessageTx is the set of statements available inside a message write transaction.
type MessageTx interface {
	// CreateChat inserts a chat as part of the transaction.
	CreateChat(ctx context.Context, arg CreateChatParams) (*models.Chat, error)
	// LockUserMessages serializes message writes of one user until the transaction ends.
	LockUserMessages(ctx context.Context, userID uuid.UUID) error
	// CountUserMessagesSince counts role=user messages in chats owned by userID.
	CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	InsertMessage(ctx context.Context, chatID uuid.UUID, role models.Role, content string) (*models.Message, error)
	// TouchChat bumps updated_at. A non-empty fallbackTitle is stored only when the chat has no title.
	TouchChat(ctx context.Context, chatID uuid.UUID, fallbackTitle string) error
}
