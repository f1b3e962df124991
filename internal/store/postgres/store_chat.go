package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Chat Methods ---

const chatColumns = `id, user_id, title, created_at, updated_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var c models.Chat
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

const createChat = `-- name: CreateChat :one
INSERT INTO chats (id, user_id, title)
VALUES ($1, $2, $3)
RETURNING ` + chatColumns + `;`

// CreateChat inserts a chat. Returns store.ErrNotFound when the owner does not exist.
func (s *PostgresStore) CreateChat(ctx context.Context, arg store.CreateChatParams) (*models.Chat, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	chat, err := scanChat(s.db.QueryRow(ctx, createChat, id, arg.UserID, arg.Title))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error creating chat: %w", err)
	}
	s.log.Debug().Str("chat_id", chat.ID.String()).Str("user_id", arg.UserID.String()).Msg("CreateChat: inserted")
	return chat, nil
}

const getChatByID = `-- name: GetChatByID :one
SELECT ` + chatColumns + `
FROM chats
WHERE id = $1 AND user_id = $2;`

func (s *PostgresStore) GetChatByID(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	chat, err := scanChat(s.db.QueryRow(ctx, getChatByID, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning chat: %w", err)
	}
	return chat, nil
}

const listChatsByUser = `-- name: ListChatsByUser :many
SELECT ` + chatColumns + `
FROM chats
WHERE user_id = $1
ORDER BY updated_at DESC, id;`

func (s *PostgresStore) ListChatsByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	rows, err := s.db.Query(ctx, listChatsByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat row: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}
	return chats, nil
}

const renameChat = `-- name: RenameChat :one
UPDATE chats
SET title = $1
WHERE id = $2 AND user_id = $3
RETURNING ` + chatColumns + `;`

func (s *PostgresStore) RenameChat(ctx context.Context, id, userID uuid.UUID, title string) (*models.Chat, error) {
	chat, err := scanChat(s.db.QueryRow(ctx, renameChat, title, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error renaming chat: %w", err)
	}
	return chat, nil
}

const lockChatForDelete = `SELECT id FROM chats WHERE id = $1 AND user_id = $2 FOR UPDATE;`
const deleteChatMessages = `DELETE FROM messages WHERE chat_id = $1;`
const deleteChat = `DELETE FROM chats WHERE id = $1 AND user_id = $2;`

// DeleteChat removes the messages first and then the chat, in one transaction.
func (s *PostgresStore) DeleteChat(ctx context.Context, id, userID uuid.UUID) error {
	var removed int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var found uuid.UUID
		if err := tx.QueryRow(ctx, lockChatForDelete, id, userID).Scan(&found); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrNotFound
			}
			return fmt.Errorf("failed to lock chat: %w", err)
		}

		tag, err := tx.Exec(ctx, deleteChatMessages, id)
		if err != nil {
			return fmt.Errorf("failed to delete chat messages: %w", err)
		}
		removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, deleteChat, id, userID)
		if err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("chat_id", id.String()).Int64("messages", removed).Msg("DeleteChat: removed")
	return nil
}

// --- Message Methods ---

const messageColumns = `id, chat_id, role, content, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		m    models.Message
		role string
	)
	if err := row.Scan(&m.ID, &m.ChatID, &role, &m.Content, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return msgs, nil
}

const listMessages = `-- name: ListMessages :many
SELECT ` + messageColumns + `
FROM messages
WHERE chat_id = $1
ORDER BY created_at ASC, seq ASC;`

func (s *PostgresStore) ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, listMessages, chatID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	return collectMessages(rows)
}

const listRecentMessages = `-- name: ListRecentMessages :many
SELECT ` + messageColumns + `
FROM messages
WHERE chat_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT $2;`

func (s *PostgresStore) ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, listRecentMessages, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent messages: %w", err)
	}
	return collectMessages(rows)
}

// --- Transactions ---

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx store.MessageTx) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&messageTx{tx: tx})
	})
}

type messageTx struct {
	tx pgx.Tx
}

func (t *messageTx) CreateChat(ctx context.Context, arg store.CreateChatParams) (*models.Chat, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	chat, err := scanChat(t.tx.QueryRow(ctx, createChat, id, arg.UserID, arg.Title))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

const lockUserMessages = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0));`

func (t *messageTx) LockUserMessages(ctx context.Context, userID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, lockUserMessages, userID.String()); err != nil {
		return fmt.Errorf("failed to lock user messages: %w", err)
	}
	return nil
}

const countUserMessagesSince = `-- name: CountUserMessagesSince :one
SELECT COUNT(*)
FROM messages m
JOIN chats c ON c.id = m.chat_id
WHERE c.user_id = $1 AND m.role = 'user' AND m.created_at >= $2;`

func (t *messageTx) CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int64
	if err := t.tx.QueryRow(ctx, countUserMessagesSince, userID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count user messages: %w", err)
	}
	return int(n), nil
}

const insertMessage = `-- name: InsertMessage :one
INSERT INTO messages (id, chat_id, role, content)
VALUES ($1, $2, $3, $4)
RETURNING ` + messageColumns + `;`

func (t *messageTx) InsertMessage(ctx context.Context, chatID uuid.UUID, role models.Role, content string) (*models.Message, error) {
	m, err := scanMessage(t.tx.QueryRow(ctx, insertMessage, uuid.New(), chatID, string(role), content))
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s message: %w", role, err)
	}
	return m, nil
}

const touchChat = `-- name: TouchChat :exec
UPDATE chats
SET updated_at = clock_timestamp(),
    title = CASE WHEN title = '' AND $2 <> '' THEN $2 ELSE title END
WHERE id = $1;`

func (t *messageTx) TouchChat(ctx context.Context, chatID uuid.UUID, fallbackTitle string) error {
	tag, err := t.tx.Exec(ctx, touchChat, chatID, fallbackTitle)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
