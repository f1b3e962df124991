package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	Name           *string   `db:"name"`
	HashedPassword string    `db:"password_hash"`
	Plan           string    `db:"plan"` // raw value, run through NormalizeTier before use
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Tier returns the normalized subscription tier of the user.
func (u *User) Tier() Tier {
	if u == nil {
		return TierFree
	}
	return NormalizeTier(u.Plan)
}

// Chat is a conversation thread owned by exactly one user.
type Chat struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"` // bumped on every message append
}

// Message is one turn in a chat. Messages are never updated.
type Message struct {
	ID        uuid.UUID `db:"id"`
	ChatID    uuid.UUID `db:"chat_id"`
	Role      Role      `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
