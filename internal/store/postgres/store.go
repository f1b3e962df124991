package postgres

import (
	"context"
	"errors"
	"fmt"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

type PostgresStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPostgresStore(db *pgxpool.Pool, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: log.With().Str("component", "postgres_store").Logger(),
	}
}

// --- User Methods ---

const userColumns = `id, email, name, password_hash, plan, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.HashedPassword,
		&u.Plan,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (id, email, name, password_hash, plan)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns + `;`

// CreateUser inserts a new user record into the database.
// Returns store.ErrDuplicate if the email is already registered.
func (s *PostgresStore) CreateUser(ctx context.Context, arg store.CreateUserParams) (*models.User, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	plan := arg.Plan
	if plan == "" {
		plan = models.TierFree
	}

	u, err := scanUser(s.db.QueryRow(ctx, createUser, id, arg.Email, arg.Name, arg.HashedPassword, string(plan)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			s.log.Debug().Str("email", arg.Email).Msg("CreateUser: email already registered")
			return nil, store.ErrDuplicate
		}
		s.log.Error().Err(err).Str("email", arg.Email).Msg("CreateUser: insert failed")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	s.log.Debug().Str("user_id", u.ID.String()).Msg("CreateUser: inserted")
	return u, nil
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, getUserByEmail, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}
	return u, nil
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

// GetUserByID retrieves a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, getUserByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching user by id: %w", err)
	}
	return u, nil
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + `
FROM users
WHERE $1 = '' OR email ILIKE '%' || $1 || '%' OR id::text = lower($1)
ORDER BY created_at DESC;`

// ListUsers returns users whose email contains search (case-insensitive) or whose id equals it.
// An empty search lists everyone.
func (s *PostgresStore) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	rows, err := s.db.Query(ctx, listUsers, search)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

const updateUserPlan = `-- name: UpdateUserPlan :one
UPDATE users
SET plan = $1, updated_at = NOW()
WHERE id = $2
RETURNING ` + userColumns + `;`

// UpdateUserPlan stores a new subscription plan for the user.
func (s *PostgresStore) UpdateUserPlan(ctx context.Context, id uuid.UUID, plan models.Tier) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, updateUserPlan, string(plan), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error updating user plan: %w", err)
	}
	s.log.Info().Str("user_id", id.String()).Str("plan", string(plan)).Msg("UpdateUserPlan: plan changed")
	return u, nil
}

// Chat and message methods are in store_chat.go.
