package postgres

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testStore *PostgresStore

// TestMain starts a throwaway Postgres for the integration tests.
// With -short, or without a container runtime, the tests are skipped.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, pool, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres integration tests skipped: %v\n", err)
		os.Exit(m.Run())
	}
	testStore = NewPostgresStore(pool, zerolog.Nop())

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func startPostgres(ctx context.Context) (testcontainers.Container, *pgxpool.Pool, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "lexchat",
				"POSTGRES_PASSWORD": "lexchat",
				"POSTGRES_DB":       "lexchat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container, nil, fmt.Errorf("container host: %w", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return container, nil, fmt.Errorf("mapped port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://lexchat:lexchat@%s:%s/lexchat?sslmode=disable", host, port.Port())

	if err := Migrate(dsn, zerolog.Nop()); err != nil {
		return container, nil, err
	}
	// Running twice must be a no-op.
	if err := Migrate(dsn, zerolog.Nop()); err != nil {
		return container, nil, fmt.Errorf("second migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return container, nil, fmt.Errorf("connect: %w", err)
	}
	return container, pool, nil
}

func requireStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testStore == nil {
		t.Skip("postgres not available")
	}
	return testStore
}

func createTestUser(t *testing.T, s *PostgresStore, plan models.Tier) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.CreateUserParams{
		Email:          strings.ToLower(uuid.NewString()) + "@example.com",
		HashedPassword: "hash",
		Plan:           plan,
	})
	require.NoError(t, err)
	return u
}

func mustInsertMessage(t *testing.T, s *PostgresStore, chatID uuid.UUID, role models.Role, content string) *models.Message {
	t.Helper()
	var m *models.Message
	err := s.InTx(context.Background(), func(tx store.MessageTx) error {
		var err error
		m, err = tx.InsertMessage(context.Background(), chatID, role, content)
		if err != nil {
			return err
		}
		return tx.TouchChat(context.Background(), chatID, "")
	})
	require.NoError(t, err)
	return m
}

func TestUsers(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "")
	assert.Equal(t, "free", u.Plan)

	_, err := s.CreateUser(ctx, store.CreateUserParams{Email: u.Email, HashedPassword: "x"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	byEmail, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := s.UpdateUserPlan(ctx, u.ID, models.TierVIP)
	require.NoError(t, err)
	assert.Equal(t, "vip", updated.Plan)
	_, err = s.UpdateUserPlan(ctx, uuid.New(), models.TierPro)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListUsersSearch(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierPro)

	prefix := strings.ToUpper(u.Email[:8])
	found, err := s.ListUsers(ctx, prefix)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, u.ID, found[0].ID)

	found, err = s.ListUsers(ctx, u.ID.String())
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 1)
}

func TestChatsAreScopedByOwner(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, models.TierFree)
	other := createTestUser(t, s, models.TierFree)

	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: owner.ID, Title: "mine"})
	require.NoError(t, err)

	_, err = s.GetChatByID(ctx, chat.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.RenameChat(ctx, chat.ID, other.ID, "stolen")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteChat(ctx, chat.ID, other.ID), store.ErrNotFound)

	got, err := s.GetChatByID(ctx, chat.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Title)
}

func TestListChatsByActivity(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)

	first, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "first"})
	require.NoError(t, err)
	second, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "second"})
	require.NoError(t, err)

	chats, err := s.ListChatsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)

	mustInsertMessage(t, s, first.ID, models.RoleUser, "bump")

	chats, err = s.ListChatsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, chats[0].ID)
	assert.True(t, chats[0].UpdatedAt.After(first.UpdatedAt))
}

func TestRenameKeepsActivity(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "old"})
	require.NoError(t, err)

	renamed, err := s.RenameChat(ctx, chat.ID, u.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Title)
	assert.True(t, chat.UpdatedAt.Equal(renamed.UpdatedAt))
}

func TestMessagesOrdering(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		mustInsertMessage(t, s, chat.ID, models.RoleUser, fmt.Sprintf("m%d", i))
	}

	all, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
	}

	recent, err := s.ListRecentMessages(ctx, chat.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "m4", recent[0].Content)
	assert.Equal(t, "m2", recent[2].Content)
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "c"})
	require.NoError(t, err)
	mustInsertMessage(t, s, chat.ID, models.RoleUser, "q")
	mustInsertMessage(t, s, chat.ID, models.RoleAssistant, "a")

	require.NoError(t, s.DeleteChat(ctx, chat.ID, u.ID))

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = s.GetChatByID(ctx, chat.ID, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteChat(ctx, chat.ID, u.ID), store.ErrNotFound)
}

func TestMessageTx(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	other := createTestUser(t, s, models.TierFree)
	otherChat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: other.ID})
	require.NoError(t, err)
	mustInsertMessage(t, s, otherChat.ID, models.RoleUser, "not counted")

	var chat *models.Chat
	err = s.InTx(ctx, func(tx store.MessageTx) error {
		require.NoError(t, tx.LockUserMessages(ctx, u.ID))
		n, err := tx.CountUserMessagesSince(ctx, u.ID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		chat, err = tx.CreateChat(ctx, store.CreateChatParams{UserID: u.ID})
		if err != nil {
			return err
		}
		if _, err := tx.InsertMessage(ctx, chat.ID, models.RoleUser, "hello"); err != nil {
			return err
		}
		if _, err := tx.InsertMessage(ctx, chat.ID, models.RoleAssistant, "hi"); err != nil {
			return err
		}
		return tx.TouchChat(ctx, chat.ID, "hello")
	})
	require.NoError(t, err)

	got, err := s.GetChatByID(ctx, chat.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title, "blank title filled")

	err = s.InTx(ctx, func(tx store.MessageTx) error {
		n, err := tx.CountUserMessagesSince(ctx, u.ID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n, "only role=user messages of the user's chats")

		n, err = tx.CountUserMessagesSince(ctx, u.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		return tx.TouchChat(ctx, chat.ID, "ignored")
	})
	require.NoError(t, err)

	got, err = s.GetChatByID(ctx, chat.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title, "existing title kept")
}

func TestMessageTxRollback(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "c"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx store.MessageTx) error {
		if _, err := tx.InsertMessage(ctx, chat.ID, models.RoleUser, "lost"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	err = s.InTx(ctx, func(tx store.MessageTx) error {
		return tx.TouchChat(ctx, uuid.New(), "")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLockUserMessagesSerializesQuota(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, models.TierFree)
	chat, err := s.CreateChat(ctx, store.CreateChatParams{UserID: u.ID, Title: "race"})
	require.NoError(t, err)

	const (
		senders = 8
		limit   = 3
	)
	errLimit := errors.New("limit reached")
	since := time.Now().Add(-time.Hour)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := s.InTx(ctx, func(tx store.MessageTx) error {
				if err := tx.LockUserMessages(ctx, u.ID); err != nil {
					return err
				}
				n, err := tx.CountUserMessagesSince(ctx, u.ID, since)
				if err != nil {
					return err
				}
				if n >= limit {
					return errLimit
				}
				// Widen the window between count and insert.
				time.Sleep(20 * time.Millisecond)
				_, err = tx.InsertMessage(ctx, chat.ID, models.RoleUser, fmt.Sprintf("m%d", i))
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case !errors.Is(err, errLimit):
				failures = append(failures, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, limit, accepted)

	msgs, err := s.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, limit)
}

func TestCreateChatUnknownOwner(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	_, err := s.CreateChat(ctx, store.CreateChatParams{UserID: uuid.New(), Title: "orphan"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.InTx(ctx, func(tx store.MessageTx) error {
		_, err := tx.CreateChat(ctx, store.CreateChatParams{UserID: uuid.New()})
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
