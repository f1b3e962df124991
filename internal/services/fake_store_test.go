package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/notify"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
)

// fakeStore is an in-memory store.Store. Transactions hold the lock for their
// whole duration and undo their writes when fn fails.
type fakeStore struct {
	mu       sync.Mutex
	clock    time.Time
	seq      int64
	users    map[uuid.UUID]*models.User
	chats    map[uuid.UUID]*models.Chat
	messages []fakeMessage

	txCount int
	// requireOwner makes chat inserts fail for unknown users, like the users FK.
	requireOwner bool
}

type fakeMessage struct {
	models.Message
	seq int64
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock: time.Now(),
		users: map[uuid.UUID]*models.User{},
		chats: map[uuid.UUID]*models.Chat{},
	}
}

// Now is the fake clock. Each call advances it so timestamps are strictly increasing.
func (f *fakeStore) Now() time.Time {
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func (f *fakeStore) addUser(plan string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.Now()
	u := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", HashedPassword: "x", Plan: plan, CreatedAt: now, UpdatedAt: now}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addChat(userID uuid.UUID, title string) *models.Chat {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.Now()
	c := &models.Chat{ID: uuid.New(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	f.chats[c.ID] = c
	cp := *c
	return &cp
}

func (f *fakeStore) addMessage(chatID uuid.UUID, role models.Role, content string) models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertMessage(chatID, role, content)
}

func (f *fakeStore) insertMessage(chatID uuid.UUID, role models.Role, content string) models.Message {
	f.seq++
	m := models.Message{ID: uuid.New(), ChatID: chatID, Role: role, Content: content, CreatedAt: f.Now()}
	f.messages = append(f.messages, fakeMessage{Message: m, seq: f.seq})
	return m
}

func (f *fakeStore) countMessages(chatID uuid.UUID, role models.Role) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ChatID == chatID && (role == "" || m.Role == role) {
			n++
		}
	}
	return n
}

func (f *fakeStore) chatCount(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.chats {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

func (f *fakeStore) CreateUser(ctx context.Context, arg store.CreateUserParams) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == arg.Email {
			return nil, store.ErrDuplicate
		}
	}
	now := f.Now()
	u := &models.User{ID: arg.ID, Email: arg.Email, Name: arg.Name, HashedPassword: arg.HashedPassword, Plan: string(arg.Plan), CreatedAt: now, UpdatedAt: now}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if search == "" || strings.Contains(strings.ToLower(u.Email), strings.ToLower(search)) || u.ID.String() == strings.ToLower(search) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateUserPlan(ctx context.Context, id uuid.UUID, plan models.Tier) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Plan = string(plan)
	u.UpdatedAt = f.Now()
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateChat(ctx context.Context, arg store.CreateChatParams) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createChat(arg)
}

func (f *fakeStore) createChat(arg store.CreateChatParams) (*models.Chat, error) {
	if _, ok := f.users[arg.UserID]; f.requireOwner && !ok {
		return nil, store.ErrNotFound
	}
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := f.Now()
	c := &models.Chat{ID: id, UserID: arg.UserID, Title: arg.Title, CreatedAt: now, UpdatedAt: now}
	f.chats[id] = c
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetChatByID(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListChatsByUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) RenameChat(ctx context.Context, id, userID uuid.UUID, title string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	c.Title = title
	cp := *c
	return &cp, nil
}

func (f *fakeStore) DeleteChat(ctx context.Context, id, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ChatID != id {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	delete(f.chats, id)
	return nil
}

func (f *fakeStore) sortedMessages(chatID uuid.UUID) []fakeMessage {
	var out []fakeMessage
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *fakeStore) ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.sortedMessages(chatID) {
		out = append(out, m.Message)
	}
	return out, nil
}

func (f *fakeStore) ListRecentMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asc := f.sortedMessages(chatID)
	var out []models.Message
	for i := len(asc) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, asc[i].Message)
	}
	return out, nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx store.MessageTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++

	tx := &fakeTx{f: f}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type fakeTx struct {
	f    *fakeStore
	undo []func()
}

func (t *fakeTx) CreateChat(ctx context.Context, arg store.CreateChatParams) (*models.Chat, error) {
	c, err := t.f.createChat(arg)
	if err != nil {
		return nil, err
	}
	t.undo = append(t.undo, func() { delete(t.f.chats, c.ID) })
	return c, nil
}

func (t *fakeTx) LockUserMessages(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (t *fakeTx) CountUserMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, m := range t.f.messages {
		c, ok := t.f.chats[m.ChatID]
		if ok && c.UserID == userID && m.Role == models.RoleUser && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) InsertMessage(ctx context.Context, chatID uuid.UUID, role models.Role, content string) (*models.Message, error) {
	if _, ok := t.f.chats[chatID]; !ok {
		return nil, store.ErrNotFound
	}
	m := t.f.insertMessage(chatID, role, content)
	t.undo = append(t.undo, func() {
		t.f.messages = t.f.messages[:len(t.f.messages)-1]
	})
	return &m, nil
}

func (t *fakeTx) TouchChat(ctx context.Context, chatID uuid.UUID, fallbackTitle string) error {
	c, ok := t.f.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	prevTitle, prevUpdated := c.Title, c.UpdatedAt
	c.UpdatedAt = t.f.Now()
	if c.Title == "" && fallbackTitle != "" {
		c.Title = fallbackTitle
	}
	t.undo = append(t.undo, func() { c.Title, c.UpdatedAt = prevTitle, prevUpdated })
	return nil
}

// completerFunc adapts a function to llm.Completer.
type completerFunc func(ctx context.Context, message string, history []models.HistoryMessage) (string, error)

func (f completerFunc) Ask(ctx context.Context, message string, history []models.HistoryMessage) (string, error) {
	return f(ctx, message, history)
}

func staticCompleter(answer string) completerFunc {
	return func(ctx context.Context, message string, history []models.HistoryMessage) (string, error) {
		return answer, nil
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []notify.Entry
}

func (r *recordingNotifier) Notify(e notify.Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return true
}

func (r *recordingNotifier) all() []notify.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Entry(nil), r.entries...)
}
