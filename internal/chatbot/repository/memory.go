package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/botdash/botdash/internal/chatbot"
)

// MemoryRepo is an in-memory Repository used for local runs and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*memoryRow
	seq   uint64
	now   func() time.Time
}

type memoryRow struct {
	bot *chatbot.Chatbot
	seq uint64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*memoryRow), now: time.Now}
}

// WithClock replaces the timestamp source.
func (m *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	m.now = now
	return m
}

func (m *MemoryRepo) Insert(_ context.Context, c *chatbot.Chatbot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = m.now().UTC()
	c.UpdatedAt = c.CreatedAt
	if c.ResourceFilePaths == nil {
		c.ResourceFilePaths = []string{}
	}
	m.seq++
	m.store[c.ID] = &memoryRow{bot: clone(c), seq: m.seq}
	return nil
}

func (m *MemoryRepo) SetEmbedSnippet(_ context.Context, id, snippet string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	r.bot.EmbedSnippet = snippet
	r.bot.UpdatedAt = m.now().UTC()
	return r.bot.UpdatedAt, nil
}

func (m *MemoryRepo) Get(_ context.Context, ownerID, id string) (*chatbot.Chatbot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.store[id]
	if !ok || r.bot.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return clone(r.bot), nil
}

func (m *MemoryRepo) ListByOwner(_ context.Context, ownerID string) ([]*chatbot.Chatbot, error) {
	m.mu.RLock()
	rows := make([]memoryRow, 0, len(m.store))
	for _, r := range m.store {
		if r.bot.OwnerID == ownerID {
			rows = append(rows, memoryRow{bot: clone(r.bot), seq: r.seq})
		}
	}
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.bot.CreatedAt.Equal(b.bot.CreatedAt) {
			return a.bot.CreatedAt.After(b.bot.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*chatbot.Chatbot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.bot)
	}
	return out, nil
}

func (m *MemoryRepo) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok || r.bot.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}
