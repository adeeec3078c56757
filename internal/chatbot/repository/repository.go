package repository

import (
	"context"
	"errors"
	"time"

	"github.com/botdash/botdash/internal/chatbot"
)

// ErrNotFound is returned when no row matches the id (and owner, where one
// is given).
var ErrNotFound = errors.New("chatbot not found")

// Repository is the chatbot datastore. Insert assigns ID, CreatedAt and
// UpdatedAt on the passed record. SetEmbedSnippet returns the UpdatedAt it
// stored.
type Repository interface {
	Insert(ctx context.Context, c *chatbot.Chatbot) error
	SetEmbedSnippet(ctx context.Context, id, snippet string) (time.Time, error)
	Get(ctx context.Context, ownerID, id string) (*chatbot.Chatbot, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*chatbot.Chatbot, error)
	Delete(ctx context.Context, ownerID, id string) error
}

func clone(c *chatbot.Chatbot) *chatbot.Chatbot {
	cp := *c
	cp.ResourceFilePaths = append([]string{}, c.ResourceFilePaths...)
	return &cp
}
