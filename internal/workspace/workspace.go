// Package workspace holds the caller's view of their chatbot directory.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/notify"
)

// ErrNoPendingDelete is returned when confirming a delete that was never
// requested, was cancelled or was already confirmed.
var ErrNoPendingDelete = errors.New("no pending delete for this chatbot")

// Directory is the remote chatbot directory.
type Directory interface {
	List(ctx context.Context) ([]*chatbot.Chatbot, error)
	Delete(ctx context.Context, id string) error
}

// PendingDelete is a delete waiting for the operator's confirmation.
type PendingDelete struct {
	ID   string
	Name string
}

// Prompt is the confirmation question shown to the operator.
func (p PendingDelete) Prompt() string {
	return fmt.Sprintf("Delete chatbot %q? This cannot be undone.", p.Name)
}

// View is the last listing fetched from the directory. Refresh replaces it
// wholesale; a failed refresh keeps the previous listing.
type View struct {
	dir    Directory
	notify notify.Notifier

	mu      sync.Mutex
	items   []*chatbot.Chatbot
	pending map[string]PendingDelete
}

func New(dir Directory, n notify.Notifier) *View {
	if n == nil {
		n = notify.Discard
	}
	return &View{dir: dir, notify: n, items: []*chatbot.Chatbot{}, pending: map[string]PendingDelete{}}
}

// Items returns the current listing, newest first.
func (v *View) Items() []*chatbot.Chatbot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*chatbot.Chatbot{}, v.items...)
}

// Refresh re-reads the listing.
func (v *View) Refresh(ctx context.Context) error {
	list, err := v.dir.List(ctx)
	if err != nil {
		v.notify.Notify(notify.Notification{Level: notify.Error, Title: "Error", Message: "Failed to load chatbots: " + err.Error()})
		return err
	}
	if list == nil {
		list = []*chatbot.Chatbot{}
	}
	v.mu.Lock()
	v.items = list
	v.mu.Unlock()
	return nil
}

// RequestDelete starts the two-step delete of a listed chatbot. Nothing is
// deleted until ConfirmDelete.
func (v *View) RequestDelete(id string) (PendingDelete, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range v.items {
		if c.ID == id {
			p := PendingDelete{ID: c.ID, Name: c.Name}
			v.pending[id] = p
			return p, nil
		}
	}
	return PendingDelete{}, chatbot.ErrNotFound
}

// CancelDelete drops a pending delete.
func (v *View) CancelDelete(p PendingDelete) {
	v.mu.Lock()
	delete(v.pending, p.ID)
	v.mu.Unlock()
}

// ConfirmDelete performs a requested delete. Success and failure both
// refresh the listing.
func (v *View) ConfirmDelete(ctx context.Context, p PendingDelete) error {
	v.mu.Lock()
	_, ok := v.pending[p.ID]
	delete(v.pending, p.ID)
	v.mu.Unlock()
	if !ok {
		return ErrNoPendingDelete
	}

	err := v.dir.Delete(ctx, p.ID)
	if err != nil {
		v.notify.Notify(notify.Notification{Level: notify.Error, Title: "Error", Message: fmt.Sprintf("Failed to delete chatbot %q: %v", p.Name, err)})
	} else {
		v.notify.Notify(notify.Notification{Level: notify.Success, Title: "Deleted", Message: fmt.Sprintf("Chatbot %q has been deleted.", p.Name)})
	}
	_ = v.Refresh(ctx)
	return err
}
