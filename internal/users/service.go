package users

import (
	"context"
	"errors"

	"github.com/botdash/botdash/internal/chatbot"
)

// Service encapsulates caller profile logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Touch records that caller signed in and returns the stored profile.
func (s *Service) Touch(ctx context.Context, caller *chatbot.Caller) (*Profile, error) {
	if caller == nil || caller.ID == "" {
		return nil, errors.New("caller has no id")
	}
	return s.repo.Upsert(ctx, &Profile{ID: caller.ID, Email: caller.Email})
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.Get(ctx, id)
}
