package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/chatbot/repository"
	"github.com/botdash/botdash/pkg/logger"
	"github.com/botdash/botdash/pkg/metrics"
)

// DefaultLoaderURL is the widget loader referenced by embed snippets when
// no other endpoint is configured.
const DefaultLoaderURL = "https://widget.botdash.dev/chatbot-widget"

// Authenticator resolves a bearer credential to the caller it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*chatbot.Caller, error)
}

// Presigner issues time-limited download URLs for stored objects.
type Presigner interface {
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	LoaderURL  string
	Presigner  Presigner
	PresignTTL time.Duration
}

// Service runs the privileged provisioning pipeline and the owner-scoped
// directory operations against one Repository.
type Service struct {
	repo       repository.Repository
	auth       Authenticator
	loaderURL  string
	presigner  Presigner
	presignTTL time.Duration
	log        *zap.SugaredLogger
	tracer     trace.Tracer
}

func New(repo repository.Repository, auth Authenticator, opts Options) *Service {
	s := &Service{
		repo:       repo,
		auth:       auth,
		loaderURL:  opts.LoaderURL,
		presigner:  opts.Presigner,
		presignTTL: opts.PresignTTL,
		log:        logger.Named("create-chatbot"),
		tracer:     otel.Tracer("github.com/botdash/botdash/internal/chatbot/service"),
	}
	if s.loaderURL == "" {
		s.loaderURL = DefaultLoaderURL
	}
	if s.presignTTL <= 0 {
		s.presignTTL = 15 * time.Minute
	}
	return s
}

// Authenticate resolves a credential; every failure is reported as an
// *chatbot.AuthError.
func (s *Service) Authenticate(ctx context.Context, credential string) (*chatbot.Caller, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, &chatbot.AuthError{Reason: "No authorization header provided"}
	}
	if s.auth == nil {
		return nil, &chatbot.AuthError{Reason: "no identity provider configured"}
	}
	caller, err := s.auth.Authenticate(ctx, credential)
	if err != nil {
		var ae *chatbot.AuthError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &chatbot.AuthError{Reason: "invalid credential", Err: err}
	}
	if caller == nil || caller.ID == "" {
		return nil, &chatbot.AuthError{Reason: "User not authenticated"}
	}
	return caller, nil
}

// Provision authenticates the caller, validates req, inserts the chatbot,
// derives its embed snippet and patches the record with it. The returned
// chatbot is the stored record after the patch. Each step is a
// hard gate. When the patch fails the inserted record stays in place and the
// returned *chatbot.PersistenceError carries its id.
func (s *Service) Provision(ctx context.Context, credential string, req chatbot.ProvisionRequest) (*chatbot.Chatbot, error) {
	ctx, span := s.tracer.Start(ctx, "chatbot.provision")
	defer span.End()
	s.log.Info("Function started")

	stepCtx, stepSpan := s.tracer.Start(ctx, "authenticate")
	caller, err := s.Authenticate(stepCtx, credential)
	stepSpan.End()
	if err != nil {
		return nil, s.fail(span, "authenticate", err)
	}
	span.SetAttributes(attribute.String("caller.id", caller.ID))
	s.log.Infow("User authenticated", "userId", caller.ID)

	if err := req.Validate(); err != nil {
		return nil, s.fail(span, "validate", err)
	}

	s.log.Infow("Creating chatbot", "name", req.Name, "personalityStyle", req.PersonalityStyle, "themeColor", req.ThemeColor)
	bot := &chatbot.Chatbot{
		OwnerID:           caller.ID,
		Name:              req.Name,
		PersonalityStyle:  req.PersonalityStyle,
		ThemeColor:        req.ThemeColor,
		SystemPrompt:      req.SystemPrompt,
		ResourceFilePaths: append([]string{}, req.ResourceFiles...),
	}
	stepCtx, stepSpan = s.tracer.Start(ctx, "insert")
	err = s.repo.Insert(stepCtx, bot)
	stepSpan.End()
	if err != nil {
		s.log.Errorw("Database error", "error", err)
		return nil, s.fail(span, "insert", &chatbot.PersistenceError{Phase: chatbot.PhaseInsert, Err: err})
	}
	span.SetAttributes(attribute.String("chatbot.id", bot.ID))

	snippet := chatbot.EmbedSnippet(s.loaderURL, bot.ID)

	stepCtx, stepSpan = s.tracer.Start(ctx, "patch")
	updatedAt, err := s.repo.SetEmbedSnippet(stepCtx, bot.ID, snippet)
	stepSpan.End()
	if err != nil {
		s.log.Errorw("Database update error", "chatbotId", bot.ID, "error", err)
		return nil, s.fail(span, "patch", &chatbot.PersistenceError{Phase: chatbot.PhasePatch, ChatbotID: bot.ID, Err: err})
	}
	bot.EmbedSnippet = snippet
	bot.UpdatedAt = updatedAt

	metrics.ProvisionOutcomes.WithLabelValues("patch", "ok").Inc()
	s.log.Infow("Chatbot created successfully", "chatbotId", bot.ID)
	return bot, nil
}

func (s *Service) fail(span trace.Span, step string, err error) error {
	metrics.ProvisionOutcomes.WithLabelValues(step, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	s.log.Warnw("ERROR in create-chatbot", "step", step, "message", err.Error())
	return err
}

// List returns the owner's chatbots, newest first. An owner with no
// chatbots gets an empty, non-nil slice.
func (s *Service) List(ctx context.Context, ownerID string) ([]*chatbot.Chatbot, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*chatbot.Chatbot{}
	}
	return list, nil
}

// Delete removes one owned chatbot. Unknown ids and ids owned by someone
// else both yield chatbot.ErrNotFound.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return mapNotFound(err)
	}
	s.log.Infow("Chatbot deleted", "userId", ownerID, "chatbotId", id)
	return nil
}

// Orphans lists the owner's chatbots whose embed snippet was never stored.
func (s *Service) Orphans(ctx context.Context, ownerID string) ([]*chatbot.Chatbot, error) {
	list, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := []*chatbot.Chatbot{}
	for _, c := range list {
		if c.Orphaned() {
			out = append(out, c)
		}
	}
	return out, nil
}

// RepairEmbed stores the embed snippet of an owned chatbot that lacks one.
// A chatbot that already has a snippet is returned unchanged.
func (s *Service) RepairEmbed(ctx context.Context, ownerID, id string) (*chatbot.Chatbot, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !c.Orphaned() {
		return c, nil
	}
	snippet := chatbot.EmbedSnippet(s.loaderURL, c.ID)
	updatedAt, err := s.repo.SetEmbedSnippet(ctx, c.ID, snippet)
	if err != nil {
		return nil, &chatbot.PersistenceError{Phase: chatbot.PhasePatch, ChatbotID: c.ID, Err: err}
	}
	c.EmbedSnippet = snippet
	c.UpdatedAt = updatedAt
	s.log.Infow("Embed snippet repaired", "userId", ownerID, "chatbotId", c.ID)
	return c, nil
}

// ResourceLink is a download URL for one stored knowledge file.
type ResourceLink struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ErrNoObjectStore is returned by ResourceLinks when no Presigner is set.
var ErrNoObjectStore = errors.New("object storage not configured")

// ResourceLinks presigns every resource path of an owned chatbot.
func (s *Service) ResourceLinks(ctx context.Context, ownerID, id string) ([]ResourceLink, error) {
	if s.presigner == nil {
		return nil, ErrNoObjectStore
	}
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	links := make([]ResourceLink, 0, len(c.ResourceFilePaths))
	for _, p := range c.ResourceFilePaths {
		u, err := s.presigner.GetPresignedURL(ctx, p, s.presignTTL)
		if err != nil {
			return nil, err
		}
		links = append(links, ResourceLink{Path: p, URL: u})
	}
	return links, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return chatbot.ErrNotFound
	}
	return err
}
