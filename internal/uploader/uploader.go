package uploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
	"github.com/botdash/botdash/pkg/logger"
	"github.com/botdash/botdash/pkg/metrics"
)

// ObjectStore accepts a keyed binary payload and returns the stored path.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Uploader pushes accepted knowledge files to object storage under a
// caller-scoped key.
type Uploader struct {
	store    ObjectStore
	newToken func() string
}

func New(store ObjectStore) *Uploader {
	return &Uploader{store: store, newToken: func() string { return uuid.Must(uuid.NewV7()).String() }}
}

// Key returns the object key for one file: {callerID}/{token}-{baseName}.
func Key(callerID, token, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	return callerID + "/" + token + "-" + base
}

// Upload stores all files concurrently and returns their paths in input
// order. It returns as soon as any upload fails; the remaining uploads see
// a cancelled context and their results are discarded. No files means no
// calls to the store.
func (u *Uploader) Upload(ctx context.Context, callerID string, files []intake.File) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	paths := make([]string, len(files))
	failed := make(chan error, 1)

	for i, f := range files {
		key := Key(callerID, u.newToken(), f.Name)
		g.Go(func() error {
			p, err := u.put(gctx, key, f)
			if err != nil {
				metrics.UploadedFiles.WithLabelValues("error").Inc()
				err = fmt.Errorf("%w: %s: %v", chatbot.ErrUploadFailed, f.Name, err)
				select {
				case failed <- err:
				default:
				}
				return err
			}
			metrics.UploadedFiles.WithLabelValues("ok").Inc()
			paths[i] = p
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-failed:
		logger.Warnf("upload for %s aborted: %v", callerID, err)
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return paths, nil
	}
}

func (u *Uploader) put(ctx context.Context, key string, f intake.File) (string, error) {
	if f.Open == nil {
		return "", fmt.Errorf("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return u.store.UploadFile(ctx, key, rc, f.Size, f.ContentType)
}
