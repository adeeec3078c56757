package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
)

// ResourceUploader stores files through the API's resources endpoint, for
// callers that hold no object-store credentials of their own.
type ResourceUploader struct {
	c *Client
}

// Resources returns an uploader bound to c.
func (c *Client) Resources() *ResourceUploader {
	return &ResourceUploader{c: c}
}

// Upload sends files in one request and returns their paths in input order.
// The server files uploads under the credential's subject, so callerID is
// only checked for presence. Any server-side rejection fails the whole call.
func (u *ResourceUploader) Upload(ctx context.Context, callerID string, files []intake.File) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if callerID == "" {
		return nil, fmt.Errorf("%w: no caller", chatbot.ErrUploadFailed)
	}
	res, err := u.c.UploadResources(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chatbot.ErrUploadFailed, err)
	}
	if len(res.Rejected) > 0 {
		msgs := make([]string, 0, len(res.Rejected))
		for _, r := range res.Rejected {
			msgs = append(msgs, r.Reason)
		}
		return nil, fmt.Errorf("%w: %s", chatbot.ErrUploadFailed, strings.Join(msgs, "; "))
	}
	if len(res.Paths) != len(files) {
		return nil, fmt.Errorf("%w: stored %d of %d files", chatbot.ErrUploadFailed, len(res.Paths), len(files))
	}
	return res.Paths, nil
}
