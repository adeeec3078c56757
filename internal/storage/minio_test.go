package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinIOStorage_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), nil)
	require.Error(t, err)

	_, err = NewMinIOStorage(context.Background(), &MinIOConfig{})
	require.Error(t, err)

	_, err = NewMinIOStorage(context.Background(), &MinIOConfig{Endpoint: "localhost:9000"})
	require.ErrorContains(t, err, "bucket")
}

func TestEmptyKeysAreRejected(t *testing.T) {
	s := &MinIOStorage{bucket: "chatbot-resources"}
	_, err := s.UploadFile(context.Background(), "/", strings.NewReader(""), 0, "text/plain")
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = s.GetPresignedURL(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestEnabled(t *testing.T) {
	var c *MinIOConfig
	assert.False(t, c.Enabled())
	assert.False(t, (&MinIOConfig{Bucket: "b"}).Enabled())
	assert.True(t, (&MinIOConfig{Endpoint: "minio:9000"}).Enabled())
}
