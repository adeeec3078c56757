package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	objects map[string]string
	fail    map[string]error
	block   map[string]chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}, fail: map[string]error{}, block: map[string]chan struct{}{}}
}

func (f *fakeStore) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	for suffix, ch := range f.block {
		if strings.HasSuffix(key, suffix) {
			<-ch
		}
	}
	for suffix, err := range f.fail {
		if strings.HasSuffix(key, suffix) {
			return "", err
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.objects[key] = string(b)
	f.mu.Unlock()
	return key, nil
}

func textFile(name, body string) intake.File {
	return intake.File{
		Name:        name,
		Size:        int64(len(body)),
		ContentType: "text/plain",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func TestUpload_EmptySelectionMakesNoCalls(t *testing.T) {
	store := newFakeStore()
	paths, err := New(store).Upload(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
	assert.Zero(t, store.calls)
}

func TestUpload_ReturnsPathsInInputOrder(t *testing.T) {
	store := newFakeStore()
	files := []intake.File{textFile("a.txt", "A"), textFile("b.txt", "BB"), textFile("c.txt", "CCC")}
	paths, err := New(store).Upload(context.Background(), "alice", files)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for i, f := range files {
		assert.True(t, strings.HasPrefix(paths[i], "alice/"), paths[i])
		assert.True(t, strings.HasSuffix(paths[i], "-"+f.Name), paths[i])
	}
	assert.Equal(t, "BB", store.objects[paths[1]])
	assert.Equal(t, 3, store.calls)
}

func TestUpload_SameNameGetsDistinctKeys(t *testing.T) {
	store := newFakeStore()
	u := New(store)
	paths, err := u.Upload(context.Background(), "alice", []intake.File{textFile("same.txt", "1"), textFile("same.txt", "2")})
	require.NoError(t, err)
	assert.NotEqual(t, paths[0], paths[1])
	assert.Len(t, store.objects, 2)
}

func TestUpload_FirstFailureReturnsWithoutWaiting(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	store.block["-slow.txt"] = release
	store.fail["-bad.txt"] = errors.New("bucket quota exceeded")

	files := []intake.File{textFile("ok.txt", "x"), textFile("slow.txt", "y"), textFile("bad.txt", "z")}
	done := make(chan struct{})
	var paths []string
	var err error
	go func() {
		paths, err = New(store).Upload(context.Background(), "alice", files)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Upload waited for the blocked upload")
	}
	require.ErrorIs(t, err, chatbot.ErrUploadFailed)
	assert.Contains(t, err.Error(), "bad.txt")
	assert.Contains(t, err.Error(), "bucket quota exceeded")
	assert.Nil(t, paths)
}

func TestUpload_OpenErrorFailsAttempt(t *testing.T) {
	store := newFakeStore()
	f := intake.File{Name: "gone.pdf", Size: 1, ContentType: "application/pdf", Open: func() (io.ReadCloser, error) {
		return nil, fmt.Errorf("file vanished")
	}}
	_, err := New(store).Upload(context.Background(), "alice", []intake.File{f})
	require.ErrorIs(t, err, chatbot.ErrUploadFailed)
	assert.Zero(t, store.calls)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "u1/tok-guide.pdf", Key("u1", "tok", "guide.pdf"))
	assert.Equal(t, "u1/tok-guide.pdf", Key("u1", "tok", "../../etc/guide.pdf"))
	assert.Equal(t, "u1/tok-notes.txt", Key("u1", "tok", `C:\docs\notes.txt`))
}
