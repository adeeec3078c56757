package attempt

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
	"github.com/botdash/botdash/internal/notify"
	"github.com/botdash/botdash/internal/uploader"
)

type session struct{ caller *chatbot.Caller }

func (s session) Caller(ctx context.Context) (*chatbot.Caller, error) {
	if s.caller == nil {
		return nil, errors.New("no session")
	}
	return s.caller, nil
}

type countingStore struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
	// failName limits err to the object whose key ends in failName.
	failName string
}

func (s *countingStore) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil && (s.failName == "" || strings.HasSuffix(key, "-"+s.failName)) {
		return "", s.err
	}
	return key, nil
}

type provisioner struct {
	calls int
	got   chatbot.ProvisionRequest
	err   error
}

func (p *provisioner) Provision(ctx context.Context, req chatbot.ProvisionRequest) (*chatbot.Chatbot, error) {
	p.calls++
	p.got = req
	if p.err != nil {
		return nil, p.err
	}
	return &chatbot.Chatbot{ID: "bot-1", Name: req.Name, ResourceFilePaths: req.ResourceFiles, EmbedSnippet: "<script>"}, nil
}

type refresher struct{ calls int }

func (r *refresher) Refresh(ctx context.Context) error {
	r.calls++
	return nil
}

type fixture struct {
	ctl   *Controller
	store *countingStore
	prov  *provisioner
	dir   *refresher
	rec   *notify.Recorder
}

func newFixture(caller *chatbot.Caller) *fixture {
	f := &fixture{store: &countingStore{}, prov: &provisioner{}, dir: &refresher{}, rec: &notify.Recorder{}}
	f.ctl = New(Deps{
		Session:     session{caller: caller},
		Uploader:    uploader.New(f.store),
		Provisioner: f.prov,
		Directory:   f.dir,
		Notifier:    f.rec,
	})
	return f
}

func file(name, contentType string, size int64) intake.File {
	return intake.File{Name: name, Size: size, ContentType: contentType, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("x")), nil
	}}
}

func form() chatbot.ProvisionRequest {
	return chatbot.ProvisionRequest{Name: "Support Bot", PersonalityStyle: chatbot.Friendly, ThemeColor: "#3b82f6", SystemPrompt: "Help users."}
}

var alice = &chatbot.Caller{ID: "alice"}

func TestSubmit_NoFilesSkipsStorage(t *testing.T) {
	f := newFixture(alice)
	bot, err := f.ctl.Submit(context.Background(), form(), nil)
	require.NoError(t, err)
	assert.Equal(t, "bot-1", bot.ID)
	assert.Zero(t, f.store.calls.Load())
	assert.NotNil(t, f.prov.got.ResourceFiles)
	assert.Empty(t, f.prov.got.ResourceFiles)
	assert.Equal(t, Succeeded, f.ctl.State())
	assert.Equal(t, 1, f.dir.calls)

	all := f.rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, notify.Success, all[0].Level)
	assert.Equal(t, `Chatbot "Support Bot" has been created successfully.`, all[0].Message)
}

func TestSubmit_RejectionsNotifiedIndividually(t *testing.T) {
	f := newFixture(alice)
	files := []intake.File{
		file("guide.pdf", "application/pdf", 100),
		file("notes.docx", "application/msword", 100),
		file("huge.txt", "text/plain", intake.MaxFileSize+1),
		file("faq.txt", "text/plain", 10),
	}
	_, err := f.ctl.Submit(context.Background(), form(), files)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.store.calls.Load())
	require.Len(t, f.prov.got.ResourceFiles, 2)
	assert.True(t, strings.HasSuffix(f.prov.got.ResourceFiles[0], "-guide.pdf"))
	assert.True(t, strings.HasSuffix(f.prov.got.ResourceFiles[1], "-faq.txt"))

	all := f.rec.All()
	require.Len(t, all, 3)
	assert.Equal(t, notify.Notification{Level: notify.Error, Title: "Invalid file type", Message: "notes.docx must be a PDF or TXT file"}, all[0])
	assert.Equal(t, notify.Notification{Level: notify.Error, Title: "File too large", Message: "huge.txt must be less than 10MB"}, all[1])
	assert.Equal(t, notify.Success, all[2].Level)
}

func TestSubmit_NotLoggedIn(t *testing.T) {
	f := newFixture(nil)
	_, err := f.ctl.Submit(context.Background(), form(), []intake.File{file("guide.pdf", "application/pdf", 1)})
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Zero(t, f.store.calls.Load())
	assert.Zero(t, f.prov.calls)
	assert.Equal(t, Failed, f.ctl.State())
	all := f.rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, "You must be logged in to create a chatbot", all[0].Message)
}

func TestSubmit_UploadFailureStopsBeforeProvisioning(t *testing.T) {
	f := newFixture(alice)
	f.store.err = errors.New("bucket not found")
	_, err := f.ctl.Submit(context.Background(), form(), []intake.File{file("guide.pdf", "application/pdf", 1)})
	require.ErrorIs(t, err, chatbot.ErrUploadFailed)
	assert.Zero(t, f.prov.calls)
	assert.Zero(t, f.dir.calls)
	assert.Equal(t, Failed, f.ctl.State())
	assert.Equal(t, []notify.Level{notify.Error}, f.rec.Levels())
	assert.Contains(t, f.rec.All()[0].Message, "bucket not found")
}

func TestSubmit_OneFailedUploadAmongManyStopsProvisioning(t *testing.T) {
	f := newFixture(alice)
	f.store.err = errors.New("object too large")
	f.store.failName = "notes.txt"
	files := []intake.File{
		file("guide.pdf", "application/pdf", 1),
		file("notes.txt", "text/plain", 1),
		file("faq.pdf", "application/pdf", 1),
		file("terms.txt", "text/plain", 1),
	}
	_, err := f.ctl.Submit(context.Background(), form(), files)
	require.ErrorIs(t, err, chatbot.ErrUploadFailed)
	assert.Zero(t, f.prov.calls)
	assert.Zero(t, f.dir.calls)
	assert.Equal(t, Failed, f.ctl.State())
	assert.Equal(t, []notify.Level{notify.Error}, f.rec.Levels())
	assert.Contains(t, f.rec.All()[0].Message, "object too large")
}

func TestSubmit_ProvisioningFailureRefreshesDirectory(t *testing.T) {
	f := newFixture(alice)
	f.prov.err = &chatbot.PersistenceError{Phase: chatbot.PhasePatch, ChatbotID: "bot-9", Err: errors.New("timeout")}
	_, err := f.ctl.Submit(context.Background(), form(), nil)
	require.ErrorIs(t, err, chatbot.ErrPersistence)
	assert.Equal(t, 1, f.dir.calls)
	assert.Equal(t, Failed, f.ctl.State())
	assert.Equal(t, []notify.Level{notify.Error}, f.rec.Levels())
	assert.Equal(t, "Failed to update chatbot with embed code: timeout", f.rec.All()[0].Message)

	// the lock was released, a retry goes through
	f.prov.err = nil
	_, err = f.ctl.Submit(context.Background(), form(), nil)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, f.ctl.State())
}

func TestSubmit_RejectsConcurrentAttempt(t *testing.T) {
	f := newFixture(alice)
	f.store.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.ctl.Submit(context.Background(), form(), []intake.File{file("guide.pdf", "application/pdf", 1)})
		done <- err
	}()

	require.Eventually(t, func() bool { return f.store.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Uploading, f.ctl.State())

	_, err := f.ctl.Submit(context.Background(), form(), nil)
	require.ErrorIs(t, err, ErrAttemptInProgress)

	close(f.store.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.prov.calls)
	assert.Equal(t, Succeeded, f.ctl.State())
}
