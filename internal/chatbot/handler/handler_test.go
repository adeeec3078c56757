package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/chatbot/repository"
	"github.com/botdash/botdash/internal/chatbot/service"
	"github.com/botdash/botdash/internal/uploader"
	"github.com/botdash/botdash/pkg/middleware"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, credential string) (*chatbot.Caller, error) {
	switch credential {
	case "alice-token":
		return &chatbot.Caller{ID: "alice"}, nil
	case "bob-token":
		return &chatbot.Caller{ID: "bob"}, nil
	}
	return nil, errors.New("token is malformed")
}

type patchFailRepo struct {
	*repository.MemoryRepo
	fail bool
}

func (p *patchFailRepo) SetEmbedSnippet(ctx context.Context, id, snippet string) (time.Time, error) {
	if p.fail {
		return time.Time{}, errors.New("write conflict")
	}
	return p.MemoryRepo.SetEmbedSnippet(ctx, id, snippet)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memStore) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return key, nil
}

type presigner struct{}

func (presigner) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

type env struct {
	router *gin.Engine
	repo   *patchFailRepo
	store  *memStore
}

func newEnv(t *testing.T, opts service.Options) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := &patchFailRepo{MemoryRepo: repository.NewMemoryRepo()}
	store := &memStore{objects: map[string][]byte{}}
	svc := service.New(repo, fakeAuth{}, opts)
	r := gin.New()
	api := r.Group("/api/v1")
	auth := middleware.AuthMiddleware(fakeAuth{})
	RegisterChatbotRoutes(api, svc, nil, gin.HandlersChain{auth})
	RegisterResourceRoutes(api, uploader.New(store), gin.HandlersChain{auth}, 1<<20)
	return &env{router: r, repo: repo, store: store}
}

func (e *env) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) provision(t *testing.T, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(http.MethodPost, "/api/v1/chatbots", token, strings.NewReader(body), "application/json")
}

const supportBot = `{"name":"Support Bot","personalityStyle":"Friendly","themeColor":"#3b82f6","systemPrompt":"Help users.","resourceFiles":["alice/1-guide.pdf"]}`

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestProvisionEndpoint_Success(t *testing.T) {
	e := newEnv(t, service.Options{LoaderURL: "https://widget.test/loader"})
	w := e.provision(t, "alice-token", supportBot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool            `json:"success"`
		Chatbot chatbot.Chatbot `json:"chatbot"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Chatbot.ID)
	assert.Equal(t, "alice", resp.Chatbot.OwnerID)
	assert.Equal(t, []string{"alice/1-guide.pdf"}, resp.Chatbot.ResourceFilePaths)
	assert.Contains(t, resp.Chatbot.EmbedSnippet, resp.Chatbot.ID)
}

func TestProvisionEndpoint_FailuresAre500(t *testing.T) {
	e := newEnv(t, service.Options{})
	cases := map[string]struct {
		token, body, want string
	}{
		"no credential":       {"", supportBot, "No authorization header provided"},
		"bad credential":      {"forged", supportBot, "Authentication error"},
		"bad body no auth":    {"", `{"name":`, "Authentication error"},
		"bad body":            {"alice-token", `{"name":`, "Invalid request body"},
		"missing prompt":      {"alice-token", `{"name":"a","personalityStyle":"Friendly","themeColor":"#ffffff"}`, "Missing required fields"},
		"unknown personality": {"alice-token", `{"name":"a","personalityStyle":"Mean","themeColor":"#ffffff","systemPrompt":"p"}`, "Friendly, Professional, Humorous, Technical"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := e.provision(t, tc.token, tc.body)
			require.Equal(t, http.StatusInternalServerError, w.Code)
			var resp map[string]interface{}
			decode(t, w, &resp)
			assert.Contains(t, resp["error"], tc.want)
		})
	}

	w := e.do(http.MethodGet, "/api/v1/chatbots", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestProvisionEndpoint_PatchFailureReportsOrphan(t *testing.T) {
	e := newEnv(t, service.Options{})
	e.repo.fail = true
	w := e.provision(t, "alice-token", supportBot)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Contains(t, resp["error"], "Failed to update chatbot with embed code")
	require.NotEmpty(t, resp["chatbotId"])

	w = e.do(http.MethodGet, "/api/v1/chatbots/orphans", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var orphans []chatbot.Chatbot
	decode(t, w, &orphans)
	require.Len(t, orphans, 1)
	assert.Equal(t, resp["chatbotId"], orphans[0].ID)

	e.repo.fail = false
	w = e.do(http.MethodPost, "/api/v1/chatbots/"+resp["chatbotId"]+"/embed", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "embedSnippet")

	w = e.do(http.MethodPost, "/api/v1/chatbots/"+resp["chatbotId"]+"/embed", "bob-token", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDirectoryEndpoints(t *testing.T) {
	e := newEnv(t, service.Options{})
	require.Equal(t, http.StatusOK, e.provision(t, "alice-token", supportBot).Code)
	second := strings.Replace(supportBot, "Support Bot", "Sales Bot", 1)
	require.Equal(t, http.StatusOK, e.provision(t, "alice-token", second).Code)

	w := e.do(http.MethodGet, "/api/v1/chatbots", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, "/api/v1/chatbots", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []chatbot.Chatbot
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Sales Bot", list[0].Name)

	w = e.do(http.MethodGet, "/api/v1/chatbots", "bob-token", nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodDelete, "/api/v1/chatbots/"+list[0].ID, "bob-token", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodDelete, "/api/v1/chatbots/unknown", "alice-token", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodDelete, "/api/v1/chatbots/"+list[0].ID, "alice-token", nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/v1/chatbots", "alice-token", nil, "")
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Support Bot", list[0].Name)
}

func TestResourceLinksEndpoint(t *testing.T) {
	e := newEnv(t, service.Options{Presigner: presigner{}})
	w := e.provision(t, "alice-token", supportBot)
	var resp struct {
		Chatbot chatbot.Chatbot `json:"chatbot"`
	}
	decode(t, w, &resp)

	w = e.do(http.MethodGet, "/api/v1/chatbots/"+resp.Chatbot.ID+"/resources", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"links":[{"path":"alice/1-guide.pdf","url":"https://objects.test/alice/1-guide.pdf"}]}`, w.Body.String())

	noStore := newEnv(t, service.Options{})
	w = noStore.provision(t, "alice-token", supportBot)
	decode(t, w, &resp)
	w = noStore.do(http.MethodGet, "/api/v1/chatbots/"+resp.Chatbot.ID+"/resources", "alice-token", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type part struct {
	name, contentType, body string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, p.name))
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestResourcesEndpoint_UploadsAcceptedFiles(t *testing.T) {
	e := newEnv(t, service.Options{})
	body, ct := multipartBody(t,
		part{"guide.pdf", "application/pdf", "%PDF-1.4"},
		part{"notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "PK"},
		part{"faq.txt", "text/plain", "Q: A"},
		part{"readme.txt", "text/plain; charset=utf-8", "hi"},
	)
	w := e.do(http.MethodPost, "/api/v1/resources", "alice-token", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Paths    []string       `json:"paths"`
		Rejected []rejectedFile `json:"rejected"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Paths, 2)
	assert.True(t, strings.HasPrefix(resp.Paths[0], "alice/"))
	assert.True(t, strings.HasSuffix(resp.Paths[0], "-guide.pdf"))
	assert.True(t, strings.HasSuffix(resp.Paths[1], "-faq.txt"))
	assert.Equal(t, []rejectedFile{
		{File: "notes.docx", Reason: "notes.docx must be a PDF or TXT file"},
		{File: "readme.txt", Reason: "readme.txt must be a PDF or TXT file"},
	}, resp.Rejected)
	assert.Equal(t, "Q: A", string(e.store.objects[resp.Paths[1]]))
}

func TestResourcesEndpoint_Failures(t *testing.T) {
	e := newEnv(t, service.Options{})

	body, ct := multipartBody(t, part{"guide.pdf", "application/pdf", "x"})
	w := e.do(http.MethodPost, "/api/v1/resources", "", body, ct)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/v1/resources", "alice-token", strings.NewReader("nope"), "text/plain")
	require.Equal(t, http.StatusBadRequest, w.Code)

	e.store.err = errors.New("bucket unavailable")
	body, ct = multipartBody(t, part{"guide.pdf", "application/pdf", "x"})
	w = e.do(http.MethodPost, "/api/v1/resources", "alice-token", body, ct)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "upload failed")
	assert.NotContains(t, w.Body.String(), "paths")
}

func TestResourcesEndpoint_NoObjectStore(t *testing.T) {
	r := gin.New()
	RegisterResourceRoutes(r, nil, gin.HandlersChain{middleware.AuthMiddleware(fakeAuth{})}, 0)
	body, ct := multipartBody(t, part{"guide.pdf", "application/pdf", "x"})
	req := httptest.NewRequest(http.MethodPost, "/resources", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer alice-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_LimiterAfterAuthKeysByCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.New(repository.NewMemoryRepo(), fakeAuth{}, service.Options{})
	limit := gin.HandlersChain{middleware.RateLimitMiddleware(0.001, 1)}
	authed := append(gin.HandlersChain{middleware.AuthMiddleware(fakeAuth{})}, limit...)
	r := gin.New()
	api := r.Group("/api/v1")
	RegisterChatbotRoutes(api, svc, limit, authed)

	call := func(method, token string) int {
		req := httptest.NewRequest(method, "/api/v1/chatbots", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// every request comes from the same client IP
	require.Equal(t, http.StatusOK, call(http.MethodGet, "alice-token"))
	require.Equal(t, http.StatusTooManyRequests, call(http.MethodGet, "alice-token"))
	require.Equal(t, http.StatusOK, call(http.MethodGet, "bob-token"))
	require.Equal(t, http.StatusUnauthorized, call(http.MethodGet, ""))

	// provisioning authenticates in the handler, so its bucket is the IP
	assert.NotEqual(t, http.StatusTooManyRequests, call(http.MethodPost, ""))
	assert.Equal(t, http.StatusTooManyRequests, call(http.MethodPost, "alice-token"))
}
