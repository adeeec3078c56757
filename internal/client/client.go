// Package client is a typed HTTP client for the botdash API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/botdash/botdash/internal/chatbot"
	"github.com/botdash/botdash/internal/intake"
)

// APIError is a non-2xx response. ChatbotID is set when a provisioning call
// left a record without its embed snippet.
type APIError struct {
	Status    int
	Message   string
	ChatbotID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Unwrap maps well-known statuses to the chatbot error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return chatbot.ErrNotFound
	case e.Status == http.StatusUnauthorized:
		return chatbot.ErrAuthentication
	case e.ChatbotID != "":
		return chatbot.ErrPersistence
	}
	return nil
}

// Client calls the API with one bearer credential.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Caller resolves the credential to the signed-in caller.
func (c *Client) Caller(ctx context.Context) (*chatbot.Caller, error) {
	var out chatbot.Caller
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, "", &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "User not authenticated"}
	}
	return &out, nil
}

// Provision creates a chatbot.
func (c *Client) Provision(ctx context.Context, req chatbot.ProvisionRequest) (*chatbot.Chatbot, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Success bool             `json:"success"`
		Chatbot *chatbot.Chatbot `json:"chatbot"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chatbots", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Chatbot == nil {
		return nil, errors.New("provisioning response carried no chatbot")
	}
	return out.Chatbot, nil
}

// List returns the caller's chatbots, newest first.
func (c *Client) List(ctx context.Context) ([]*chatbot.Chatbot, error) {
	out := []*chatbot.Chatbot{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chatbots", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orphans returns the caller's chatbots that have no embed snippet.
func (c *Client) Orphans(ctx context.Context) ([]*chatbot.Chatbot, error) {
	out := []*chatbot.Chatbot{}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chatbots/orphans", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one owned chatbot.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chatbots/"+url.PathEscape(id), nil, "", nil)
}

// RepairEmbed stores the embed snippet of an orphaned chatbot.
func (c *Client) RepairEmbed(ctx context.Context, id string) (*chatbot.Chatbot, error) {
	var out struct {
		Chatbot *chatbot.Chatbot `json:"chatbot"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chatbots/"+url.PathEscape(id)+"/embed", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Chatbot, nil
}

// ResourceLink is a presigned download URL for one knowledge file.
type ResourceLink struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ResourceLinks returns download links for a chatbot's knowledge files.
func (c *Client) ResourceLinks(ctx context.Context, id string) ([]ResourceLink, error) {
	var out struct {
		Links []ResourceLink `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chatbots/"+url.PathEscape(id)+"/resources", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

// Rejected is a file the server refused.
type Rejected struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// UploadResult is the response of UploadResources.
type UploadResult struct {
	Paths    []string   `json:"paths"`
	Rejected []Rejected `json:"rejected"`
}

// UploadResources streams files as one multipart request.
func (c *Client) UploadResources(ctx context.Context, files []intake.File) (*UploadResult, error) {
	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()
	var out UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/resources", pr, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeParts(mw *multipart.Writer, files []intake.File) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

// Logout revokes the client's credential.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error     string `json:"error"`
			ChatbotID string `json:"chatbotId"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&e); err == nil {
			apiErr.Message = e.Error
			apiErr.ChatbotID = e.ChatbotID
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
