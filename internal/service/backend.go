package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/darknetduel/client/internal/domain"
)

const maxErrorMessageLen = 200

// BackendClient talks to the game backend's REST API. Auth, request ids and
// logging live in the transport of httpClient.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewBackendClient(baseURL string, httpClient *http.Client) *BackendClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// APIError is a request the backend answered but did not accept.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	return nil
}

// backendMessage returns the message the backend attached to err, if any.
func backendMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func (c *BackendClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *BackendClient) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *BackendClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Message: messageFromBody(resp.Header.Get("Content-Type"), raw)}
		}
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

// messageFromBody pulls a readable message out of a non-JSON error body,
// typically an HTML page served by a proxy in front of the backend.
func messageFromBody(contentType string, raw []byte) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "text/html" {
		return truncate(strings.TrimSpace(string(raw)))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "body"} {
		if text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " "); text != "" {
			return truncate(text)
		}
	}
	return ""
}

func truncate(s string) string {
	if r := []rune(s); len(r) > maxErrorMessageLen {
		return string(r[:maxErrorMessageLen-3]) + "..."
	}
	return s
}
