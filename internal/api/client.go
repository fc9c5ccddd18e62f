// internal/api/client.go
//
// Typed HTTP client for the NeuroScan backend. Every call takes a context,
// carries the bearer credential when one is required, and maps failures onto
// a small taxonomy: *APIError for non-2xx responses (server message kept
// verbatim), ErrPatientNotFound for the expected 404 branch, and
// ErrUnreachable for transport failures.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// ErrUnreachable wraps transport-level failures. Views surface it as a
// generic connectivity message, never as the raw error text.
var ErrUnreachable = errors.New("server not reachable")

// APIError is a non-2xx response from the backend. Message is the
// server-provided error text when the body carried one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed (HTTP %d)", e.StatusCode)
}

// IsAuthError reports whether err is a 401/403 response.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// ClientOption customizes Client construction for tests and alternate
// transports.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// Client talks to the NeuroScan backend API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient builds a client rooted at baseURL (e.g. http://127.0.0.1:8000).
func NewClient(baseURL string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(strings.Trim(p, "/")))
	}
	// The backend routes all end with a trailing slash.
	return c.baseURL + "/api/" + strings.Join(escaped, "/") + "/"
}

// doJSON issues the request and decodes a 2xx JSON body into out (which may
// be nil). Non-2xx bodies are parsed for the backend's {"error": ...} shape.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", req.URL.String()).Msg("api: transport failure")
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.asAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) asAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Error != "":
			apiErr.Message = parsed.Error
		case parsed.Detail != "":
			apiErr.Message = parsed.Detail
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		}
	}
	c.log.Warn().Int("status", resp.StatusCode).Str("url", resp.Request.URL.String()).
		Str("message", apiErr.Message).Msg("api: request rejected")
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, token, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, token, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("api: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// multipartPart is one field or file in a multipart POST.
type multipartPart struct {
	field    string
	value    string
	filename string
	reader   io.Reader
}

func (c *Client) postMultipart(ctx context.Context, token, endpoint string, parts []multipartPart, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range parts {
		if part.reader != nil {
			fw, err := writer.CreateFormFile(part.field, part.filename)
			if err != nil {
				return fmt.Errorf("api: build multipart: %w", err)
			}
			if _, err := io.Copy(fw, part.reader); err != nil {
				return fmt.Errorf("api: read %s: %w", part.filename, err)
			}
			continue
		}
		if err := writer.WriteField(part.field, part.value); err != nil {
			return fmt.Errorf("api: build multipart: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("api: build multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	setBearer(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

func setBearer(req *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
