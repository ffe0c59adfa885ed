// Package httpx is the thin JSON/multipart HTTP client shared by the
// Confluence, Jira and RTM adapters. It does not retry; callers wrap each
// request with the retry package.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// Authenticator decorates a request with credentials.
type Authenticator interface {
	Apply(req *http.Request)
}

// BasicAuth authenticates with a user and API token (Atlassian Cloud).
type BasicAuth struct {
	User  string
	Token string
}

// Apply implements Authenticator.
func (a BasicAuth) Apply(req *http.Request) {
	if a.User != "" || a.Token != "" {
		req.SetBasicAuth(a.User, a.Token)
	}
}

// BearerToken authenticates with a bearer token.
type BearerToken string

// Apply implements Authenticator.
func (t BearerToken) Apply(req *http.Request) {
	if t != "" {
		req.Header.Set("Authorization", "Bearer "+string(t))
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// HTTPStatus implements retry.StatusCoder.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Client issues requests relative to a base URL.
type Client struct {
	baseURL   string
	http      *http.Client
	auth      Authenticator
	userAgent string
	headers   http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAuth sets the authenticator.
func WithAuth(a Authenticator) Option {
	return func(c *Client) { c.auth = a }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a client for baseURL. Per-call timeouts come from the request
// context, so the default http.Client has no timeout of its own.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		userAgent: "herald",
		headers:   make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request describes one call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    io.Reader
	Content string
}

// Do sends req and returns the response body. Non-2xx responses become a
// *StatusError.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	target := c.URL(r.Path, r.Query)
	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Content != "" {
		req.Header.Set("Content-Type", r.Content)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.auth != nil {
		c.auth.Apply(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &StatusError{Method: r.Method, URL: target, StatusCode: resp.StatusCode, Body: text}
	}
	return body, nil
}

// JSON sends in as a JSON body (nil for none) and decodes the response into
// out (nil to discard).
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	r := Request{Method: method, Path: path, Query: query}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r.Body = bytes.NewReader(data)
		r.Content = "application/json"
	}

	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// FilePart is a file field in a multipart body.
type FilePart struct {
	Field       string
	Path        string
	ContentType string
}

// Multipart builds a multipart/form-data body from fields and files. It is
// rebuilt for every attempt so a retry never sends a drained reader.
func Multipart(fields map[string]string, files ...FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	for _, file := range files {
		if err := writeFilePart(w, file); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, file FilePart) error {
	data, err := os.ReadFile(file.Path) //#nosec G304 -- artifact paths are produced internally
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Path, err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, filepath.Base(file.Path)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create part for %s: %w", file.Path, err)
	}
	_, err = part.Write(data)
	return err
}

// ContentTypeFor returns the MIME type herald uses for an artifact path.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".zip":
		return "application/zip"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
