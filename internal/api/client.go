// Package api is a thin client for the remote /tasks collection resource.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Makepad-fr/tasks/internal/model"
)

// DefaultBaseURL is where the collection lives unless configured otherwise.
const DefaultBaseURL = "http://localhost:3002"

// DefaultTimeout bounds each request unless WithTimeout says otherwise.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client issues one request per call; it keeps no state besides its config.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The Client works on a
// copy, so hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithToken sends Authorization: Bearer <token> on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New parses baseURL (scheme and host required) and returns a Client.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q: scheme and host required", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{base: u, http: http.DefaultClient, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.http
	hc.Timeout = c.timeout
	c.http = &hc
	return c, nil
}

// BaseURL returns the collection's base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// List fetches every task: GET /tasks.
func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, c.collection(), nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

type createBody struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Create posts a new, not completed task and returns what the server stored.
func (c *Client) Create(ctx context.Context, title string) (model.Task, error) {
	var created model.Task
	err := c.do(ctx, http.MethodPost, c.collection(), createBody{Title: title}, &created)
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

type patchBody struct {
	Completed bool `json:"completed"`
}

// SetCompleted patches the completed flag of one task.
func (c *Client) SetCompleted(ctx context.Context, id model.ID, completed bool) error {
	if err := c.do(ctx, http.MethodPatch, c.item(id), patchBody{Completed: completed}, nil); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// Delete removes one task.
func (c *Client) Delete(ctx context.Context, id model.ID) error {
	if err := c.do(ctx, http.MethodDelete, c.item(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (c *Client) collection() string {
	return c.base.JoinPath("tasks").String()
}

// item escapes id so it always stays a single path segment.
func (c *Client) item(id model.ID) string {
	u := c.base.JoinPath("tasks")
	seg := url.PathEscape(id.String())
	u.RawPath = u.EscapedPath() + "/" + seg
	u.Path += "/" + id.String()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
