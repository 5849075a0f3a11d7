package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultTimeout = 300 * time.Second

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to one OpenCode server. Safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration

	mu        sync.Mutex
	http      *http.Client
	transport *http.Transport
	closed    bool
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
	}
}

// conn returns the shared http.Client, creating it on first use.
func (c *Client) conn() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.http == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: c.transport,
		}
	}
	return c.http, nil
}

// Close releases pooled connections. Calling it more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.http = nil
	c.transport = nil
	return nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, "health", http.MethodGet, "/global/health", nil, &out)
	return out, err
}

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	err := c.do(ctx, "list_sessions", http.MethodGet, "/session", nil, &out)
	return out, err
}

// CreateSession creates a session; an empty title lets the server pick one.
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}

	var out Session
	err := c.do(ctx, "create_session", http.MethodPost, "/session", body, &out)
	return out, err
}

func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	var out Session
	err := c.do(ctx, "get_session", http.MethodGet, sessionPath(id), nil, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) (bool, error) {
	var out bool
	err := c.do(ctx, "delete_session", http.MethodDelete, sessionPath(id), nil, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, sessionID, text string, model *Model) (Reply, error) {
	body := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	}
	if model != nil {
		body["model"] = model
	}

	var out Reply
	err := c.do(ctx, "send_message", http.MethodPost, sessionPath(sessionID)+"/message", body, &out)
	return out, err
}

// ExecuteCommand runs a server-side command; nil args are omitted from the body.
func (c *Client) ExecuteCommand(ctx context.Context, sessionID, command string, args any) (Reply, error) {
	body := map[string]any{"command": command}
	if args != nil {
		body["arguments"] = args
	}

	var out Reply
	err := c.do(ctx, "execute_command", http.MethodPost, sessionPath(sessionID)+"/command", body, &out)
	return out, err
}

func (c *Client) ListCommands(ctx context.Context) ([]Command, error) {
	var out []Command
	err := c.do(ctx, "list_commands", http.MethodGet, "/command", nil, &out)
	return out, err
}

// Messages returns raw message envelopes, newest window of at most limit.
func (c *Client) Messages(ctx context.Context, sessionID string, limit int) ([]json.RawMessage, error) {
	path := sessionPath(sessionID) + "/message?limit=" + strconv.Itoa(limit)

	var out []json.RawMessage
	err := c.do(ctx, "messages", http.MethodGet, path, nil, &out)
	return out, err
}

func sessionPath(id string) string {
	return "/session/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	err := c.roundTrip(ctx, op, method, path, body, out)
	observe(op, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body any, out any) error {
	hc, err := c.conn()
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		// drain so the connection goes back to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}
