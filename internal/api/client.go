package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

// ErrUnreachable means the daemon did not answer.
var ErrUnreachable = errors.DaemonError("bedshift daemon is not reachable").Retryable().Build()

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon listening on addr. addr may be a
// host:port or a full URL.
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// State returns the current display state.
func (c *Client) State(ctx context.Context) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodGet, "/state", nil, &ds)
	return ds, err
}

// Setup creates or replaces the bedtime plan.
func (c *Client) Setup(ctx context.Context, s adherence.Survey) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodPost, "/plan", s, &ds)
	return ds, err
}

// Confirm confirms sleep for cycleID, or the current cycle when empty.
func (c *Client) Confirm(ctx context.Context, cycleID string) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodPost, "/confirm", CycleRequest{CycleID: cycleID}, &ds)
	return ds, err
}

// Skip skips cycleID, or the current cycle when empty.
func (c *Client) Skip(ctx context.Context, cycleID string) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodPost, "/skip", CycleRequest{CycleID: cycleID}, &ds)
	return ds, err
}

// Resume sends a foreground event.
func (c *Client) Resume(ctx context.Context) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodPost, "/resume", nil, &ds)
	return ds, err
}

// SetExactAllowed grants or revokes the exact-delivery capability.
func (c *Client) SetExactAllowed(ctx context.Context, allowed bool) (adherence.DisplayState, error) {
	var ds adherence.DisplayState
	err := c.do(ctx, http.MethodPut, "/permissions/exact", ExactPermission{Allowed: allowed}, &ds)
	return ds, err
}

// History returns the journal of one cycle when cycleID is set, otherwise the
// last days days.
func (c *Client) History(ctx context.Context, days int, cycleID string) (HistoryResponse, error) {
	q := url.Values{}
	if cycleID != "" {
		q.Set("cycle_id", cycleID)
	} else if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	path := "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var h HistoryResponse
	err := c.do(ctx, http.MethodGet, path, nil, &h)
	return h, err
}

// do performs a request and decodes the envelope's data into out. out is
// filled even when the server reports an error alongside committed state. A
// notice comes back as the informational error the daemon's machine returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "failed to encode request").Build()
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid daemon address").
			WithContext("addr", c.base).
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ErrUnreachable.WithContext("addr", c.base).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Code    string          `json:"code"`
		Notice  string          `json:"notice"`
		Details map[string]any  `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "unexpected daemon response").
			WithContext("status", resp.StatusCode).
			Build()
	}
	if len(env.Data) > 0 && out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "unexpected daemon response").Build()
		}
	}
	if env.Success {
		if env.Notice != "" {
			return remoteError(resp.StatusCode, env.Code, env.Notice, env.Details)
		}
		return nil
	}
	return remoteError(resp.StatusCode, env.Code, env.Error, env.Details)
}

// remoteError rebuilds the classified error the daemon reported.
func remoteError(status int, code, message string, details map[string]any) error {
	category := errors.ErrorCategory(code)
	if code == "" {
		category = errors.CategoryDaemon
	}
	if message == "" {
		message = fmt.Sprintf("daemon returned status %d", status)
	}
	b := errors.NewError(category, message)
	switch category {
	case errors.CategoryScheduling:
		b = b.UserAction()
	case errors.CategoryCycle:
		b = b.Info()
	}
	for k, v := range details {
		b = b.WithContext(k, v)
	}
	return b.Build()
}
