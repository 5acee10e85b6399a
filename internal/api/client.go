// Package api is the client for the CRM REST backend.
//
// Every request takes the credential from a session snapshot at build time.
// A 401 answering a request of the current session tears it down before the
// error is returned; one from an earlier session is only returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm-cli/internal/logger"
	"crm-cli/internal/session"
)

const (
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Session    *session.Session
}

type Client struct {
	base string
	hc   *http.Client
	sess *session.Session
	log  zerolog.Logger
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url is required")
	}
	if opts.Session == nil {
		return nil, errors.New("api: session is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base: base,
		hc:   hc,
		sess: opts.Session,
		log:  logger.Get().With().Str("component", "api").Logger(),
	}, nil
}

func (c *Client) Session() *session.Session { return c.sess }

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any

	// cred overrides the session credential (login probe). A 401 on an
	// overridden credential does not tear the session down.
	cred     session.Credential
	override bool
	anon     bool
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, call{method: http.MethodGet, path: path, query: q, out: out})
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, call{method: method, path: path, body: body, out: out})
}

func (c *Client) do(ctx context.Context, cl call) error {
	cred := cl.cred
	var gen uint64
	if !cl.override && !cl.anon {
		snap := c.sess.Snapshot()
		cred, gen = snap.Credential, snap.Generation
	}

	u := c.base + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var rd io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", cl.method, cl.path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, rd)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", cl.method, cl.path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h := cred.Header(); h != "" {
		req.Header.Set("Authorization", h)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", cl.method).Str("path", cl.path).Str("request_id", reqID).Msg("request failed")
		return &Error{Kind: KindNetwork, Method: cl.method, Path: cl.path, Err: err}
	}
	defer resp.Body.Close()

	ev := c.log.Debug()
	if resp.StatusCode >= 500 {
		ev = c.log.Warn()
	}
	ev.Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Str("request_id", reqID).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp, cl.method, cl.path)
		if apiErr.Kind == KindUnauthorized && !cl.override && !cl.anon {
			c.sess.ExpireAt(context.WithoutCancel(ctx), gen)
		}
		return apiErr
	}

	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Method: cl.method, Path: cl.path, Err: err}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, cl.out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", cl.method, cl.path, err)
	}
	return nil
}

type errorBody struct {
	Message          string            `json:"message"`
	Error            string            `json:"error"`
	ValidationErrors map[string]string `json:"validationErrors"`
}

func decodeError(resp *http.Response, method, path string) *Error {
	e := &Error{
		Kind:   KindForStatus(resp.StatusCode),
		Status: resp.StatusCode,
		Method: method,
		Path:   path,
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(b, &body) == nil {
		e.Message = strings.TrimSpace(body.Message)
		if len(body.ValidationErrors) > 0 {
			e.Fields = body.ValidationErrors
		}
	}
	return e
}
