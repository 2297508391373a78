// Package client is a cookie-session HTTP client for the HelixDesk API. A
// request answered with 401 triggers exactly one refresh and one retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	refreshPath    = "/api/auth/refresh-token"
	refreshTimeout = 15 * time.Second
)

// ErrSessionExpired is returned when a request was rejected with 401 and the
// refresh that followed failed. The caller has to sign in again.
var ErrSessionExpired = errors.New("session expired")

// Error is a non-2xx API response decoded from the error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

type Client struct {
	base    *url.URL
	http    *http.Client
	refresh singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar is replaced with a
// fresh cookie jar when nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}

	return c, nil
}

// Do sends a request with body as its payload. On 401 it refreshes the
// session once and retries once; the retry's response is returned as is.
func (c *Client) Do(ctx context.Context, method string, path string, contentType string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || path == refreshPath {
		return resp, nil
	}
	drain(resp)

	if err := c.refreshSession(ctx); err != nil {
		return nil, err
	}

	return c.send(ctx, method, path, contentType, body)
}

// refreshSession collapses concurrent refreshes into one request. The shared
// request is detached from the first caller's cancellation; each caller still
// stops waiting when its own ctx ends.
func (c *Client) refreshSession(ctx context.Context) error {
	result := c.refresh.DoChan(refreshPath, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		resp, err := c.send(refreshCtx, http.MethodPost, refreshPath, "", nil)
		if err != nil {
			return nil, err
		}
		defer drain(resp)

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: refresh answered %d", ErrSessionExpired, resp.StatusCode)
		}
		return nil, nil
	})

	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) send(ctx context.Context, method string, path string, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// JSON sends in as a JSON body (nil for none) and decodes the envelope's data
// into out (nil to discard).
func (c *Client) JSON(ctx context.Context, method string, path string, in any, out any) error {
	var (
		body        []byte
		contentType string
	)
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body, contentType = encoded, "application/json"
	}

	resp, err := c.Do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: status %d: %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		apiErr := &Error{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message, apiErr.Details = env.Error.Code, env.Error.Message, env.Error.Details
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

type roleData struct {
	Role string `json:"role"`
}

// VerifyOTP completes sign-in and stores the session cookies in the jar.
func (c *Client) VerifyOTP(ctx context.Context, email string, code string) (string, error) {
	var out roleData
	err := c.JSON(ctx, http.MethodPost, "/api/auth/verify-otp", map[string]string{"email": email, "otp": code}, &out)
	return out.Role, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.JSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
