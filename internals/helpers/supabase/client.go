// Package supabase is a thin REST client for the Supabase services the
// grant flow consumes: Auth (GoTrue) and Storage.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	http       *http.Client

	Auth    *AuthClient
	Storage *StorageClient
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL, anonKey, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 20 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	c.Auth = &AuthClient{c: c}
	c.Storage = &StorageClient{c: c}
	return c
}

// Error adalah error dari Supabase (status >= 400).
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase %d: %s", e.StatusCode, e.Message)
}

// parseError: GoTrue pakai msg / error_description, Storage pakai message / error.
func parseError(body []byte, status int) error {
	res := gjson.ParseBytes(body)
	msg := firstNonEmpty(
		res.Get("msg").String(),
		res.Get("error_description").String(),
		res.Get("message").String(),
		res.Get("error").String(),
	)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := firstNonEmpty(res.Get("error_code").String(), res.Get("code").String(), res.Get("statusCode").String())
	return &Error{StatusCode: status, Code: code, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// do mengirim request; bearer kosong = pakai anon key.
func (c *Client) do(ctx context.Context, method, url string, body []byte, bearer string, headers map[string]string) ([]byte, int, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil && headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
