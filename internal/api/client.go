// Package api is the console's only door to the CMS backend.
//
// Every request goes through Client.Do, which attaches the stored bearer
// credential and inspects failed responses. A 401 carrying one of the
// configured "invalid session" messages purges the credential and fires the
// session-invalid hook once per credential; the caller still gets an error
// wrapping ErrSessionInvalid.
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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/session"
)

// ErrSessionInvalid marks a response that killed the stored credential.
var ErrSessionInvalid = errors.New("session is no longer valid")

// Error is a non-2xx backend response.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    []byte

	err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

func (e *Error) Unwrap() error { return e.err }

// MessageOr returns the backend's own message for err when it sent one, otherwise fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      session.Store
	logger     zerolog.Logger

	invalidMessages  map[string]struct{}
	onSessionInvalid func()

	// Serialises compare-and-clear of the credential.
	invalidateMu sync.Mutex
}

type Option func(*Client)

// WithHTTPClient replaces the default gzip-aware client. Tests pass httptest clients here.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "api").Logger() }
}

// WithInvalidSessionMessages sets the error messages that, with a 401, invalidate the credential.
func WithInvalidSessionMessages(msgs []string) Option {
	return func(c *Client) {
		c.invalidMessages = make(map[string]struct{}, len(msgs))
		for _, m := range msgs {
			c.invalidMessages[strings.TrimSpace(m)] = struct{}{}
		}
	}
}

// OnSessionInvalid registers the redirect-to-login hook. It runs after the credential is cleared.
func OnSessionInvalid(fn func()) Option {
	return func(c *Client) { c.onSessionInvalid = fn }
}

func New(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	u, err := url.ParseRequestURI(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if store == nil {
		return nil, errors.New("api: nil session store")
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		store:  store,
		logger: zerolog.Nop(),
	}
	WithInvalidSessionMessages(config.AppConfig.API.InvalidSessionMessages)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Session exposes the store the client reads its credential from.
func (c *Client) Session() session.Store {
	return c.store
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends req with the current credential attached. Any status >= 400 is
// returned as *Error and the response body is consumed; on success the caller
// owns resp.Body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	sent, hasCredential := c.store.Get()
	if hasCredential {
		req.Header.Set(config.HAuthorization, "Bearer "+string(sent))
	}
	if req.Header.Get(config.HAccept) == "" {
		req.Header.Set(config.HAccept, config.CTypeJSON)
	}

	log := c.logger.With().Str("method", req.Method).Str("path", req.URL.Path).Logger()
	log.Debug().Bool("authenticated", hasCredential).Msg("Sending request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(req.Method, "error").Inc()
		log.Error().Err(err).Msg("Request to backend failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request to backend timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to communicate with backend: %w", err)
	}
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	apiErr := &Error{
		Method:  req.Method,
		Path:    req.URL.Path,
		Status:  resp.StatusCode,
		Message: errorMessage(body),
		Body:    body,
	}
	log.Warn().Int("status", resp.StatusCode).Str("message", apiErr.Message).Msg("Backend returned an error")

	if resp.StatusCode == http.StatusUnauthorized && c.isInvalidSession(body) {
		apiErr.err = ErrSessionInvalid
		c.invalidate(sent)
	}
	return nil, apiErr
}

// errorMessage pulls a human readable reason out of an error payload.
// The backend uses both {"error": "..."} and {"message": "..."}.
func errorMessage(body []byte) string {
	if msg, err := jsonparser.GetString(body, "message"); err == nil && msg != "" {
		return msg
	}
	if msg, err := jsonparser.GetString(body, "error"); err == nil && msg != "" {
		return msg
	}
	return ""
}

func (c *Client) isInvalidSession(body []byte) bool {
	msg, err := jsonparser.GetString(body, "error")
	if err != nil {
		return false
	}
	_, ok := c.invalidMessages[strings.TrimSpace(msg)]
	return ok
}

// invalidate clears the credential only if it is still the one that was sent,
// so concurrent failures with the same token clear and redirect exactly once.
func (c *Client) invalidate(sent session.Credential) {
	c.invalidateMu.Lock()
	current, ok := c.store.Get()
	if !ok || current != sent {
		c.invalidateMu.Unlock()
		return
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear invalid credential")
	}
	c.invalidateMu.Unlock()

	sessionInvalidations.Inc()
	c.logger.Warn().Msg("Session invalidated by backend, redirecting to login")
	if c.onSessionInvalid != nil {
		c.onSessionInvalid()
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// doJSON sends in as a JSON body and decodes the "data" member of the reply into out.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("internal error marshalling request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("internal error creating request: %w", err)
	}
	if in != nil {
		req.Header.Set(config.HCType, config.CTypeJSON)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("invalid response format from %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("invalid data in response from %s %s: %w", method, path, err)
	}
	return nil
}
