// Package api is the REST client for groups, members, invites and expenses.
//
// Every call except login and signup carries the bearer credential from the
// session store. Failures follow one taxonomy: a 401 clears the stored
// credential and redirects to login, a 404 on the group listing is an empty
// result, and everything else becomes an *Error whose Message is safe to
// show to the user.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmynk/splitroom/internal/metrics"
	"github.com/mmynk/splitroom/internal/middleware"
	"github.com/mmynk/splitroom/internal/navigation"
	"github.com/mmynk/splitroom/internal/session"
)

const (
	defaultTimeout           = 15 * time.Second
	defaultInviteConcurrency = 4
	maxErrorBody             = 64 << 10
)

// Client calls the REST API.
type Client struct {
	baseURL           string
	http              *http.Client
	transport         http.RoundTripper
	timeout           time.Duration
	session           *session.Store
	navigator         navigation.Navigator
	logger            *slog.Logger
	metrics           *metrics.Metrics
	inviteConcurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the base transport the middleware chain wraps.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithNavigator sets where the client redirects on session expiry.
func WithNavigator(n navigation.Navigator) Option {
	return func(c *Client) { c.navigator = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithInviteConcurrency bounds the parallel member additions of CreateGroup.
func WithInviteConcurrency(n int) Option {
	return func(c *Client) { c.inviteConcurrency = n }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, store *session.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}
	if store == nil {
		return nil, fmt.Errorf("api: session store required")
	}

	c := &Client{
		baseURL:           strings.TrimRight(u.String(), "/"),
		timeout:           defaultTimeout,
		session:           store,
		logger:            slog.Default(),
		inviteConcurrency: defaultInviteConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inviteConcurrency < 1 {
		c.inviteConcurrency = 1
	}

	c.http = &http.Client{
		Timeout: c.timeout,
		Transport: middleware.Chain(c.transport,
			middleware.RequestID(),
			middleware.Logging(c.logger),
			middleware.Bearer(store.Token),
		),
	}
	return c, nil
}

// request describes one API call.
type request struct {
	op        string
	method    string
	path      string
	body      any
	anonymous bool
}

// do performs r and decodes a successful JSON response into out.
// It reports whether a response body was decoded.
func (c *Client) do(ctx context.Context, r request, out any) (bool, error) {
	start := time.Now()
	decoded, err := c.roundTrip(ctx, r, out)
	c.metrics.ObserveRequest(r.op, outcome(err), time.Since(start))
	return decoded, err
}

func (c *Client) roundTrip(ctx context.Context, r request, out any) (bool, error) {
	ctx = middleware.WithOperation(ctx, r.op)
	if r.anonymous {
		ctx = middleware.WithAnonymous(ctx)
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return false, fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return false, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, c.transportError(ctx, r.op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, c.statusError(ctx, r, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &Error{Operation: r.op, Message: NetworkErrorMessage, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, &Error{Operation: r.op, Status: resp.StatusCode, Message: DefaultErrorMessage, Err: fmt.Errorf("decode response: %w", err)}
	}
	return true, nil
}

// transportError maps a failure that produced no HTTP response.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, session.ErrNoCredential), errors.Is(err, session.ErrExpired):
		c.expireSession(ctx, op)
		return &Error{Operation: op, Status: http.StatusUnauthorized, Message: UserMessage(err), Err: fmt.Errorf("%w: %w", ErrUnauthorized, err)}
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, context.Canceled)
	default:
		return &Error{Operation: op, Message: NetworkErrorMessage, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
}

// statusError maps an HTTP error status.
func (c *Client) statusError(ctx context.Context, r request, resp *http.Response) error {
	msg := serverMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized && r.anonymous:
		if msg == "" {
			msg = InvalidCredentialsMessage
		}
		return &Error{Operation: r.op, Status: resp.StatusCode, Message: msg, Err: ErrInvalidCredentials}
	case resp.StatusCode == http.StatusUnauthorized:
		c.expireSession(ctx, r.op)
		return &Error{Operation: r.op, Status: resp.StatusCode, Message: SessionExpiredMessage, Err: ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		if msg == "" {
			msg = "Not found."
		}
		return &Error{Operation: r.op, Status: resp.StatusCode, Message: msg, Err: ErrNotFound}
	default:
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return &Error{Operation: r.op, Status: resp.StatusCode, Message: msg}
	}
}

// expireSession clears the stored credential and redirects to login.
func (c *Client) expireSession(ctx context.Context, op string) {
	c.logger.Warn("Session rejected, clearing credential", "operation", op)
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, session.ErrClosed) {
		c.logger.Error("Failed to clear credential", "error", err)
	}
	if c.navigator != nil {
		c.navigator.Navigate(navigation.RouteLogin)
	}
}

// serverMessage extracts the error text from a JSON error body.
func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		var verr *ValidationError
		if errors.As(err, &verr) {
			return "invalid"
		}
		return "error"
	}
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
