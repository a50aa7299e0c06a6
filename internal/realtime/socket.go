// Package realtime is the websocket client carrying group events.
//
// Frames are JSON envelopes {"event": name, "data": payload}. Handlers
// registered with On run one at a time on the connection's reader
// goroutine, in delivery order.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/mmynk/splitroom/internal/metrics"
)

var ErrNotConnected = errors.New("realtime: not connected")

// Envelope is one frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw data of an event.
type Handler func(data json.RawMessage)

// TokenSource supplies the bearer token presented on connect.
type TokenSource func(ctx context.Context) (string, error)

type subscription struct {
	id      uint64
	event   string
	handler Handler
}

// Socket is a reusable realtime connection. It is safe for concurrent use.
type Socket struct {
	url     string
	origin  string
	tokens  TokenSource
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   []subscription
	nextID uint64

	writeMu sync.Mutex
}

// Option configures a Socket.
type Option func(*Socket)

// WithOrigin sets the Origin header sent on the handshake.
func WithOrigin(origin string) Option {
	return func(s *Socket) { s.origin = origin }
}

// WithTokenSource authenticates the handshake with a bearer token.
func WithTokenSource(tokens TokenSource) Option {
	return func(s *Socket) { s.tokens = tokens }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Socket) { s.logger = logger }
}

// WithMetrics counts received events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Socket) { s.metrics = m }
}

// NewSocket creates an unconnected socket for the ws:// or wss:// URL.
func NewSocket(rawURL string, opts ...Option) (*Socket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid realtime URL %q: scheme must be ws or wss", rawURL)
	}

	s := &Socket{
		url:    rawURL,
		origin: originFor(u),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func originFor(u *url.URL) string {
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// Connect dials the server unless already connected.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	config, err := websocket.NewConfig(s.url, s.origin)
	if err != nil {
		return fmt.Errorf("realtime config: %w", err)
	}
	if s.tokens != nil {
		token, err := s.tokens(ctx)
		if err != nil {
			return fmt.Errorf("realtime token: %w", err)
		}
		config.Header.Set("Authorization", "Bearer "+token)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}
	s.conn = conn
	s.logger.Info("Realtime connected", "url", s.url)

	go s.readLoop(conn)
	return nil
}

// Connected reports whether the socket holds a live connection.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Emit sends an event. It does not wait for any acknowledgement.
func (s *Socket) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := websocket.JSON.Send(conn, env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	s.logger.Debug("Realtime event sent", "event", event)
	return nil
}

// On registers a handler for event and returns the function that releases
// it. Releasing more than once is harmless.
func (s *Socket) On(event string, h Handler) (release func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, event: event, handler: h})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Handlers returns the number of handlers registered for event.
func (s *Socket) Handlers(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.event == event {
			n++
		}
	}
	return n
}

// Close drops the connection. Registered handlers are kept so the socket
// can be connected again; no disconnect event is raised.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.logger.Info("Realtime closed")
	return conn.Close()
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	var err error
	for {
		var env Envelope
		if err = websocket.JSON.Receive(conn, &env); err != nil {
			break
		}
		if env.Event == "" {
			s.logger.Warn("Dropping realtime frame without event name")
			continue
		}
		s.metrics.RealtimeEvent(env.Event)
		s.dispatch(env.Event, env.Data)
	}

	s.mu.Lock()
	lost := s.conn == conn
	if lost {
		s.conn = nil
	}
	s.mu.Unlock()
	if !lost {
		return
	}

	conn.Close()
	s.logger.Warn("Realtime connection lost", "error", err)
	s.dispatch(EventDisconnect, nil)
}

func (s *Socket) dispatch(event string, data json.RawMessage) {
	s.mu.Lock()
	var handlers []Handler
	for _, sub := range s.subs {
		if sub.event == event {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.Unlock()

	if len(handlers) == 0 {
		s.logger.Debug("Unhandled realtime event", "event", event)
		return
	}
	for _, h := range handlers {
		h(data)
	}
}
