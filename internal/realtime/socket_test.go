package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

// testServer records client frames and lets the test push frames back.
type testServer struct {
	srv *httptest.Server
	url string

	mu       sync.Mutex
	conns    []*websocket.Conn
	auth     []string
	received []Envelope
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.srv = httptest.NewServer(websocket.Server{Handler: func(c *websocket.Conn) {
		ts.mu.Lock()
		ts.conns = append(ts.conns, c)
		ts.auth = append(ts.auth, c.Request().Header.Get("Authorization"))
		ts.mu.Unlock()
		for {
			var env Envelope
			if err := websocket.JSON.Receive(c, &env); err != nil {
				return
			}
			ts.mu.Lock()
			ts.received = append(ts.received, env)
			ts.mu.Unlock()
		}
	}})
	ts.url = "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	t.Cleanup(func() {
		ts.dropAll()
		ts.srv.Close()
	})
	return ts
}

func (ts *testServer) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	ts.mu.Lock()
	conns := append([]*websocket.Conn(nil), ts.conns...)
	ts.mu.Unlock()
	for _, c := range conns {
		if err := websocket.JSON.Send(c, Envelope{Event: event, Data: data}); err != nil {
			t.Fatalf("push %s: %v", event, err)
		}
	}
}

func (ts *testServer) dropAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, c := range ts.conns {
		c.Close()
	}
}

func (ts *testServer) connections() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.conns)
}

func (ts *testServer) frames() []Envelope {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]Envelope(nil), ts.received...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connect(t *testing.T, ts *testServer, opts ...Option) *Socket {
	t.Helper()
	s, err := NewSocket(ts.url, opts...)
	if err != nil {
		t.Fatalf("NewSocket failed: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	waitFor(t, "server connection", func() bool { return ts.connections() == 1 })
	return s
}

func TestNewSocket_RejectsNonWebsocketURL(t *testing.T) {
	for _, raw := range []string{"http://localhost/ws", "localhost:8080", "://bad"} {
		if _, err := NewSocket(raw); err == nil {
			t.Errorf("NewSocket(%q) succeeded, want error", raw)
		}
	}
}

func TestSocket_EmitSendsEnvelope(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	if err := s.Emit(EventJoinGroup, JoinGroup{GroupID: "g1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	waitFor(t, "joinGroup frame", func() bool { return len(ts.frames()) == 1 })

	got := ts.frames()[0]
	if got.Event != EventJoinGroup {
		t.Errorf("event = %q, want %q", got.Event, EventJoinGroup)
	}
	var join JoinGroup
	if err := json.Unmarshal(got.Data, &join); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if join.GroupID != "g1" {
		t.Errorf("groupId = %q, want g1", join.GroupID)
	}
}

func TestSocket_ConnectIsNoOpWhenConnected(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := ts.connections(); n != 1 {
		t.Errorf("server saw %d connections, want 1", n)
	}
	if !s.Connected() {
		t.Error("Connected() = false, want true")
	}
}

func TestSocket_HandlersRunInDeliveryOrder(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	var (
		mu  sync.Mutex
		got []string
	)
	s.On(EventNewMessage, func(data json.RawMessage) {
		var p MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		mu.Lock()
		got = append(got, p.Message)
		mu.Unlock()
	})

	want := []string{"one", "two", "three", "four"}
	for _, m := range want {
		ts.push(t, EventNewMessage, map[string]string{"message": m, "userId": "u1", "user": "Ann"})
	}

	waitFor(t, "all messages", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	})
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("messages = %v, want %v", got, want)
		}
	}
}

func TestSocket_ReleaseStopsDelivery(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	var mu sync.Mutex
	counts := map[string]int{}
	release := s.On(EventMemberAdded, func(json.RawMessage) {
		mu.Lock()
		counts["released"]++
		mu.Unlock()
	})
	s.On(EventMemberAdded, func(json.RawMessage) {
		mu.Lock()
		counts["kept"]++
		mu.Unlock()
	})
	if n := s.Handlers(EventMemberAdded); n != 2 {
		t.Fatalf("Handlers = %d, want 2", n)
	}

	release()
	release()
	if n := s.Handlers(EventMemberAdded); n != 1 {
		t.Fatalf("Handlers after release = %d, want 1", n)
	}

	ts.push(t, EventMemberAdded, MemberEvent{Name: "Bob"})
	waitFor(t, "kept handler", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["kept"] == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if counts["released"] != 0 {
		t.Errorf("released handler ran %d times", counts["released"])
	}
}

func TestSocket_DisconnectEventOnTransportFailure(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	disconnected := make(chan struct{})
	s.On(EventDisconnect, func(data json.RawMessage) {
		if data != nil {
			t.Errorf("disconnect data = %s, want nil", data)
		}
		close(disconnected)
	})

	ts.dropAll()
	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("no disconnect event")
	}
	if s.Connected() {
		t.Error("Connected() = true after failure")
	}
	if err := s.Emit(EventJoinUser, JoinUser{UserID: "u1"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit after failure = %v, want ErrNotConnected", err)
	}
}

func TestSocket_CloseRaisesNoDisconnect(t *testing.T) {
	ts := newTestServer(t)
	s := connect(t, ts)

	var mu sync.Mutex
	fired := false
	s.On(EventDisconnect, func(json.RawMessage) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("disconnect fired after Close")
	}
}

func TestSocket_TokenSource(t *testing.T) {
	t.Run("sets bearer header", func(t *testing.T) {
		ts := newTestServer(t)
		connect(t, ts, WithTokenSource(func(context.Context) (string, error) { return "tok-1", nil }))

		ts.mu.Lock()
		defer ts.mu.Unlock()
		if ts.auth[0] != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", ts.auth[0], "Bearer tok-1")
		}
	})

	t.Run("token error aborts connect", func(t *testing.T) {
		ts := newTestServer(t)
		errNoToken := errors.New("no token")
		s, err := NewSocket(ts.url, WithTokenSource(func(context.Context) (string, error) { return "", errNoToken }))
		if err != nil {
			t.Fatalf("NewSocket failed: %v", err)
		}

		if err := s.Connect(context.Background()); !errors.Is(err, errNoToken) {
			t.Fatalf("Connect = %v, want errNoToken", err)
		}
		if s.Connected() {
			t.Error("Connected() = true after failed connect")
		}
		if n := ts.connections(); n != 0 {
			t.Errorf("server saw %d connections, want 0", n)
		}
	})
}

func TestMemberEvent_Label(t *testing.T) {
	tests := []struct {
		event MemberEvent
		want  string
	}{
		{MemberEvent{Name: "Bob", Email: "bob@example.com"}, "Bob"},
		{MemberEvent{Email: "bob@example.com"}, "bob@example.com"},
		{MemberEvent{}, ""},
	}
	for _, tt := range tests {
		if got := tt.event.Label(); got != tt.want {
			t.Errorf("%+v.Label() = %q, want %q", tt.event, got, tt.want)
		}
	}
}
