package apitest

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/realtime"
)

type peer struct {
	conn    *websocket.Conn
	userID  string
	rooms   map[string]bool
	writeMu sync.Mutex
}

func (p *peer) send(env realtime.Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return websocket.JSON.Send(p.conn, env)
}

// hub tracks realtime connections and their rooms.
type hub struct {
	srv *Server

	mu       sync.Mutex
	peers    map[*websocket.Conn]*peer
	received []realtime.Envelope
}

func newHub(srv *Server) *hub {
	return &hub{srv: srv, peers: make(map[*websocket.Conn]*peer)}
}

func groupRoom(id string) string { return "group:" + id }
func userRoom(id string) string  { return "user:" + id }

func (h *hub) serve(conn *websocket.Conn) {
	user, err := h.srv.authorize(conn.Request().Header.Get("Authorization"))
	if err != nil {
		conn.Close()
		return
	}
	p := &peer{conn: conn, userID: user.ID, rooms: make(map[string]bool)}

	h.mu.Lock()
	h.peers[conn] = p
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.peers, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var env realtime.Envelope
		if err := websocket.JSON.Receive(conn, &env); err != nil {
			return
		}
		h.handle(p, user, env)
	}
}

func (h *hub) handle(p *peer, user models.User, env realtime.Envelope) {
	h.mu.Lock()
	h.received = append(h.received, env)
	h.mu.Unlock()

	switch env.Event {
	case realtime.EventJoinGroup:
		var msg realtime.JoinGroup
		if json.Unmarshal(env.Data, &msg) == nil && msg.GroupID != "" {
			h.join(p, groupRoom(msg.GroupID))
		}
	case realtime.EventJoinUser:
		var msg realtime.JoinUser
		if json.Unmarshal(env.Data, &msg) == nil && msg.UserID != "" {
			h.join(p, userRoom(msg.UserID))
		}
	case realtime.EventSendMessage:
		var msg realtime.SendMessage
		if json.Unmarshal(env.Data, &msg) != nil || msg.GroupID == "" {
			return
		}
		chat := models.ChatMessage{User: msg.User, UserID: msg.UserID, Message: msg.Message, Time: msg.Time}
		if chat.Time.IsZero() {
			chat.Time = time.Now().UTC()
		}

		h.srv.mu.Lock()
		g, ok := h.srv.groups[msg.GroupID]
		if ok {
			g.Messages = append(g.Messages, chat)
		}
		h.srv.mu.Unlock()
		if ok {
			h.broadcast(msg.GroupID, realtime.EventNewMessage, realtime.MessagePayload{GroupID: msg.GroupID, ChatMessage: chat})
		}
	default:
		h.srv.logger.Warn("Unknown realtime event", "event", env.Event, "user_id", user.ID)
	}
}

func (h *hub) join(p *peer, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p.rooms[room] = true
}

func (h *hub) broadcast(groupID, event string, payload any) {
	h.toRoom(groupRoom(groupID), event, payload)
}

func (h *hub) toRoom(room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.srv.logger.Error("Failed to encode realtime payload", "event", event, "error", err)
		return
	}
	env := realtime.Envelope{Event: event, Data: data}

	h.mu.Lock()
	var targets []*peer
	for _, p := range h.peers {
		if p.rooms[room] {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()

	for _, p := range targets {
		if err := p.send(env); err != nil {
			h.srv.logger.Warn("Failed to deliver realtime event", "event", event, "user_id", p.userID, "error", err)
		}
	}
}

func (h *hub) dropAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.peers))
	for c := range h.peers {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Broadcast sends event to every connection in the group's room.
func (s *Server) Broadcast(groupID, event string, payload any) {
	s.hub.broadcast(groupID, event, payload)
}

// BroadcastRaw sends a frame with pre-encoded data to the group's room.
func (s *Server) BroadcastRaw(groupID, event string, data json.RawMessage) {
	s.hub.toRoom(groupRoom(groupID), event, data)
}

// InRoom returns how many connections joined the group's room.
func (s *Server) InRoom(groupID string) int {
	return s.roomSize(groupRoom(groupID))
}

// InUserRoom returns how many connections joined the user's room.
func (s *Server) InUserRoom(userID string) int {
	return s.roomSize(userRoom(userID))
}

func (s *Server) roomSize(room string) int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	n := 0
	for _, p := range s.hub.peers {
		if p.rooms[room] {
			n++
		}
	}
	return n
}

// Connections returns the number of open realtime connections.
func (s *Server) Connections() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return len(s.hub.peers)
}

// Received returns the frames clients sent with the given event name.
func (s *Server) Received(event string) []realtime.Envelope {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	var out []realtime.Envelope
	for _, env := range s.hub.received {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// DropConnections closes every realtime connection from the server side.
func (s *Server) DropConnections() {
	s.hub.dropAll()
}
