// Package relay is the server side of the board sync: it verifies
// connections, tracks which rooms each connection has joined, appends
// published shapes to the durable event log, and fans them out to the other
// members of the room.
package relay

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"sketchroom/internal/protocol"
)

// Verifier checks a connect-time credential token and returns the principal
// id it carries. Verification happens exactly once per connection.
type Verifier interface {
	Verify(token string) (string, error)
}

// EventLog durably appends published shapes in acceptance order. Append
// returns the assigned position.
type EventLog interface {
	Append(ctx context.Context, roomID, userID string, payload []byte) (int64, error)
}

// messageConn is the part of a websocket connection the relay writes to.
// It exists so tests can drive the relay without a network.
type messageConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// session is one live connection: a verified principal plus the set of rooms
// it has joined. The room set is guarded by the relay's registry lock; the
// write lock serializes frames onto the connection.
type session struct {
	conn    messageConn
	userID  string
	writeMu sync.Mutex
	rooms   map[string]bool
}

func (s *session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Relay is the connection registry and fan-out broadcaster. The secondary
// room index lets publish iterate only the target room's members instead of
// scanning every connection.
type Relay struct {
	verifier Verifier
	eventLog EventLog
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*session]bool
	rooms    map[string]map[*session]bool

	// publishMu serializes the append-then-fanout step per room, so delivery
	// order equals acceptance order without one room's slow append stalling
	// another room's traffic.
	publishMuMu sync.Mutex
	publishMu   map[string]*sync.Mutex
}

// New creates a relay backed by the given verifier and event log.
func New(verifier Verifier, eventLog EventLog) *Relay {
	return &Relay{
		verifier: verifier,
		eventLog: eventLog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions:  make(map[*session]bool),
		rooms:     make(map[string]map[*session]bool),
		publishMu: make(map[string]*sync.Mutex),
	}
}

// ServeHTTP upgrades the request to a websocket session. The token query
// parameter is verified before the upgrade; a missing or invalid credential
// rejects the connection before any envelope is processed.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	token := req.URL.Query().Get("token")
	userID, err := r.verifier.Verify(token)
	if err != nil {
		log.Printf("[relay] rejected connection from %s: %v", req.RemoteAddr, err)
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("[relay] upgrade failed for %s: %v", req.RemoteAddr, err)
		return
	}

	s := &session{conn: conn, userID: userID, rooms: make(map[string]bool)}
	r.register(s)
	log.Printf("[relay] user %s connected from %s", userID, req.RemoteAddr)

	defer func() {
		r.disconnect(s)
		conn.Close()
		log.Printf("[relay] user %s disconnected", userID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.handleFrame(req.Context(), s, data)
	}
}

// handleFrame decodes and dispatches one inbound frame. A malformed frame is
// dropped so one bad client cannot affect the others.
func (r *Relay) handleFrame(ctx context.Context, s *session, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("[relay] dropping malformed frame from user %s: %v", s.userID, err)
		return
	}
	switch env.Type {
	case protocol.TypeJoinRoom:
		r.join(s, env.RoomID)
	case protocol.TypeLeaveRoom:
		r.leave(s, env.RoomID)
	case protocol.TypeChat:
		if len(env.Message) == 0 {
			return
		}
		r.publish(ctx, s, env.RoomID, env.Message)
	case protocol.TypeAI:
		if len(env.Message) == 0 {
			return
		}
		r.broadcastControl(s, env)
	}
}

func (r *Relay) register(s *session) {
	r.mu.Lock()
	r.sessions[s] = true
	r.mu.Unlock()
}

// join idempotently adds the room to the session's set. Holding a valid
// credential is the only check: any connected client may join any room it
// names. That is a documented limitation of the protocol, not an oversight.
func (r *Relay) join(s *session, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.rooms[roomID] {
		return
	}
	s.rooms[roomID] = true
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[*session]bool)
	}
	r.rooms[roomID][s] = true
	log.Printf("[relay] user %s joined room %s", s.userID, roomID)
}

func (r *Relay) leave(s *session, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !s.rooms[roomID] {
		return
	}
	delete(s.rooms, roomID)
	r.removeFromRoomLocked(s, roomID)
	log.Printf("[relay] user %s left room %s", s.userID, roomID)
}

func (r *Relay) removeFromRoomLocked(s *session, roomID string) {
	if members := r.rooms[roomID]; members != nil {
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, roomID)
			r.publishMuMu.Lock()
			delete(r.publishMu, roomID)
			r.publishMuMu.Unlock()
		}
	}
}

// disconnect removes the session and all its memberships. Persisted events
// are untouched.
func (r *Relay) disconnect(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sessions[s] {
		return
	}
	delete(r.sessions, s)
	for roomID := range s.rooms {
		r.removeFromRoomLocked(s, roomID)
	}
	s.rooms = make(map[string]bool)
}

// publish durably appends the payload and, only on append success, delivers
// it to every other member of the room. The sender never receives its own
// publish back: it already applied the shape optimistically. An unknown room
// simply has no members to deliver to.
func (r *Relay) publish(ctx context.Context, s *session, roomID string, payload []byte) {
	roomMu := r.roomPublishMu(roomID)
	roomMu.Lock()
	defer roomMu.Unlock()

	pos, err := r.eventLog.Append(ctx, roomID, s.userID, payload)
	if err != nil {
		log.Printf("[relay] append failed for room %s: %v", roomID, err)
		return
	}

	data, err := protocol.Encode(protocol.Envelope{Type: protocol.TypeChat, RoomID: roomID, Message: payload})
	if err != nil {
		log.Printf("[relay] encode failed for room %s: %v", roomID, err)
		return
	}
	for _, member := range r.roomMembers(roomID, s) {
		if err := member.send(data); err != nil {
			log.Printf("[relay] send to user %s failed: %v", member.userID, err)
		}
	}
	log.Printf("[relay] event %d published to room %s by user %s", pos, roomID, s.userID)
}

// broadcastControl delivers an ephemeral signal to every member of the room,
// the sender included, with no persistence step.
func (r *Relay) broadcastControl(s *session, env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		log.Printf("[relay] encode failed for room %s: %v", env.RoomID, err)
		return
	}
	for _, member := range r.roomMembers(env.RoomID, nil) {
		if err := member.send(data); err != nil {
			log.Printf("[relay] send to user %s failed: %v", member.userID, err)
		}
	}
}

// roomMembers snapshots the room's member list under the registry read lock,
// excluding the given session if non-nil.
func (r *Relay) roomMembers(roomID string, exclude *session) []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*session, 0, len(r.rooms[roomID]))
	for member := range r.rooms[roomID] {
		if member != exclude {
			members = append(members, member)
		}
	}
	return members
}

func (r *Relay) roomPublishMu(roomID string) *sync.Mutex {
	r.publishMuMu.Lock()
	defer r.publishMuMu.Unlock()
	mu, ok := r.publishMu[roomID]
	if !ok {
		mu = &sync.Mutex{}
		r.publishMu[roomID] = mu
	}
	return mu
}

// ConnectionCount returns the number of registered sessions.
func (r *Relay) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RoomMemberCount returns the number of sessions joined to the room.
func (r *Relay) RoomMemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
