// Package client connects a local canvas engine to a relay server: it
// resolves the room, replays its history, then exchanges live envelopes.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"sketchroom/internal/canvas"
	"sketchroom/internal/protocol"
	"sketchroom/internal/shape"
)

// Session is one live connection to a room. Create it with Dial.
type Session struct {
	conn   *websocket.Conn
	engine *canvas.Engine
	roomID string

	writeMu sync.Mutex

	mu        sync.Mutex
	onAI      func(message string)
	replaying bool
	pending   []shape.Shape

	closeOnce sync.Once
	done      chan struct{}
}

// Dial resolves the slug against serverURL, replays the room's history into
// the engine, joins the room and starts the live read loop. Envelopes that
// arrive while history is still being applied are held back and applied
// afterwards, so replay order is never broken. The engine's OnShape hook is
// pointed at the session's send path.
func Dial(ctx context.Context, serverURL, slug, token string, engine *canvas.Engine) (*Session, error) {
	base := strings.TrimRight(serverURL, "/")

	roomID, err := resolveRoom(ctx, base, slug)
	if err != nil {
		return nil, err
	}
	history, err := fetchHistory(ctx, base, roomID)
	if err != nil {
		return nil, err
	}

	wsURL, err := websocketURL(base, token)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", wsURL, err)
	}

	s := &Session{
		conn:      conn,
		engine:    engine,
		roomID:    roomID,
		replaying: true,
		done:      make(chan struct{}),
	}
	engine.OnShape = s.SendShape
	go s.readLoop()

	for _, raw := range history {
		sh, err := shape.Decode(raw)
		if err != nil {
			log.Printf("[client] skipping undecodable history entry: %v", err)
			continue
		}
		engine.ApplyRemote(sh)
	}

	if err := s.sendEnvelope(protocol.Join(roomID)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: join room: %w", err)
	}
	s.finishReplay()

	log.Printf("[client] joined room %s (%s) with %d replayed events", slug, roomID, len(history))
	return s, nil
}

// RoomID returns the resolved room id.
func (s *Session) RoomID() string { return s.roomID }

// SetOnAI installs the handler for ai control broadcasts, the session's own
// included. The read loop is already running when Dial returns, so the
// handler is swapped under the session lock.
func (s *Session) SetOnAI(fn func(message string)) {
	s.mu.Lock()
	s.onAI = fn
	s.mu.Unlock()
}

// Done is closed when the read loop ends, whether by Close or by the
// connection dropping.
func (s *Session) Done() <-chan struct{} { return s.done }

// SendShape publishes a locally finalized shape to the room. Errors are
// logged and swallowed; there is no acknowledgement and no retry.
func (s *Session) SendShape(sh shape.Shape) {
	payload, err := shape.Encode(sh)
	if err != nil {
		log.Printf("[client] encode shape %s: %v", sh.ID, err)
		return
	}
	if err := s.sendEnvelope(protocol.Chat(s.roomID, payload)); err != nil {
		log.Printf("[client] send shape %s: %v", sh.ID, err)
	}
}

// SendAI publishes an ai control message to the room.
func (s *Session) SendAI(message string) error {
	env, err := protocol.AI(s.roomID, message)
	if err != nil {
		return err
	}
	return s.sendEnvelope(env)
}

// Close leaves the room and closes the connection.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if sendErr := s.sendEnvelope(protocol.Leave(s.roomID)); sendErr != nil {
			log.Printf("[client] leave room: %v", sendErr)
		}
		err = s.conn.Close()
	})
	return err
}

func (s *Session) sendEnvelope(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("[client] dropping malformed frame: %v", err)
			continue
		}
		switch env.Type {
		case protocol.TypeChat:
			sh, err := shape.Decode(env.Message)
			if err != nil {
				log.Printf("[client] dropping undecodable shape: %v", err)
				continue
			}
			s.deliver(sh)
		case protocol.TypeAI:
			var message string
			if err := json.Unmarshal(env.Message, &message); err != nil {
				message = string(env.Message)
			}
			s.mu.Lock()
			cb := s.onAI
			s.mu.Unlock()
			if cb != nil {
				cb(message)
			}
		}
	}
}

// deliver applies a live shape, or holds it back while replay is running.
func (s *Session) deliver(sh shape.Shape) {
	s.mu.Lock()
	if s.replaying {
		s.pending = append(s.pending, sh)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.engine.ApplyRemote(sh)
}

// finishReplay flushes held-back shapes in arrival order and goes live.
func (s *Session) finishReplay() {
	s.mu.Lock()
	held := s.pending
	s.pending = nil
	s.replaying = false
	s.mu.Unlock()
	for _, sh := range held {
		s.engine.ApplyRemote(sh)
	}
}

func resolveRoom(ctx context.Context, base, slug string) (string, error) {
	var resp struct {
		Room struct {
			ID string `json:"id"`
		} `json:"room"`
	}
	if err := getJSON(ctx, base+"/api/room/slug/"+url.PathEscape(slug), &resp); err != nil {
		return "", fmt.Errorf("client: resolve room %q: %w", slug, err)
	}
	if resp.Room.ID == "" {
		return "", fmt.Errorf("client: resolve room %q: empty room id", slug)
	}
	return resp.Room.ID, nil
}

func fetchHistory(ctx context.Context, base, roomID string) ([]json.RawMessage, error) {
	var resp struct {
		Messages []struct {
			Message json.RawMessage `json:"message"`
		} `json:"messages"`
	}
	if err := getJSON(ctx, base+"/api/room/"+url.PathEscape(roomID), &resp); err != nil {
		return nil, fmt.Errorf("client: fetch history: %w", err)
	}
	raw := make([]json.RawMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		raw = append(raw, m.Message)
	}
	return raw, nil
}

func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("client: bad server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
