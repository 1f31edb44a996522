package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"net/http/httptest"

	"github.com/gorilla/websocket"

	"sketchroom/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) received() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var envs []protocol.Envelope
	for _, frame := range c.frames {
		env, err := protocol.Decode(frame)
		if err == nil {
			envs = append(envs, env)
		}
	}
	return envs
}

type memLog struct {
	mu     sync.Mutex
	events []memEvent
	fail   error
}

type memEvent struct {
	roomID  string
	userID  string
	payload string
}

func (l *memLog) Append(_ context.Context, roomID, userID string, payload []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return 0, l.fail
	}
	l.events = append(l.events, memEvent{roomID, userID, string(payload)})
	return int64(len(l.events)), nil
}

type staticVerifier map[string]string

func (v staticVerifier) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func newTestRelay() (*Relay, *memLog) {
	eventLog := &memLog{}
	r := New(staticVerifier{"tok-a": "userA", "tok-b": "userB", "tok-c": "userC"}, eventLog)
	return r, eventLog
}

func addSession(r *Relay, userID string) (*session, *fakeConn) {
	conn := &fakeConn{}
	s := &session{conn: conn, userID: userID, rooms: make(map[string]bool)}
	r.register(s)
	return s, conn
}

func chatFrame(roomID, payload string) []byte {
	data, _ := protocol.Encode(protocol.Chat(roomID, []byte(payload)))
	return data
}

func TestPublishNoSelfEcho(t *testing.T) {
	r, eventLog := newTestRelay()
	ctx := context.Background()
	a, connA := addSession(r, "userA")
	b, connB := addSession(r, "userB")
	r.join(a, "room1")
	r.join(b, "room1")

	payload := `{"id":"s1","type":"line","x1":0,"y1":0,"x2":1,"y2":1,"strokeColor":"black","strokeWidth":2}`
	r.handleFrame(ctx, a, chatFrame("room1", payload))

	got := connB.received()
	if len(got) != 1 {
		t.Fatalf("B received %d envelopes, want exactly 1", len(got))
	}
	if got[0].Type != protocol.TypeChat || string(got[0].Message) != payload {
		t.Errorf("B received %+v", got[0])
	}
	if len(connA.received()) != 0 {
		t.Errorf("A received %d envelopes, want no self-echo", len(connA.received()))
	}
	if len(eventLog.events) != 1 || eventLog.events[0].userID != "userA" || eventLog.events[0].roomID != "room1" {
		t.Errorf("event log = %+v", eventLog.events)
	}
}

func TestPublishRoomIsolation(t *testing.T) {
	r, _ := newTestRelay()
	ctx := context.Background()
	a, _ := addSession(r, "userA")
	b, connB := addSession(r, "userB")
	c, connC := addSession(r, "userC")
	r.join(a, "room1")
	r.join(b, "room1")
	r.join(c, "room2")

	r.handleFrame(ctx, a, chatFrame("room1", `{"x":1}`))

	if len(connC.received()) != 0 {
		t.Errorf("user in a different room received %d envelopes", len(connC.received()))
	}
	if len(connB.received()) != 1 {
		t.Errorf("room member received %d envelopes, want 1", len(connB.received()))
	}
}

func TestPublishToUnknownRoomStillPersists(t *testing.T) {
	r, eventLog := newTestRelay()
	a, _ := addSession(r, "userA")
	r.join(a, "room1")

	r.handleFrame(context.Background(), a, chatFrame("ghost-room", `{"x":1}`))

	if len(eventLog.events) != 1 || eventLog.events[0].roomID != "ghost-room" {
		t.Errorf("event log = %+v, want the append even with no members", eventLog.events)
	}
}

func TestAppendFailureSuppressesFanout(t *testing.T) {
	r, eventLog := newTestRelay()
	eventLog.fail = errors.New("disk full")
	a, _ := addSession(r, "userA")
	b, connB := addSession(r, "userB")
	r.join(a, "room1")
	r.join(b, "room1")

	r.handleFrame(context.Background(), a, chatFrame("room1", `{"x":1}`))

	if len(connB.received()) != 0 {
		t.Errorf("fanout happened despite append failure: %d envelopes", len(connB.received()))
	}
}

func TestControlBroadcastIncludesSender(t *testing.T) {
	r, eventLog := newTestRelay()
	a, connA := addSession(r, "userA")
	b, connB := addSession(r, "userB")
	r.join(a, "room1")
	r.join(b, "room1")

	env, _ := protocol.AI("room1", "a drawing of a boat")
	data, _ := protocol.Encode(env)
	r.handleFrame(context.Background(), a, data)

	if len(connA.received()) != 1 {
		t.Errorf("sender received %d control envelopes, want 1", len(connA.received()))
	}
	if len(connB.received()) != 1 {
		t.Errorf("member received %d control envelopes, want 1", len(connB.received()))
	}
	if len(eventLog.events) != 0 {
		t.Errorf("control broadcast was persisted: %+v", eventLog.events)
	}
}

func TestJoinIdempotentAndLeave(t *testing.T) {
	r, _ := newTestRelay()
	a, _ := addSession(r, "userA")
	r.join(a, "room1")
	r.join(a, "room1")
	if got := r.RoomMemberCount("room1"); got != 1 {
		t.Errorf("RoomMemberCount = %d, want 1", got)
	}
	r.leave(a, "room1")
	if got := r.RoomMemberCount("room1"); got != 0 {
		t.Errorf("RoomMemberCount after leave = %d, want 0", got)
	}
	r.leave(a, "room1") // already gone, must not panic
}

func TestDisconnectDropsMemberships(t *testing.T) {
	r, eventLog := newTestRelay()
	a, _ := addSession(r, "userA")
	r.join(a, "room1")
	r.join(a, "room2")

	r.disconnect(a)

	if got := r.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount = %d, want 0", got)
	}
	if r.RoomMemberCount("room1") != 0 || r.RoomMemberCount("room2") != 0 {
		t.Error("memberships survived disconnect")
	}
	if len(eventLog.events) != 0 {
		t.Error("disconnect touched the event log")
	}
}

func TestPublishMutexReleasedWithRoom(t *testing.T) {
	r, _ := newTestRelay()
	ctx := context.Background()
	a, _ := addSession(r, "userA")
	r.join(a, "room1")
	r.handleFrame(ctx, a, chatFrame("room1", `{"x":1}`))

	r.publishMuMu.Lock()
	_, held := r.publishMu["room1"]
	r.publishMuMu.Unlock()
	if !held {
		t.Fatal("publish should have created the room's mutex")
	}

	r.leave(a, "room1")
	r.publishMuMu.Lock()
	_, held = r.publishMu["room1"]
	r.publishMuMu.Unlock()
	if held {
		t.Error("emptying a room should drop its publish mutex")
	}

	// the same applies when the last member disconnects
	b, _ := addSession(r, "userB")
	r.join(b, "room2")
	r.handleFrame(ctx, b, chatFrame("room2", `{"x":2}`))
	r.disconnect(b)
	r.publishMuMu.Lock()
	_, held = r.publishMu["room2"]
	r.publishMuMu.Unlock()
	if held {
		t.Error("disconnecting the last member should drop the publish mutex")
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	r, eventLog := newTestRelay()
	a, connA := addSession(r, "userA")
	r.join(a, "room1")

	r.handleFrame(context.Background(), a, []byte(`{"type":`))
	r.handleFrame(context.Background(), a, []byte(`{"type":"teleport","roomId":"room1"}`))

	if len(eventLog.events) != 0 || len(connA.received()) != 0 {
		t.Error("malformed frames must be dropped without effect")
	}
	// the connection remains usable
	r.handleFrame(context.Background(), a, chatFrame("room1", `{"x":1}`))
	if len(eventLog.events) != 1 {
		t.Error("connection should keep working after a malformed frame")
	}
}

func TestEmptyChatIgnored(t *testing.T) {
	r, eventLog := newTestRelay()
	a, _ := addSession(r, "userA")
	r.join(a, "room1")
	data, _ := json.Marshal(map[string]string{"type": "chat", "roomId": "room1"})
	r.handleFrame(context.Background(), a, data)
	if len(eventLog.events) != 0 {
		t.Errorf("empty chat was persisted: %+v", eventLog.events)
	}
}

// Integration over a real websocket: connect, join, publish, observe
// delivery order and the absence of self-echo.
func TestRelayOverWebsocket(t *testing.T) {
	r, _ := newTestRelay()
	srv := httptest.NewServer(r)
	defer srv.Close()

	dial := func(token string) *websocket.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial(%s): %v", token, err)
		}
		return conn
	}
	send := func(conn *websocket.Conn, env protocol.Envelope) {
		t.Helper()
		data, err := protocol.Encode(env)
		if err != nil {
			t.Fatal(err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatal(err)
		}
	}
	read := func(conn *websocket.Conn) protocol.Envelope {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return env
	}

	connA := dial("tok-a")
	defer connA.Close()
	connB := dial("tok-b")
	defer connB.Close()

	send(connA, protocol.Join("room9"))
	send(connB, protocol.Join("room9"))
	waitForMembers(t, r, "room9", 2)

	payload := []byte(`{"id":"w1","type":"rectangle","x":1,"y":2,"width":3,"height":4,"strokeColor":"black","strokeWidth":2}`)
	send(connA, protocol.Chat("room9", payload))

	got := read(connB)
	if got.Type != protocol.TypeChat || string(got.Message) != string(payload) {
		t.Errorf("B received %+v", got)
	}

	// A control broadcast echoes to the sender. Receiving it as A's first
	// frame proves the earlier chat was never echoed back to A.
	aiEnv, _ := protocol.AI("room9", "ping")
	send(connA, aiEnv)
	if got := read(connA); got.Type != protocol.TypeAI {
		t.Errorf("A's first frame = %+v, want the ai control (no chat echo)", got)
	}
}

func TestRejectsBadToken(t *testing.T) {
	r, _ := newTestRelay()
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=wrong"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial with a bad token should fail")
	}
	url = "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial with no token should fail")
	}
}

func waitForMembers(t *testing.T, r *Relay, roomID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.RoomMemberCount(roomID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members", roomID, want)
}
