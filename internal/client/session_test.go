package client

import (
	"context"
	"errors"
	"image"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sketchroom/internal/canvas"
	"sketchroom/internal/httpapi"
	"sketchroom/internal/relay"
	"sketchroom/internal/shape"
	"sketchroom/internal/store"
)

type nullSurface struct{}

func (nullSurface) Size() (int, int)    { return 800, 600 }
func (nullSurface) Present(image.Image) {}

type staticVerifier map[string]string

func (v staticVerifier) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type testServer struct {
	url   string
	store *store.Store
	relay *relay.Relay
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	verifier := staticVerifier{"tok-a": "userA", "tok-b": "userB", "tok-c": "userC"}
	r := relay.New(verifier, s)
	router := httpapi.New(s).Router()
	router.Handle("/ws", r)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, store: s, relay: r}
}

// waitForMembers blocks until the relay has processed the join frames of
// every expected member. Joining is fire-and-forget on the wire, so tests
// that publish right after Dial must synchronize on membership first.
func waitForMembers(t *testing.T, srv *testServer, roomID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.relay.RoomMemberCount(roomID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members, has %d", roomID, want, srv.relay.RoomMemberCount(roomID))
}

func rect(x, y float64) shape.Shape {
	return shape.Shape{
		ID:          shape.NewID(),
		Kind:        shape.KindRectangle,
		X:           x,
		Y:           y,
		Width:       10,
		Height:      10,
		StrokeColor: "black",
		StrokeWidth: 2,
	}
}

func waitForShapes(t *testing.T, e *canvas.Engine, want int) []shape.Shape {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := e.Shapes(); len(got) == want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("engine never reached %d shapes, has %d", want, len(e.Shapes()))
	return nil
}

func TestDialReplaysHistoryInOrder(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	room, err := srv.store.EnsureRoom(ctx, "replay-room", "")
	if err != nil {
		t.Fatal(err)
	}
	first := rect(1, 1)
	second := rect(2, 2)
	for _, sh := range []shape.Shape{first, second} {
		payload, err := shape.Encode(sh)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := srv.store.Append(ctx, room.ID, "userA", payload); err != nil {
			t.Fatal(err)
		}
	}

	engine := canvas.NewEngine(nullSurface{})
	session, err := Dial(ctx, srv.url, "replay-room", "tok-a", engine)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()

	shapes := engine.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("replayed %d shapes, want 2", len(shapes))
	}
	if shapes[0].ID != first.ID || shapes[1].ID != second.ID {
		t.Errorf("replay order wrong: got %s, %s", shapes[0].ID, shapes[1].ID)
	}
	if session.RoomID() != room.ID {
		t.Errorf("RoomID = %s, want %s", session.RoomID(), room.ID)
	}
}

func TestDialUnknownSlugCreatesEmptyRoom(t *testing.T) {
	srv := newTestServer(t)
	engine := canvas.NewEngine(nullSurface{})
	session, err := Dial(context.Background(), srv.url, "fresh-room", "tok-a", engine)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer session.Close()
	if !engine.IsEmpty() {
		t.Error("fresh room should replay nothing")
	}
}

func TestDialRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)
	engine := canvas.NewEngine(nullSurface{})
	if _, err := Dial(context.Background(), srv.url, "any-room", "wrong", engine); err == nil {
		t.Fatal("Dial with a bad token should fail")
	}
}

func TestLiveShapePropagation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	engineA := canvas.NewEngine(nullSurface{})
	sessionA, err := Dial(ctx, srv.url, "live-room", "tok-a", engineA)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionA.Close()

	engineB := canvas.NewEngine(nullSurface{})
	sessionB, err := Dial(ctx, srv.url, "live-room", "tok-b", engineB)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionB.Close()
	waitForMembers(t, srv, sessionA.RoomID(), 2)

	drawn := rect(5, 5)
	engineA.ApplyRemote(drawn) // place it locally the way a finished gesture would
	sessionA.SendShape(drawn)

	got := waitForShapes(t, engineB, 1)
	if got[0].ID != drawn.ID {
		t.Errorf("B received shape %s, want %s", got[0].ID, drawn.ID)
	}
	// no echo: A still holds exactly its own copy
	if n := len(engineA.Shapes()); n != 1 {
		t.Errorf("A has %d shapes, want 1 (no echo)", n)
	}

	// a later joiner replays everything the room accepted
	engineC := canvas.NewEngine(nullSurface{})
	sessionC, err := Dial(ctx, srv.url, "live-room", "tok-c", engineC)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionC.Close()
	gotC := engineC.Shapes()
	if len(gotC) != 1 || gotC[0].ID != drawn.ID {
		t.Errorf("late joiner replayed %+v", gotC)
	}
}

func TestAIBroadcastReachesEveryone(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var mu sync.Mutex
	received := map[string]string{}
	record := func(who string) func(string) {
		return func(msg string) {
			mu.Lock()
			received[who] = msg
			mu.Unlock()
		}
	}

	engineA := canvas.NewEngine(nullSurface{})
	sessionA, err := Dial(ctx, srv.url, "ai-room", "tok-a", engineA)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionA.Close()
	sessionA.SetOnAI(record("A"))

	engineB := canvas.NewEngine(nullSurface{})
	sessionB, err := Dial(ctx, srv.url, "ai-room", "tok-b", engineB)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionB.Close()
	sessionB.SetOnAI(record("B"))
	waitForMembers(t, srv, sessionA.RoomID(), 2)

	if err := sessionA.SendAI("looks like a sailboat"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := received["A"] == "looks like a sailboat" && received["B"] == "looks like a sailboat"
		mu.Unlock()
		if done {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	t.Fatalf("ai broadcast incomplete: %+v", received)
}

// The read loop is live before any handler is installed; swapping the
// handler while broadcasts arrive must be safe.
func TestSetOnAIWhileReceiving(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	engineA := canvas.NewEngine(nullSurface{})
	sessionA, err := Dial(ctx, srv.url, "swap-room", "tok-a", engineA)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionA.Close()
	waitForMembers(t, srv, sessionA.RoomID(), 1)

	var count int
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			sessionA.SetOnAI(func(string) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			time.Sleep(time.Millisecond)
		}
	}()
	for i := 0; i < 20; i++ {
		if err := sessionA.SendAI("ping"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := count
		mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no ai broadcast observed through the swapped handlers")
}
