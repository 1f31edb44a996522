package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sketchroom/internal/store"
)

func newTestAPI(t *testing.T) (*API, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestRoomBySlugCreatesOnFirstUse(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	var first, second struct {
		Room struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"room"`
	}
	getJSON(t, srv.URL+"/api/room/slug/team-board", &first)
	if first.Room.Slug != "team-board" || first.Room.ID == "" {
		t.Errorf("first resolve = %+v", first.Room)
	}
	getJSON(t, srv.URL+"/api/room/slug/team-board", &second)
	if second.Room.ID != first.Room.ID {
		t.Errorf("slug resolved to a different room on second call: %s vs %s", second.Room.ID, first.Room.ID)
	}
}

func TestRoomHistoryOldestFirst(t *testing.T) {
	api, s := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()
	ctx := context.Background()

	room, err := s.EnsureRoom(ctx, "history-board", "")
	if err != nil {
		t.Fatal(err)
	}
	s.Append(ctx, room.ID, "userA", []byte(`{"seq":0}`))
	s.Append(ctx, room.ID, "userA", []byte(`{"seq":1}`))

	var resp struct {
		Messages []struct {
			ID      int64           `json:"id"`
			Message json.RawMessage `json:"message"`
		} `json:"messages"`
	}
	getJSON(t, srv.URL+"/api/room/"+room.ID, &resp)
	if len(resp.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(resp.Messages))
	}
	if string(resp.Messages[0].Message) != `{"seq":0}` || string(resp.Messages[1].Message) != `{"seq":1}` {
		t.Errorf("messages out of order: %+v", resp.Messages)
	}
	if resp.Messages[0].ID >= resp.Messages[1].ID {
		t.Errorf("ids not increasing: %d, %d", resp.Messages[0].ID, resp.Messages[1].ID)
	}
}

func TestRoomHistoryUnknownRoom(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/room/no-such-room")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClearRoom(t *testing.T) {
	api, s := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()
	ctx := context.Background()

	room, _ := s.EnsureRoom(ctx, "clear-me", "")
	s.Append(ctx, room.ID, "userA", []byte(`{"x":1}`))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/room/"+room.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	events, err := s.History(ctx, room.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("history after clear = %+v", events)
	}
	if _, err := s.RoomByID(ctx, room.ID); err != nil {
		t.Errorf("room gone after clear: %v", err)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
