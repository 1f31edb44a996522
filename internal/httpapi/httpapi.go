// Package httpapi exposes the room read API that board clients use to
// resolve a slug and replay a room's history before joining the relay.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"sketchroom/internal/store"
)

// RoomStore is what the API needs from the persistence layer.
type RoomStore interface {
	EnsureRoom(ctx context.Context, slug, adminID string) (*store.Room, error)
	RoomByID(ctx context.Context, id string) (*store.Room, error)
	History(ctx context.Context, roomID string, limit int) ([]store.Event, error)
	ClearRoom(ctx context.Context, roomID string) error
}

// API serves the room endpoints. Mount it with Router.
type API struct {
	rooms RoomStore
}

// New creates the API over the given store.
func New(rooms RoomStore) *API {
	return &API{rooms: rooms}
}

// Router builds the route table with request logging.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			log.Printf("[api] %s %s %d %s", request.Method, request.URL.Path, m.Code, m.Duration)
		})
	})
	r.Methods(http.MethodGet).Path("/api/room/slug/{slug}").HandlerFunc(a.roomBySlug)
	r.Methods(http.MethodGet).Path("/api/room/{id}").HandlerFunc(a.roomHistory)
	r.Methods(http.MethodDelete).Path("/api/room/{id}").HandlerFunc(a.clearRoom)
	return r
}

type roomResponse struct {
	Room struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"room"`
}

type historyMessage struct {
	ID      int64           `json:"id"`
	Message json.RawMessage `json:"message"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

// roomBySlug resolves a slug, creating the room on first use so a freshly
// shared link works for every collaborator.
func (a *API) roomBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	room, err := a.rooms.EnsureRoom(r.Context(), slug, "")
	if err != nil {
		log.Printf("[api] resolve slug %q: %v", slug, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var resp roomResponse
	resp.Room.ID = room.ID
	resp.Room.Slug = room.Slug
	writeJSON(w, resp)
}

// roomHistory returns the room's events oldest first, ready to replay.
func (a *API) roomHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := a.rooms.RoomByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Printf("[api] lookup room %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	events, err := a.rooms.History(r.Context(), id, 0)
	if err != nil {
		log.Printf("[api] history for room %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := historyResponse{Messages: make([]historyMessage, 0, len(events))}
	for _, ev := range events {
		resp.Messages = append(resp.Messages, historyMessage{ID: ev.ID, Message: json.RawMessage(ev.Payload)})
	}
	writeJSON(w, resp)
}

// clearRoom wipes the room's event log so the board starts blank.
func (a *API) clearRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := a.rooms.RoomByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Printf("[api] lookup room %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := a.rooms.ClearRoom(r.Context(), id); err != nil {
		log.Printf("[api] clear room %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] write response: %v", err)
	}
}
