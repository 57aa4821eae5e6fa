package models

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Room is one live arena: its session plus the browsers watching it.
type Room struct {
	Session Session
	Clients map[uuid.UUID]*Client
	Mu      sync.Mutex

	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRoom(s Session) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		Session: s,
		Clients: make(map[uuid.UUID]*Client),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is cancelled when the room closes; in-flight streams derive from it.
func (r *Room) Context() context.Context {
	return r.ctx
}

// Closed reports whether Close has run. Callers must hold Mu.
func (r *Room) Closed() bool {
	return r.closed
}

// Close cancels the room's streams and disconnects every watcher. It is safe
// to call more than once.
func (r *Room) Close() {
	r.Mu.Lock()
	if r.closed {
		r.Mu.Unlock()
		return
	}
	r.closed = true
	clients := make([]*Client, 0, len(r.Clients))
	for _, c := range r.Clients {
		clients = append(clients, c)
	}
	r.Mu.Unlock()

	r.cancel()
	for _, c := range clients {
		_ = c.Close()
	}
}

type RoomManager struct {
	Rooms map[uuid.UUID]*Room
	Mu    sync.Mutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{Rooms: make(map[uuid.UUID]*Room)}
}
