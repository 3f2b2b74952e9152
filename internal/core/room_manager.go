package core

import (
	"sort"
	"sync"

	"github.com/codesync/collab/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps room ids to rooms. A room lives exactly as long as it has
// members.
//
// Lock order is room then registry: the registry never takes a room lock while
// holding its own.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*Room)}
}

func (g *Registry) GetOrCreate(id domain.RoomID) *Room {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok = g.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	g.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room
}

func (g *Registry) Get(id domain.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// RemoveIfEmpty drops the room iff it has no members. It reports whether the
// room was removed.
func (g *Registry) RemoveIfEmpty(id domain.RoomID) bool {
	room, ok := g.Get(id)
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return g.dropIfEmpty(room)
}

// Update runs fn with the room locked, then removes the room if fn left it
// empty, all before the lock is released. With create=false an unknown room
// makes Update return false without calling fn.
func (g *Registry) Update(id domain.RoomID, create bool, fn func(*Room)) bool {
	for {
		var room *Room
		if create {
			room = g.GetOrCreate(id)
		} else {
			var ok bool
			if room, ok = g.Get(id); !ok {
				return false
			}
		}

		room.mu.Lock()
		if room.closed {
			// lost a race with the removal of this room; look it up again
			room.mu.Unlock()
			continue
		}
		fn(room)
		g.dropIfEmpty(room)
		room.mu.Unlock()
		return true
	}
}

// dropIfEmpty requires room.mu to be held.
func (g *Registry) dropIfEmpty(room *Room) bool {
	if room.closed || room.Len() > 0 {
		return false
	}
	room.closed = true
	g.mu.Lock()
	if g.rooms[room.ID()] == room {
		delete(g.rooms, room.ID())
	}
	g.mu.Unlock()
	log.Info().Str("module", "core.registry").Str("room", string(room.ID())).Msg("room removed (empty)")
	return true
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// View runs fn with the room locked without mutating registry state.
func (g *Registry) View(id domain.RoomID, fn func(*Room)) bool {
	room, ok := g.Get(id)
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return false
	}
	fn(room)
	return true
}

func (g *Registry) List() []RoomInfo {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, r.Info())
		}
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
