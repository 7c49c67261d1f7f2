package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// mintAttempts bounds retries on a room code collision.
const mintAttempts = 8

// Registry owns roomId -> Room and roomCode -> roomId. The maps are guarded
// by mu; room state itself is guarded by each Room's own lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*core.Room
	codes map[domain.RoomCode]domain.RoomID

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*core.Room),
		codes: make(map[domain.RoomCode]domain.RoomID),
		now:   time.Now,
	}
}

// CreateRoom mints a room with fresh id, code and join token, and
// pre-registers admin as its first, not yet connected, member.
func (r *Registry) CreateRoom(admin *domain.User) (*core.Room, error) {
	token, err := newJoinToken()
	if err != nil {
		return nil, fmt.Errorf("mint join token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var code domain.RoomCode
	for range mintAttempts {
		c, err := newRoomCode()
		if err != nil {
			return nil, fmt.Errorf("mint room code: %w", err)
		}
		if _, taken := r.codes[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		return nil, fmt.Errorf("mint room code: %d collisions", mintAttempts)
	}

	room := core.NewRoom(domain.RoomID(uuid.NewString()), code, token, r.now())
	room.Lock()
	room.AddMember(core.NewMember(admin))
	room.SetAdmin(admin.ID)
	room.Unlock()

	r.rooms[room.ID()] = room
	r.codes[code] = room.ID()
	log.Info().Str("module", "app.registry").Str("room", string(room.ID())).Str("code", string(code)).Str("admin", string(admin.ID)).Msg("created room")
	return room, nil
}

func (r *Registry) LookupRoom(id domain.RoomID) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// LookupUserInRoom returns the member's user record. It takes the room
// lock, so it must not be called while holding it.
func (r *Registry) LookupUserInRoom(roomID domain.RoomID, userID domain.UserID) (*domain.User, bool) {
	room, ok := r.LookupRoom(roomID)
	if !ok {
		return nil, false
	}
	room.Lock()
	defer room.Unlock()
	if room.Closed() {
		return nil, false
	}
	m, ok := room.Member(userID)
	if !ok {
		return nil, false
	}
	u := *m.User
	return &u, true
}

func (r *Registry) RoomByCode(code domain.RoomCode) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, false
	}
	room, ok := r.rooms[id]
	return room, ok
}

// AllRooms returns a snapshot, safe to iterate without the registry lock.
func (r *Registry) AllRooms() []*core.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Remove deletes room and its code. It is a no-op if the id now maps to a
// different room.
func (r *Registry) Remove(room *core.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rooms[room.ID()]
	if !ok || cur != room {
		return false
	}
	delete(r.rooms, room.ID())
	delete(r.codes, room.Code())
	log.Info().Str("module", "app.registry").Str("room", string(room.ID())).Str("code", string(room.Code())).Msg("removed room")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) List() []core.RoomInfo {
	rooms := r.AllRooms()
	out := make([]core.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	return out
}
