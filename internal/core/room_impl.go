package core

import (
	"crypto/subtle"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/peerlink/internal/domain"
	"github.com/rs/zerolog/log"
)

// Room is a threadsafe in-memory room.
//
// ID, Code and the join token are immutable and may be read freely.
// Everything else is guarded by the room lock: callers take Lock/Unlock
// around a whole transition and only call the unexported-state accessors
// below while holding it. Info is the one method that locks on its own.
// It never closes adapter-owned resources.
type Room struct {
	id        domain.RoomID
	code      domain.RoomCode
	joinToken string
	createdAt time.Time

	mu         sync.Mutex
	adminID    domain.UserID
	offerMode  domain.OfferMode
	members    map[domain.UserID]*Member
	lastActive time.Time
	closed     bool
}

func NewRoom(id domain.RoomID, code domain.RoomCode, joinToken string, now time.Time) *Room {
	return &Room{
		id:         id,
		code:       code,
		joinToken:  joinToken,
		createdAt:  now,
		offerMode:  domain.OfferModeAuto,
		members:    make(map[domain.UserID]*Member),
		lastActive: now,
	}
}

func (r *Room) ID() domain.RoomID     { return r.id }
func (r *Room) Code() domain.RoomCode { return r.code }
func (r *Room) JoinToken() string     { return r.joinToken }

// CheckToken compares in constant time; an empty token never matches.
func (r *Room) CheckToken(token string) bool {
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(r.joinToken)) == 1
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// The accessors below require the room lock.

func (r *Room) AdminID() domain.UserID { return r.adminID }

func (r *Room) IsAdmin(id domain.UserID) bool { return id != "" && id == r.adminID }

func (r *Room) SetAdmin(id domain.UserID) { r.adminID = id }

func (r *Room) OfferMode() domain.OfferMode { return r.offerMode }

func (r *Room) SetOfferMode(m domain.OfferMode) { r.offerMode = m }

// Closed reports whether the room was torn down. A closed room must be
// treated as not found even if a stale pointer to it is still held.
func (r *Room) Closed() bool { return r.closed }

func (r *Room) Close() {
	for _, m := range r.members {
		m.Release()
	}
	r.closed = true
}

func (r *Room) Touch(now time.Time) { r.lastActive = now }

func (r *Room) LastActive() time.Time { return r.lastActive }

func (r *Room) Member(id domain.UserID) (*Member, bool) {
	m, ok := r.members[id]
	return m, ok
}

func (r *Room) MemberCount() int { return len(r.members) }

func (r *Room) AddMember(m *Member) {
	r.members[m.ID()] = m
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(m.ID())).Msg("member added")
}

func (r *Room) RemoveMember(id domain.UserID) (*Member, bool) {
	m, ok := r.members[id]
	if !ok {
		return nil, false
	}
	m.Release()
	delete(r.members, id)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(id)).Msg("member removed")
	return m, true
}

// Members returns members ordered by id.
func (r *Room) Members() []*Member {
	ids := slices.Sorted(maps.Keys(r.members))
	out := make([]*Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.members[id])
	}
	return out
}

// NextAdmin picks a successor among the remaining members: a connected
// one if possible, the smallest id otherwise.
func (r *Room) NextAdmin() (domain.UserID, bool) {
	members := r.Members()
	if len(members) == 0 {
		return "", false
	}
	for _, m := range members {
		if m.Connected() {
			return m.ID(), true
		}
	}
	return members[0].ID(), true
}

// HasActivity reports whether any member is connected or inside its
// grace window.
func (r *Room) HasActivity() bool {
	for _, m := range r.members {
		if m.Connected() {
			return true
		}
		if _, pending := m.Deadline(); pending {
			return true
		}
	}
	return false
}

// SendTo delivers f to one member's current connection.
func (r *Room) SendTo(id domain.UserID, f Frame) error {
	m, ok := r.members[id]
	if !ok {
		return ErrUserNotFound
	}
	return m.send(f)
}

// Broadcast sends f to every connected member except the one with id
// from (pass "" to include everybody).
func (r *Room) Broadcast(from domain.UserID, f Frame) PublishResult {
	res := PublishResult{}
	for id, m := range r.members {
		if id == from || !m.Connected() {
			continue
		}
		if err := m.send(f); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Info takes the lock itself.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]domain.Member, 0, len(r.members))
	for _, m := range r.Members() {
		users = append(users, domain.Member{
			User:      *m.User,
			Connected: m.Connected(),
			Admin:     m.ID() == r.adminID,
		})
	}
	return RoomInfo{
		ID:         r.id,
		AdminID:    r.adminID,
		OfferMode:  r.offerMode,
		Users:      users,
		UserCount:  len(users),
		CreatedAt:  r.createdAt,
		LastActive: r.lastActive,
	}
}
