package orch

import (
	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	departureTimeout = "timeout"
	departureLeave   = "leave"
)

// OnDisconnect is called once the transport for conn is closed. Every
// member bound to conn loses its handle and gets a grace timer; nobody is
// told anything until that timer fires.
func (o *Orchestrator) OnDisconnect(conn core.SignalConnection) {
	grace := o.gracePeriod()
	for _, room := range o.Registry.AllRooms() {
		room.Lock()
		if room.Closed() {
			room.Unlock()
			continue
		}
		for _, m := range room.Members() {
			if m.Conn() != conn {
				continue
			}
			userID := m.ID()
			deadline := m.Detach(grace, func(token uint64) {
				o.expire(room, userID, token)
			})
			log.Info().Str("module", "orch.supervisor").Str("room", string(room.ID())).Str("user", string(userID)).Time("deadline", deadline).Msg("connection closed, grace timer started")
		}
		room.Unlock()
	}
}

// expire runs on the timer goroutine. The token check under the room
// lock is what makes a concurrent reconnect win.
func (o *Orchestrator) expire(room *core.Room, userID domain.UserID, token uint64) {
	room.Lock()
	if room.Closed() {
		room.Unlock()
		return
	}
	m, ok := room.Member(userID)
	if !ok || !m.Expired(token) {
		room.Unlock()
		log.Debug().Str("module", "orch.supervisor").Str("room", string(room.ID())).Str("user", string(userID)).Msg("stale grace timer")
		return
	}
	empty := o.departLocked(room, userID, departureTimeout)
	room.Unlock()

	if empty {
		o.Registry.Remove(room)
	}
}

// Leave removes a member right away, as if its grace timer had fired.
func (o *Orchestrator) Leave(roomID domain.RoomID, userID domain.UserID) error {
	room, ok := o.Registry.LookupRoom(roomID)
	if !ok {
		return core.ErrRoomNotFound
	}
	room.Lock()
	if room.Closed() {
		room.Unlock()
		return core.ErrRoomNotFound
	}
	if _, ok := room.Member(userID); !ok {
		room.Unlock()
		return core.ErrUserNotFound
	}
	empty := o.departLocked(room, userID, departureLeave)
	room.Unlock()

	if empty {
		o.Registry.Remove(room)
	}
	return nil
}

// departLocked removes userID for good, hands admin over if needed and
// tells the others. It reports whether the room is now empty, in which
// case it has been closed and the caller must drop it from the registry
// after unlocking.
func (o *Orchestrator) departLocked(room *core.Room, userID domain.UserID, reason string) bool {
	logger := log.With().Str("module", "orch.supervisor").Str("room", string(room.ID())).Str("user", string(userID)).Str("reason", reason).Logger()

	room.RemoveMember(userID)
	o.JoinLimiter.Forget(app.JoinKey(room.ID(), userID))
	o.Metrics.Departure(reason)
	logger.Info().Msg("user left permanently")

	if room.MemberCount() == 0 {
		room.Close()
		o.JoinLimiter.ForgetRoom(room.ID())
		logger.Info().Msg("room empty, closing")
		return true
	}

	if room.IsAdmin(userID) {
		if next, ok := room.NextAdmin(); ok {
			room.SetAdmin(next)
			logger.Info().Str("admin", string(next)).Msg("reassigned admin")
		}
	}

	o.broadcast(room, "", core.TypeUserLeft, core.UserLeftPayload{UserID: userID})
	return false
}
