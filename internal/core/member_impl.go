package core

import (
	"time"

	"github.com/dkeye/peerlink/internal/domain"
)

// Member pairs a user with its optional transport handle and its
// pending grace timer. All fields are guarded by the owning Room's lock;
// a Member never outlives its Room.
type Member struct {
	User *domain.User

	conn     SignalConnection
	timer    *time.Timer
	deadline time.Time
	// gen is bumped whenever the grace timer is armed or cancelled, so a
	// callback that lost the race can tell its token is stale.
	gen uint64
}

func NewMember(user *domain.User) *Member {
	return &Member{User: user}
}

func (m *Member) ID() domain.UserID { return m.User.ID }

func (m *Member) Conn() SignalConnection { return m.conn }

func (m *Member) Connected() bool { return m.conn != nil }

// Deadline returns when the pending grace timer fires, if any.
func (m *Member) Deadline() (time.Time, bool) {
	if m.timer == nil {
		return time.Time{}, false
	}
	return m.deadline, true
}

// Attach binds conn and cancels a pending grace timer. It reports whether
// a timer was cancelled.
func (m *Member) Attach(conn SignalConnection) bool {
	resumed := m.cancelGrace()
	m.conn = conn
	return resumed
}

// Detach drops the connection handle and arms a single-shot grace timer.
// fire runs on its own goroutine with the token Expired expects.
func (m *Member) Detach(grace time.Duration, fire func(token uint64)) time.Time {
	m.cancelGrace()
	m.conn = nil
	m.gen++
	token := m.gen
	m.deadline = time.Now().Add(grace)
	m.timer = time.AfterFunc(grace, func() { fire(token) })
	return m.deadline
}

// Expired reports whether the timer identified by token is still the
// current one and the member has not come back.
func (m *Member) Expired(token uint64) bool {
	return m.conn == nil && m.timer != nil && m.gen == token
}

// Release stops any pending timer. Used on permanent removal.
func (m *Member) Release() {
	m.cancelGrace()
	m.conn = nil
}

func (m *Member) cancelGrace() bool {
	if m.timer == nil {
		return false
	}
	m.timer.Stop()
	m.timer = nil
	m.deadline = time.Time{}
	m.gen++
	return true
}

// send is fire-and-forget; a missing connection counts as closed.
func (m *Member) send(f Frame) error {
	if m.conn == nil {
		return ErrConnClosed
	}
	return m.conn.TrySend(f)
}
