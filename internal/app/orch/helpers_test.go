package orch

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
)

const testGrace = 40 * time.Millisecond

type wireMsg struct {
	Type    core.MessageType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
	From    domain.UserID    `json:"from"`
	To      domain.UserID    `json:"to"`
	RoomID  domain.RoomID    `json:"roomId"`
	Error   string           `json:"error"`
}

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns and forgets everything received so far.
func (c *fakeConn) drain(t *testing.T) []wireMsg {
	t.Helper()
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()

	out := make([]wireMsg, 0, len(frames))
	for _, f := range frames {
		var m wireMsg
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad outbound frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) expectOne(t *testing.T, want core.MessageType) wireMsg {
	t.Helper()
	msgs := c.drain(t)
	if len(msgs) != 1 || msgs[0].Type != want {
		t.Fatalf("got %+v, want exactly one %q", msgs, want)
	}
	return msgs[0]
}

func (c *fakeConn) expectError(t *testing.T, want error) {
	t.Helper()
	msgs := c.drain(t)
	if len(msgs) != 1 || msgs[0].Error != want.Error() {
		t.Fatalf("got %+v, want error %q", msgs, want)
	}
}

func (c *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	if msgs := c.drain(t); len(msgs) != 0 {
		t.Fatalf("got %+v, want nothing", msgs)
	}
}

type fixture struct {
	o     *Orchestrator
	rooms *app.RoomManager
	admin app.Ticket
	room  *core.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := app.NewRegistry()
	rooms := app.NewRoomManager(reg, 0, []string{"en", "fr"})
	admin, err := rooms.Create("alice", "en")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	room, _ := reg.LookupRoom(admin.RoomID)
	return &fixture{
		o: &Orchestrator{
			Registry:    reg,
			Policy:      app.SimplePolicy{},
			GracePeriod: testGrace,
		},
		rooms: rooms,
		admin: admin,
		room:  room,
	}
}

func (f *fixture) send(conn core.SignalConnection, msg map[string]any) {
	b, _ := json.Marshal(msg)
	f.o.Dispatch(conn, b)
}

func (f *fixture) join(t *testing.T, userID domain.UserID, username string) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	f.send(c, map[string]any{
		"roomId": f.admin.RoomID,
		"userId": userID,
		"type":   "join",
		"payload": map[string]any{
			"joinToken":         f.admin.JoinToken,
			"username":          username,
			"preferredLanguage": "en",
		},
	})
	return c
}

// joinApproved joins userID and consumes its join-approved.
func (f *fixture) joinApproved(t *testing.T, userID domain.UserID, username string) *fakeConn {
	t.Helper()
	c := f.join(t, userID, username)
	c.expectOne(t, core.TypeJoinApproved)
	return c
}

func (f *fixture) setMode(t *testing.T, conn *fakeConn, mode string) {
	t.Helper()
	f.send(conn, map[string]any{
		"roomId":  f.admin.RoomID,
		"userId":  f.admin.UserID,
		"type":    "set-offer-mode",
		"payload": map[string]any{"offerMode": mode},
	})
}

func (f *fixture) relay(from core.SignalConnection, fromID domain.UserID, t core.MessageType, to domain.UserID, payload any) {
	msg := map[string]any{
		"roomId":  f.admin.RoomID,
		"userId":  fromID,
		"type":    t,
		"payload": payload,
	}
	if to != "" {
		msg["to"] = to
	}
	f.send(from, msg)
}

func (f *fixture) member(userID domain.UserID) (connected, present bool) {
	f.room.Lock()
	defer f.room.Unlock()
	m, ok := f.room.Member(userID)
	if !ok {
		return false, false
	}
	return m.Connected(), true
}

func (f *fixture) adminID() domain.UserID {
	f.room.Lock()
	defer f.room.Unlock()
	return f.room.AdminID()
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
