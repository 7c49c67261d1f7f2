package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/app/orch"
	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/metrics"
)

type testEnv struct {
	server *httptest.Server
	rooms  *app.RoomManager
}

func newTestEnv(t *testing.T, opts Options, grace time.Duration) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry()
	m := metrics.New(reg.Len)
	o := &orch.Orchestrator{
		Registry:    reg,
		Policy:      app.SimplePolicy{},
		Metrics:     m,
		GracePeriod: grace,
	}
	ctl := NewSignalWSController(o, m, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testEnv{server: srv, rooms: app.NewRoomManager(reg, 0, nil)}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMsg(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func writeMsg(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSignalingOverWebSocket(t *testing.T) {
	env := newTestEnv(t, Options{}, 50*time.Millisecond)
	tk, err := env.rooms.Create("alice", "en")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	alice := env.dial(t)
	writeMsg(t, alice, map[string]any{
		"roomId": tk.RoomID, "userId": tk.UserID, "type": "join",
		"payload": map[string]any{"joinToken": tk.JoinToken},
	})
	if got := readMsg(t, alice); got["type"] != "join-approved" {
		t.Fatalf("alice got %v, want join-approved", got)
	}

	bob := env.dial(t)
	writeMsg(t, bob, map[string]any{
		"roomId": tk.RoomID, "userId": "bob", "type": "join",
		"payload": map[string]any{"joinToken": tk.JoinToken, "username": "bob"},
	})
	if got := readMsg(t, bob); got["type"] != "join-approved" {
		t.Fatalf("bob got %v, want join-approved", got)
	}

	writeMsg(t, alice, map[string]any{
		"roomId": tk.RoomID, "userId": tk.UserID, "type": "offer", "to": "bob",
		"payload": map[string]any{"sdp": "v=0"},
	})
	got := readMsg(t, bob)
	if got["type"] != "offer" || got["from"] != string(tk.UserID) {
		t.Fatalf("bob got %v, want offer from alice", got)
	}
	if p, _ := got["payload"].(map[string]any); p["sdp"] != "v=0" {
		t.Fatalf("payload = %v", got["payload"])
	}

	// Errors come back on the same connection and keep it open.
	writeMsg(t, bob, map[string]any{"roomId": tk.RoomID, "userId": "bob", "type": "offer", "to": "ghost"})
	if got := readMsg(t, bob); got["error"] != core.ErrInvalidTarget.Error() {
		t.Fatalf("bob got %v, want invalid target error", got)
	}
	if err := bob.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readMsg(t, bob); got["error"] != core.ErrMalformedMessage.Error() {
		t.Fatalf("bob got %v, want malformed error", got)
	}

	// Closing bob's socket starts the grace period, then alice is told.
	bob.Close()
	got = readMsg(t, alice)
	if got["type"] != "user-left" {
		t.Fatalf("alice got %v, want user-left", got)
	}
	if p, _ := got["payload"].(map[string]any); p["userId"] != "bob" {
		t.Fatalf("user-left payload = %v", got["payload"])
	}
}

func TestReconnectOverNewSocket(t *testing.T) {
	env := newTestEnv(t, Options{}, time.Second)
	tk, _ := env.rooms.Create("alice", "en")

	alice := env.dial(t)
	writeMsg(t, alice, map[string]any{
		"roomId": tk.RoomID, "userId": tk.UserID, "type": "join",
		"payload": map[string]any{"joinToken": tk.JoinToken},
	})
	readMsg(t, alice)

	bob := env.dial(t)
	writeMsg(t, bob, map[string]any{
		"roomId": tk.RoomID, "userId": "bob", "type": "join",
		"payload": map[string]any{"joinToken": tk.JoinToken},
	})
	readMsg(t, bob)
	bob.Close()

	bob2 := env.dial(t)
	writeMsg(t, bob2, map[string]any{"roomId": tk.RoomID, "userId": "bob", "type": "reconnect"})

	got := readMsg(t, alice)
	if got["type"] != "create-offer" {
		t.Fatalf("alice got %v, want create-offer", got)
	}
	if p, _ := got["payload"].(map[string]any); p["newUserId"] != "bob" {
		t.Fatalf("create-offer payload = %v", got["payload"])
	}
}

func TestReadLimitClosesConnection(t *testing.T) {
	env := newTestEnv(t, Options{ReadLimit: 64}, 50*time.Millisecond)
	ws := env.dial(t)
	big := `{"roomId":"r","userId":"u","type":"offer","payload":"` + strings.Repeat("x", 128) + `"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected the server to close an oversized connection")
	}
}

func TestWsSignalConnTrySend(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.TrySend(core.Frame("b")); err != core.ErrBackpressure {
		t.Fatalf("second send = %v, want ErrBackpressure", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.ReadLimit != 32768 || o.PingPeriod != 54*time.Second || o.WriteWait != 5*time.Second || o.SendBuffer != 32 {
		t.Fatalf("unexpected defaults: %+v", o)
	}
	if o.pongWait() <= o.PingPeriod {
		t.Fatalf("pongWait %v must exceed PingPeriod %v", o.pongWait(), o.PingPeriod)
	}
}
