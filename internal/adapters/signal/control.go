package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

// keepalive bounds inbound frames and arms the read deadline that each
// pong pushes forward.
func (ctl *SignalWSController) keepalive(c *WsSignalConn) {
	wait := ctl.Options.pongWait()
	c.conn.SetReadLimit(ctl.Options.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
}

func (ctl *SignalWSController) ping(c *WsSignalConn) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Options.WriteWait))
}
