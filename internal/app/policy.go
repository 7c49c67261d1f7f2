package app

import "github.com/dkeye/peerlink/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseConnection
)

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackPressure(room *core.Room, member *core.Member) BackpressureAction
}

// SimplePolicy drops the frame; relays are at-most-once anyway.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Room, *core.Member) BackpressureAction {
	return DropFrame
}

// StrictPolicy closes slow connections. The member then goes through the
// usual grace period and may reconnect.
type StrictPolicy struct{}

func (StrictPolicy) OnBackPressure(*core.Room, *core.Member) BackpressureAction {
	return CloseConnection
}

func PolicyByName(name string) Policy {
	if name == "strict" {
		return StrictPolicy{}
	}
	return SimplePolicy{}
}
