package orch

import (
	"time"

	"github.com/dkeye/peerlink/internal/core"
	"github.com/rs/zerolog/log"
)

// handleRelay forwards a directed message verbatim to msg.To.
func (o *Orchestrator) handleRelay(room *core.Room, msg *core.Message) error {
	room.Lock()
	defer room.Unlock()
	if room.Closed() {
		return core.ErrRoomNotFound
	}
	if _, ok := room.Member(msg.UserID); !ok {
		return core.ErrUserNotFound
	}
	if msg.To == "" {
		return core.ErrInvalidTarget
	}
	target, ok := room.Member(msg.To)
	if !ok {
		return core.ErrInvalidTarget
	}
	if !target.Connected() {
		return core.ErrTargetUnreachable
	}

	o.deliver(room, target, msg.Type, msg.Payload, msg.UserID, "")
	room.Touch(time.Now())
	log.Debug().Str("module", "orch").Str("room", string(room.ID())).Str("from", string(msg.UserID)).Str("to", string(msg.To)).Str("type", string(msg.Type)).Msg("relayed")

	// An admin accepting completes manual admission.
	if msg.Type == core.TypeManualAccept && room.IsAdmin(msg.UserID) {
		o.deliver(room, target, core.TypeJoinApproved, core.JoinApprovedPayload{
			AdminID:   room.AdminID(),
			OfferMode: room.OfferMode(),
		}, "", "")
	}
	return nil
}
