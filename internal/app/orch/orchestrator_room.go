package orch

import (
	"time"

	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleJoin(conn core.SignalConnection, room *core.Room, msg *core.Message) error {
	var p core.JoinPayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return err
	}
	// Only failed attempts are charged; a correct token is never refused.
	key := app.JoinKey(msg.RoomID, msg.UserID)
	if !room.CheckToken(p.JoinToken) {
		if !o.JoinLimiter.Allow(key) {
			return core.ErrRateLimited
		}
		return core.ErrInvalidToken
	}
	o.JoinLimiter.Forget(key)
	o.checkLanguage(p.PreferredLanguage)

	room.Lock()
	defer room.Unlock()
	if room.Closed() {
		return core.ErrRoomNotFound
	}

	m, exists := room.Member(msg.UserID)
	if !exists {
		if o.MaxUsersPerRoom > 0 && room.MemberCount() >= o.MaxUsersPerRoom {
			return core.ErrRoomFull
		}
		m = core.NewMember(&domain.User{ID: msg.UserID})
	}
	if p.Username != "" {
		if err := m.User.SetUsername(p.Username); err != nil {
			return core.ErrMalformedMessage
		}
	}
	if p.PreferredLanguage != "" {
		m.User.PreferredLanguage = p.PreferredLanguage
	}
	if !exists {
		room.AddMember(m)
	}
	resumed := m.Attach(conn)
	room.Touch(time.Now())

	log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(m.ID())).Bool("resumed", resumed).Bool("admin", room.IsAdmin(m.ID())).Msg("join")

	approved := core.JoinApprovedPayload{AdminID: room.AdminID(), OfferMode: room.OfferMode()}
	switch {
	case room.IsAdmin(m.ID()):
		o.deliver(room, m, core.TypeJoinApproved, approved, "", "")
	case room.OfferMode() == domain.OfferModeManual:
		admin, ok := room.Member(room.AdminID())
		if !ok || !admin.Connected() {
			return core.ErrAdminUnreachable
		}
		o.deliver(room, admin, core.TypeNewUser, core.NewUserPayload{
			NewUserID: m.ID(),
			Username:  m.User.Username,
		}, m.ID(), "")
	default:
		o.deliver(room, m, core.TypeJoinApproved, approved, "", "")
	}
	return nil
}

func (o *Orchestrator) handleReconnect(conn core.SignalConnection, room *core.Room, msg *core.Message) error {
	room.Lock()
	defer room.Unlock()
	if room.Closed() {
		return core.ErrRoomNotFound
	}
	m, ok := room.Member(msg.UserID)
	if !ok {
		return core.ErrUserNotFound
	}
	resumed := m.Attach(conn)
	room.Touch(time.Now())
	log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("user", string(m.ID())).Bool("resumed", resumed).Msg("reconnect")

	notice := core.NewUserPayload{NewUserID: m.ID()}
	switch room.OfferMode() {
	case domain.OfferModeManual:
		if room.IsAdmin(m.ID()) {
			return nil
		}
		if admin, ok := room.Member(room.AdminID()); ok && admin.Connected() {
			o.deliver(room, admin, core.TypeInitiateOffer, notice, "", admin.ID())
		}
	case domain.OfferModeAuto:
		o.broadcast(room, m.ID(), core.TypeCreateOffer, notice)
	}
	return nil
}

func (o *Orchestrator) handleSetOfferMode(room *core.Room, msg *core.Message) error {
	var p core.OfferModePayload
	if err := decodePayload(msg.Payload, &p); err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()
	if room.Closed() {
		return core.ErrRoomNotFound
	}
	if _, ok := room.Member(msg.UserID); !ok {
		return core.ErrUserNotFound
	}
	if !room.IsAdmin(msg.UserID) {
		return core.ErrUnauthorized
	}
	if err := o.validate.Struct(&p); err != nil {
		return core.ErrInvalidOfferMode
	}

	room.SetOfferMode(p.OfferMode)
	room.Touch(time.Now())
	log.Info().Str("module", "orch").Str("room", string(room.ID())).Str("offer_mode", string(p.OfferMode)).Str("by", string(msg.UserID)).Msg("offer mode set")

	o.broadcast(room, "", core.TypeOfferModeUpdated, core.OfferModePayload{OfferMode: p.OfferMode})
	return nil
}
