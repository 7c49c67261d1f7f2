package core

import (
	"encoding/json"

	"github.com/dkeye/peerlink/internal/domain"
)

type MessageType string

// Client originated.
const (
	TypeJoin         MessageType = "join"
	TypeReconnect    MessageType = "reconnect"
	TypeSetOfferMode MessageType = "set-offer-mode"

	TypeOffer         MessageType = "offer"
	TypeAnswer        MessageType = "answer"
	TypeICECandidate  MessageType = "ice-candidate"
	TypeManualOffer   MessageType = "manual-offer"
	TypeManualAccept  MessageType = "manual-accept"
	TypeInitiateOffer MessageType = "initiate-offer"
)

// Server originated, never expected inbound.
const (
	TypeCreateOffer      MessageType = "create-offer"
	TypeNewUser          MessageType = "new-user"
	TypeJoinApproved     MessageType = "join-approved"
	TypeOfferModeUpdated MessageType = "offer-mode-updated"
	TypeUserLeft         MessageType = "user-left"
)

// Directed reports whether t is relayed verbatim to a single target.
func (t MessageType) Directed() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate,
		TypeManualOffer, TypeManualAccept, TypeInitiateOffer:
		return true
	}
	return false
}

// Message is the wire envelope in both directions.
type Message struct {
	RoomID  domain.RoomID   `json:"roomId" validate:"required"`
	UserID  domain.UserID   `json:"userId" validate:"required"`
	Type    MessageType     `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
	To      domain.UserID   `json:"to,omitempty"`
	From    domain.UserID   `json:"from,omitempty"`
}

// ErrorReply is the only shape errors take on the wire.
type ErrorReply struct {
	Error string `json:"error"`
}

type JoinPayload struct {
	JoinToken         string `json:"joinToken"`
	Username          string `json:"username,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
}

type OfferModePayload struct {
	OfferMode domain.OfferMode `json:"offerMode" validate:"required,oneof=auto manual"`
}

type JoinApprovedPayload struct {
	AdminID   domain.UserID    `json:"adminId"`
	OfferMode domain.OfferMode `json:"offerMode"`
}

type NewUserPayload struct {
	NewUserID domain.UserID `json:"newUserId"`
	Username  string        `json:"username,omitempty"`
}

type UserLeftPayload struct {
	UserID domain.UserID `json:"userId"`
}

// Encode marshals an outbound message. payload may be nil or an already
// encoded json.RawMessage.
func Encode(roomID domain.RoomID, t MessageType, payload any, from, to domain.UserID) (Frame, error) {
	if raw, ok := payload.(json.RawMessage); ok && len(raw) == 0 {
		payload = nil
	}
	msg := struct {
		Type    MessageType   `json:"type"`
		Payload any           `json:"payload,omitempty"`
		From    domain.UserID `json:"from,omitempty"`
		To      domain.UserID `json:"to,omitempty"`
		RoomID  domain.RoomID `json:"roomId"`
	}{t, payload, from, to, roomID}
	return json.Marshal(msg)
}

func EncodeError(err error) Frame {
	b, _ := json.Marshal(ErrorReply{Error: err.Error()})
	return b
}
