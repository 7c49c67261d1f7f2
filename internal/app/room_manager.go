package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/peerlink/internal/core"
	"github.com/dkeye/peerlink/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrRoomUnavailable = errors.New("room not found or full")
)

// RoomManager implements the REST side of the room lifecycle: creating a
// room with its admin, and handing out join credentials for a room code.
type RoomManager struct {
	Registry           *Registry
	MaxUsersPerRoom    int
	SupportedLanguages []string
}

func NewRoomManager(reg *Registry, maxUsers int, languages []string) *RoomManager {
	return &RoomManager{
		Registry:           reg,
		MaxUsersPerRoom:    maxUsers,
		SupportedLanguages: languages,
	}
}

// Ticket is everything a client needs to open the signaling connection.
type Ticket struct {
	RoomID    domain.RoomID
	RoomCode  domain.RoomCode
	UserID    domain.UserID
	AdminID   domain.UserID
	OfferMode domain.OfferMode
	JoinToken string
}

func (m *RoomManager) Create(username, preferredLanguage string) (Ticket, error) {
	m.checkLanguage(preferredLanguage)
	admin, err := domain.NewUser(username, preferredLanguage)
	if err != nil {
		return Ticket{}, err
	}
	room, err := m.Registry.CreateRoom(admin)
	if err != nil {
		return Ticket{}, fmt.Errorf("create room: %w", err)
	}
	return Ticket{
		RoomID:    room.ID(),
		RoomCode:  room.Code(),
		UserID:    admin.ID,
		AdminID:   admin.ID,
		OfferMode: domain.OfferModeAuto,
		JoinToken: room.JoinToken(),
	}, nil
}

// RequestJoin resolves a room code and mints a user id. The user is only
// inserted into the room once it sends a valid join message.
func (m *RoomManager) RequestJoin(code domain.RoomCode, username, preferredLanguage string) (Ticket, error) {
	m.checkLanguage(preferredLanguage)
	if _, err := domain.NewUser(username, preferredLanguage); err != nil {
		return Ticket{}, err
	}
	room, ok := m.Registry.RoomByCode(code)
	if !ok {
		return Ticket{}, ErrInvalidRoomCode
	}

	room.Lock()
	defer room.Unlock()
	if room.Closed() || (m.MaxUsersPerRoom > 0 && room.MemberCount() >= m.MaxUsersPerRoom) {
		return Ticket{}, ErrRoomUnavailable
	}

	userID := domain.UserID(uuid.NewString())
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID())).Str("user", string(userID)).Str("code", string(code)).Msg("join requested")
	return Ticket{
		RoomID:    room.ID(),
		RoomCode:  room.Code(),
		UserID:    userID,
		AdminID:   room.AdminID(),
		OfferMode: room.OfferMode(),
		JoinToken: room.JoinToken(),
	}, nil
}

func (m *RoomManager) Info(id domain.RoomID) (core.RoomInfo, bool) {
	room, ok := m.Registry.LookupRoom(id)
	if !ok {
		return core.RoomInfo{}, false
	}
	info := room.Info()
	return info, true
}

func (m *RoomManager) List() []core.RoomInfo {
	return m.Registry.List()
}

func (m *RoomManager) checkLanguage(lang string) {
	if len(m.SupportedLanguages) == 0 || domain.LanguageSupported(lang, m.SupportedLanguages) {
		return
	}
	log.Warn().Str("module", "app.rooms").Str("language", lang).Msg("unsupported language")
}
