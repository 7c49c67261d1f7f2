package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/peerlink/internal/app"
	"github.com/dkeye/peerlink/internal/app/orch"
	"github.com/dkeye/peerlink/internal/domain"
)

const (
	sessionRoomKey = "room_id"
	sessionUserKey = "user_id"
)

type CreateRoomRequest struct {
	Username          string `json:"username" binding:"required"`
	PreferredLanguage string `json:"preferredLanguage" binding:"required"`
}

type JoinRoomRequest struct {
	RoomCode          string `json:"roomCode" binding:"required"`
	Username          string `json:"username" binding:"required"`
	PreferredLanguage string `json:"preferredLanguage" binding:"required"`
}

type LeaveRequest struct {
	RoomID string `json:"roomId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// TicketResponse carries what a client needs to open the signaling socket.
type TicketResponse struct {
	RoomID     domain.RoomID      `json:"roomId"`
	RoomCode   domain.RoomCode    `json:"roomCode"`
	RoomLink   string             `json:"roomLink,omitempty"`
	UserID     domain.UserID      `json:"userId"`
	AdminID    domain.UserID      `json:"adminId"`
	OfferMode  domain.OfferMode   `json:"offerMode"`
	JoinToken  string             `json:"joinToken"`
	WSURL      string             `json:"wsUrl"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type roomHandlers struct {
	rooms      *app.RoomManager
	orch       *orch.Orchestrator
	publicWS   string
	iceServers []webrtc.ICEServer
}

func (h *roomHandlers) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid username and preferredLanguage required"})
		return
	}
	t, err := h.rooms.Create(req.Username, req.PreferredLanguage)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := h.ticket(c, t)
	resp.RoomLink = baseURL(c) + "/join.html?roomCode=" + url.QueryEscape(string(t.RoomCode))
	h.remember(c, t)
	c.JSON(http.StatusOK, resp)
}

func (h *roomHandlers) joinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid roomCode, username and preferredLanguage required"})
		return
	}
	t, err := h.rooms.RequestJoin(domain.RoomCode(req.RoomCode), req.Username, req.PreferredLanguage)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.remember(c, t)
	c.JSON(http.StatusOK, h.ticket(c, t))
}

// leave always succeeds; a member that is already gone is not an error.
func (h *roomHandlers) leave(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and userId required"})
		return
	}
	if err := h.orch.Leave(domain.RoomID(req.RoomID), domain.UserID(req.UserID)); err != nil {
		log.Debug().Err(err).Str("module", "adapters.http").Str("room", req.RoomID).Str("user", req.UserID).Msg("leave ignored")
	}
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *roomHandlers) roomInfo(c *gin.Context) {
	info, ok := h.rooms.Info(domain.RoomID(c.Param("roomId")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *roomHandlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.List()})
}

func (h *roomHandlers) session(c *gin.Context) {
	s := sessions.Default(c)
	roomID, _ := s.Get(sessionRoomKey).(string)
	userID, _ := s.Get(sessionUserKey).(string)
	if roomID == "" || userID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "userId": userID})
}

func (h *roomHandlers) listICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.servers()})
}

func notImplemented(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": feature + " not implemented yet"})
	}
}

func (h *roomHandlers) ticket(c *gin.Context, t app.Ticket) TicketResponse {
	return TicketResponse{
		RoomID:     t.RoomID,
		RoomCode:   t.RoomCode,
		UserID:     t.UserID,
		AdminID:    t.AdminID,
		OfferMode:  t.OfferMode,
		JoinToken:  t.JoinToken,
		WSURL:      h.wsURL(c),
		ICEServers: h.servers(),
	}
}

func (h *roomHandlers) servers() []webrtc.ICEServer {
	if h.iceServers == nil {
		return []webrtc.ICEServer{}
	}
	return h.iceServers
}

func (h *roomHandlers) remember(c *gin.Context, t app.Ticket) {
	s := sessions.Default(c)
	s.Set(sessionRoomKey, string(t.RoomID))
	s.Set(sessionUserKey, string(t.UserID))
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
}

func (h *roomHandlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrInvalidRoomCode):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrRoomUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("room request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *roomHandlers) wsURL(c *gin.Context) string {
	if h.publicWS != "" {
		return h.publicWS
	}
	scheme := "ws"
	if requestScheme(c) == "https" {
		scheme = "wss"
	}
	return scheme + "://" + c.Request.Host + "/ws"
}

func baseURL(c *gin.Context) string {
	return requestScheme(c) + "://" + c.Request.Host
}

func requestScheme(c *gin.Context) string {
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		return p
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
