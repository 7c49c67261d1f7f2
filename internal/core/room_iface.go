package core

import (
	"time"

	"github.com/dkeye/peerlink/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []*Member
}

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID         domain.RoomID    `json:"roomId"`
	AdminID    domain.UserID    `json:"adminId"`
	OfferMode  domain.OfferMode `json:"offerMode"`
	Users      []domain.Member  `json:"users"`
	UserCount  int              `json:"userCount"`
	CreatedAt  time.Time        `json:"createdAt"`
	LastActive time.Time        `json:"lastActive"`
}
