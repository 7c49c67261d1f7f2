package domain

type (
	RoomID   string
	RoomCode string
)

type OfferMode string

const (
	// OfferModeAuto: every existing member is told to offer to a newcomer.
	OfferModeAuto OfferMode = "auto"
	// OfferModeManual: only the admin is notified and must approve.
	OfferModeManual OfferMode = "manual"
)
