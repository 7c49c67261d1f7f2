package domain

// Member is a read-only view of a user's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	User
	Connected bool `json:"connected"`
	Admin     bool `json:"admin"`
}
