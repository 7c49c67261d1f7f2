package app

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/dkeye/peerlink/internal/domain"
)

const (
	roomCodeBytes  = 5  // 10 hex chars, short enough to share by hand
	joinTokenBytes = 16 // 32 hex chars
)

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func newRoomCode() (domain.RoomCode, error) {
	s, err := randomHex(roomCodeBytes)
	return domain.RoomCode(s), err
}

func newJoinToken() (string, error) {
	return randomHex(joinTokenBytes)
}
