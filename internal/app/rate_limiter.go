package app

import (
	"strings"
	"sync"
	"time"

	"github.com/dkeye/peerlink/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per key: limit attempts per
// interval, all of which may be spent at once.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// JoinKey scopes a bucket to one user of one room.
func JoinKey(roomID domain.RoomID, userID domain.UserID) string {
	return string(roomID) + "/" + string(userID)
}

// Allow records an attempt for key and reports whether it is within the
// limit. A nil limiter, a non-positive limit or interval allows
// everything.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.limit <= 0 || rl.interval <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(rl.interval/time.Duration(rl.limit)), rl.limit)
		rl.buckets[key] = b
	}
	return b.AllowN(rl.now(), 1)
}

// Forget drops the bucket for key.
func (rl *RateLimiter) Forget(key string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// ForgetRoom drops every bucket of roomID.
func (rl *RateLimiter) ForgetRoom(roomID domain.RoomID) {
	if rl == nil {
		return
	}
	prefix := string(roomID) + "/"
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key := range rl.buckets {
		if strings.HasPrefix(key, prefix) {
			delete(rl.buckets, key)
		}
	}
}

// Prune drops buckets that have refilled completely; they carry no
// state a fresh bucket would not. It returns how many were dropped.
func (rl *RateLimiter) Prune() int {
	if rl == nil {
		return 0
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, b := range rl.buckets {
		if b.TokensAt(now) >= float64(b.Burst()) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Len reports how many buckets are held.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
