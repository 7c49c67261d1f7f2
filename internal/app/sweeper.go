package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes rooms nobody uses: rooms with no members,
// and rooms whose members never connected (or all left their grace
// window) for longer than IdleTTL.
type Sweeper struct {
	Registry *Registry
	Interval time.Duration
	IdleTTL  time.Duration
	// Limiter, if set, loses the buckets of swept rooms and idle keys.
	Limiter *RateLimiter

	now func() time.Time
}

func NewSweeper(reg *Registry, interval, idleTTL time.Duration) *Sweeper {
	return &Sweeper{
		Registry: reg,
		Interval: interval,
		IdleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		log.Warn().Str("module", "app.sweeper").Msg("sweep disabled")
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return
		case <-ticker.C:
			if n := s.SweepOnce(); n > 0 {
				log.Info().Str("module", "app.sweeper").Int("removed", n).Msg("swept idle rooms")
			}
		}
	}
}

// SweepOnce runs a single pass and returns the number of rooms removed.
func (s *Sweeper) SweepOnce() int {
	now := s.now()
	removed := 0
	for _, room := range s.Registry.AllRooms() {
		room.Lock()
		idle := room.Closed() ||
			room.MemberCount() == 0 ||
			(s.IdleTTL > 0 && !room.HasActivity() && now.Sub(room.LastActive()) > s.IdleTTL)
		if idle && !room.Closed() {
			room.Close()
		}
		room.Unlock()

		if !idle {
			continue
		}
		if s.Registry.Remove(room) {
			removed++
			s.Limiter.ForgetRoom(room.ID())
			log.Info().Str("module", "app.sweeper").Str("room", string(room.ID())).Msg("deleted idle room")
		}
	}
	if n := s.Limiter.Prune(); n > 0 {
		log.Debug().Str("module", "app.sweeper").Int("buckets", n).Msg("pruned idle rate limit buckets")
	}
	return removed
}
