package escalation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LockKey guards the sweep across server instances.
const LockKey = "locks:escalation-sweep"

// Locker is a best-effort distributed mutex.
type Locker interface {
	// TryLock returns false without error when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Escalator escalates every eligible complaint and reports how many changed.
type Escalator interface {
	EscalateOverdue(ctx context.Context) (int, error)
}

// Sweeper periodically runs the escalator while holding the lock.
type Sweeper struct {
	escalator Escalator
	locker    Locker
	interval  time.Duration
	log       zerolog.Logger
}

func NewSweeper(e Escalator, l Locker, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		escalator: e,
		locker:    l,
		interval:  interval,
		log:       log.With().Str("component", "escalation-sweeper").Logger(),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("escalation sweeper started")
	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("escalation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass if the lock can be taken. It returns the
// number of escalated complaints.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, LockKey, s.interval)
		if err != nil {
			s.log.Error().Err(err).Msg("acquire sweep lock")
			return 0
		}
		if !ok {
			s.log.Debug().Msg("sweep lock held elsewhere, skipping")
			return 0
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), LockKey); err != nil {
				s.log.Warn().Err(err).Msg("release sweep lock")
			}
		}()
	}

	n, err := s.escalator.EscalateOverdue(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("escalated", n).Msg("escalation sweep failed")
		return n
	}
	if n > 0 {
		s.log.Info().Int("escalated", n).Msg("escalated overdue complaints")
	}
	return n
}
