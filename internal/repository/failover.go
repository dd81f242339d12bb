package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"travelbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSequence uses primary until it fails, then serves from fallback and
// probes primary again once recheckAfter has passed.
type FailoverSequence struct {
	primary      domain.Sequence
	fallback     domain.Sequence
	logger       *zerolog.Logger
	recheckAfter time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSequence(primary, fallback domain.Sequence, logger *zerolog.Logger) *FailoverSequence {
	return &FailoverSequence{
		primary:      primary,
		fallback:     fallback,
		logger:       logger,
		recheckAfter: time.Minute,
	}
}

func (s *FailoverSequence) Next(ctx context.Context, key string, floor int64) (int64, error) {
	if !s.isDown.Load() || s.shouldRecheck() {
		n, err := s.primary.Next(ctx, key, floor)
		if err == nil {
			if s.isDown.Swap(false) {
				s.logger.Info().Str("key", key).Msg("primary sequence recovered")
			}
			return n, nil
		}
		if !s.isDown.Swap(true) {
			s.logger.Error().Err(err).Str("key", key).Msg("primary sequence failed, falling back")
		}
		s.mu.Lock()
		s.lastCheck = time.Now()
		s.mu.Unlock()
	}
	return s.fallback.Next(ctx, key, floor)
}

func (s *FailoverSequence) shouldRecheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) <= s.recheckAfter {
		return false
	}
	s.lastCheck = time.Now()
	return true
}
