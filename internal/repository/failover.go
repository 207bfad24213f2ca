package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clipstore/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRateLimiter uses primary until it fails, then serves from fallback and
// retries primary once per recoveryInterval.
type FailoverRateLimiter struct {
	primary  domain.RateLimiter
	fallback domain.RateLimiter
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverRateLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	return &FailoverRateLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverRateLimiter) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.recoveryDue() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary rate limiter recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary rate limiter failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}

// IsDegraded reports whether the fallback is currently serving.
func (r *FailoverRateLimiter) IsDegraded() bool {
	return r.isDown.Load()
}

func (r *FailoverRateLimiter) recoveryDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = r.now()
	return true
}

func (r *FailoverRateLimiter) markChecked() {
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}
