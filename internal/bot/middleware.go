package bot

import (
	"context"

	"clipstore/internal/logging"
)

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// recoverJob is deferred by download jobs: a panic is logged and fallback
// still answers the requester.
func (b *Bot) recoverJob(ctx context.Context, fallback func()) {
	r := recover()
	if r == nil {
		return
	}
	if b.metrics != nil {
		b.metrics.ErrorsTotal.Inc()
	}
	logging.FromContext(ctx, b.logger).Error().Interface("panic", r).Msg("Recovered from panic in download")
	fallback()
}

// track adds a job to the wait group unless Stop has begun.
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopping {
		return false
	}
	b.wg.Add(1)
	return true
}

// allow applies the per-sender rate limit. Limiter errors let the update through.
func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil || userID == 0 {
		return true
	}
	ok, err := b.limiter.CheckRateLimit(ctx, userID, b.config.Bot.RateLimitMessages, b.config.Bot.RateLimitWindowDuration())
	if err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	if !ok {
		logging.FromContext(ctx, b.logger).Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
	}
	return ok
}
