package service

import (
	"context"
	"fmt"

	"clipstore/internal/domain"
	"clipstore/internal/events"
	"clipstore/internal/models"

	"github.com/rs/zerolog"
)

// Gate auto-registers first-contact chats and reports whether they may be served.
type Gate struct {
	repo     domain.EntityRepository
	notifier domain.ModerationNotifier
	events   domain.EventPublisher
	logger   *zerolog.Logger
}

func NewGate(repo domain.EntityRepository, notifier domain.ModerationNotifier, publisher domain.EventPublisher, logger *zerolog.Logger) *Gate {
	return &Gate{
		repo:     repo,
		notifier: notifier,
		events:   publisher,
		logger:   logger,
	}
}

// Check returns Allowed for verified chats and Pending for known unverified ones.
// An unknown chat is stored unverified and moderation is notified, but only by the
// caller whose write actually created the record.
func (g *Gate) Check(ctx context.Context, candidate *models.Entity, kind models.Kind) (models.Decision, error) {
	existing, err := g.repo.Get(ctx, kind, candidate.ID)
	if err != nil {
		return models.Pending, fmt.Errorf("load %s: %w", kind.Key(candidate.ID), err)
	}
	if existing != nil {
		if existing.IsVerified {
			return models.Allowed, nil
		}
		return models.Pending, nil
	}

	record := *candidate
	record.Kind = kind
	record.IsVerified = false

	created, err := g.repo.Create(ctx, &record)
	if err != nil {
		return models.Pending, fmt.Errorf("register %s: %w", record.Key(), err)
	}
	if !created {
		return models.Pending, nil
	}

	sent := g.notifier.Notify(ctx, &record)
	g.logger.Info().
		Str("kind", string(kind)).
		Int64("chat_id", record.ID).
		Int("admins_notified", sent).
		Msg("Registered new chat")

	if err := g.events.PublishJSON(events.EventEntityRegistered, events.EntityEventPayload{
		Kind:     kind,
		ID:       record.ID,
		Username: record.Username,
	}); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to publish registration event")
	}

	return models.NeedsRegistration, nil
}
