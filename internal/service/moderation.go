package service

import (
	"context"
	"errors"
	"fmt"

	"clipstore/internal/domain"
	"clipstore/internal/events"
	"clipstore/internal/models"
	"clipstore/internal/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ModerationService asks verified admins to approve new chats and applies their answer.
// Prompts go out through the admin bot.
type ModerationService struct {
	repo   domain.EntityRepository
	admin  domain.TelegramService
	events domain.EventPublisher
	logger *zerolog.Logger
}

func NewModerationService(
	repo domain.EntityRepository,
	admin domain.TelegramService,
	publisher domain.EventPublisher,
	logger *zerolog.Logger,
) *ModerationService {
	return &ModerationService{
		repo:   repo,
		admin:  admin,
		events: publisher,
		logger: logger,
	}
}

// Notify sends the approval prompt to every verified admin and returns how many
// prompts were delivered. An admin that cannot be reached does not stop the loop.
func (s *ModerationService) Notify(ctx context.Context, e *models.Entity) int {
	admins, err := s.repo.List(ctx, models.KindAdmin)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list admins for moderation")
		return 0
	}

	keyboard, err := ModerationKeyboard(e.Kind, e.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", e.ID).Msg("Failed to build moderation keyboard")
		return 0
	}
	text := ModerationPrompt(e)

	sent := 0
	for _, admin := range admins {
		if !admin.IsVerified {
			continue
		}
		if _, err := s.admin.SendWithInlineKeyboard(admin.ID, text, keyboard); err != nil {
			s.logger.Warn().Err(err).Int64("admin_id", admin.ID).Msg("Failed to deliver moderation prompt")
			continue
		}
		sent++
	}
	return sent
}

// Approve marks the record verified. ok is false when no such record exists.
// Approving an already verified record changes nothing and publishes nothing.
func (s *ModerationService) Approve(ctx context.Context, kind models.Kind, id int64) (bool, error) {
	changed, err := setVerified(ctx, s.repo, kind, id, true)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if changed != nil {
		publishChange(s.events, s.logger, changed, true, 0)
	}
	return true, nil
}

// Reject acknowledges a rejection. Rejections are not stored.
func (s *ModerationService) Reject(ctx context.Context, kind models.Kind, id int64) error {
	s.logger.Info().Str("kind", string(kind)).Int64("chat_id", id).Msg("Moderation rejected")
	return nil
}

func ModerationPrompt(e *models.Entity) string {
	return fmt.Sprintf("%s Chat ID: %d\nUsername: %s\nDo you want to activate this %s?",
		e.Kind.Label(), e.ID, e.Mention(), e.Kind)
}

func ModerationKeyboard(kind models.Kind, id int64) (tgbotapi.InlineKeyboardMarkup, error) {
	activate, err := models.ModerationAction{Action: models.ActionActivate, Kind: kind, ID: id}.Encode()
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	reject, err := models.ModerationAction{Action: models.ActionReject, Kind: kind, ID: id}.Encode()
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Activate", activate),
		tgbotapi.NewInlineKeyboardButtonData("Reject", reject),
	)), nil
}

// setVerified flips the flag through Update. It returns the record only when the
// flag actually changed.
func setVerified(ctx context.Context, repo domain.EntityRepository, kind models.Kind, id int64, verified bool) (*models.Entity, error) {
	flipped := false
	e, err := repo.Update(ctx, kind, id, func(e *models.Entity) error {
		flipped = e.IsVerified != verified
		e.IsVerified = verified
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, nil
	}
	return e, nil
}

func publishChange(publisher domain.EventPublisher, logger *zerolog.Logger, e *models.Entity, verified bool, by int64) {
	eventType := events.EventEntityDeactivated
	if verified {
		eventType = events.EventEntityActivated
	}
	err := publisher.PublishJSON(eventType, events.EntityEventPayload{
		Kind:        e.Kind,
		ID:          e.ID,
		Username:    e.Username,
		ChangedByID: by,
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}
