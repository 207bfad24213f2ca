package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"clipstore/internal/domain"
	"clipstore/internal/models"
	"clipstore/internal/repository"

	"github.com/rs/zerolog"
)

// AdminService backs the admin bot: admin bootstrap, listings and manual toggles.
type AdminService struct {
	repo   domain.EntityRepository
	events domain.EventPublisher
	secret []byte
	logger *zerolog.Logger
}

func NewAdminService(repo domain.EntityRepository, publisher domain.EventPublisher, secret string, logger *zerolog.Logger) *AdminService {
	return &AdminService{
		repo:   repo,
		events: publisher,
		secret: []byte(secret),
		logger: logger,
	}
}

// Touch returns the sender's Admin record, creating an unverified one on first contact.
func (s *AdminService) Touch(ctx context.Context, sender *models.Entity) (*models.Entity, error) {
	admin, err := s.repo.Get(ctx, models.KindAdmin, sender.ID)
	if err != nil {
		return nil, err
	}
	if admin != nil {
		return admin, nil
	}

	record := *sender
	record.Kind = models.KindAdmin
	record.IsVerified = false
	if _, err := s.repo.Create(ctx, &record); err != nil {
		return nil, err
	}
	// Перечитываем: параллельный Create мог сохранить свою версию
	admin, err = s.repo.Get(ctx, models.KindAdmin, sender.ID)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return &record, nil
	}
	return admin, nil
}

// Bootstrap verifies an unverified admin who presented the shared secret.
// It reports whether the admin was promoted by this call.
func (s *AdminService) Bootstrap(ctx context.Context, admin *models.Entity, text string) (bool, error) {
	if admin.IsVerified || !s.matchesSecret(text) {
		return false, nil
	}
	changed, err := setVerified(ctx, s.repo, models.KindAdmin, admin.ID, true)
	if err != nil {
		return false, err
	}
	if changed == nil {
		return false, nil
	}
	s.logger.Info().Int64("admin_id", admin.ID).Msg("Admin self-certified")
	publishChange(s.events, s.logger, changed, true, admin.ID)
	return true, nil
}

func (s *AdminService) matchesSecret(text string) bool {
	if len(s.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(text), s.secret) == 1
}

// ActiveChats lists verified users and groups.
func (s *AdminService) ActiveChats(ctx context.Context) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, kind := range []models.Kind{models.KindUser, models.KindGroup} {
		list, err := s.verified(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func (s *AdminService) ActiveAdmins(ctx context.Context) ([]*models.Entity, error) {
	return s.verified(ctx, models.KindAdmin)
}

func (s *AdminService) verified(ctx context.Context, kind models.Kind) ([]*models.Entity, error) {
	list, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	out := list[:0]
	for _, e := range list {
		if e.IsVerified {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetVerified sets the flag on every record matching id: users and admins, and
// groups when the id is negative. It returns the matched records; an empty result
// means the id is unknown.
func (s *AdminService) SetVerified(ctx context.Context, id int64, verified bool, by int64) ([]*models.Entity, error) {
	kinds := []models.Kind{models.KindUser, models.KindAdmin}
	if id < 0 {
		kinds = append(kinds, models.KindGroup)
	}

	var matched []*models.Entity
	for _, kind := range kinds {
		flipped := false
		e, err := s.repo.Update(ctx, kind, id, func(e *models.Entity) error {
			flipped = e.IsVerified != verified
			e.IsVerified = verified
			return nil
		})
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return matched, err
		}
		matched = append(matched, e)
		if flipped {
			publishChange(s.events, s.logger, e, verified, by)
		}
	}

	s.logger.Info().
		Int64("target_id", id).
		Bool("verified", verified).
		Int("matched", len(matched)).
		Int64("admin_id", by).
		Msg("Allow-list toggled")
	return matched, nil
}
