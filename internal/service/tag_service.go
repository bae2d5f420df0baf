package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/GKaszewski/k-notes/internal/domain"
	"github.com/GKaszewski/k-notes/internal/repository"
)

// TagService coordina reglas de negocio para tags.
type TagService struct {
	tags repository.TagRepository
}

func NewTagService(tags repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

var (
	ErrTagNotFound = errors.New("tag not found")
	ErrInvalidTag  = errors.New("invalid tag name")
	ErrTagExists   = errors.New("tag name already in use")
)

func (s *TagService) Create(ctx context.Context, userID, name string) (domain.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return domain.Tag{}, ErrInvalidTag
	}
	return s.tags.CreateOrGet(ctx, domain.Tag{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
	})
}

func (s *TagService) List(ctx context.Context, userID string) ([]domain.Tag, error) {
	return s.tags.ListByUser(ctx, userID)
}

func (s *TagService) Rename(ctx context.Context, userID, tagID, name string) (domain.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return domain.Tag{}, ErrInvalidTag
	}
	tag, err := s.owned(ctx, userID, tagID)
	if err != nil {
		return domain.Tag{}, err
	}
	// Renombrar hacia un nombre que el usuario ya tiene choca contra la
	// restricción (user_id, name).
	if err := s.tags.Rename(ctx, tagID, name); err != nil {
		if isUniqueViolation(err) {
			return domain.Tag{}, ErrTagExists
		}
		return domain.Tag{}, err
	}
	tag.Name = name
	return tag, nil
}

func (s *TagService) Delete(ctx context.Context, userID, tagID string) error {
	if _, err := s.owned(ctx, userID, tagID); err != nil {
		return err
	}
	return s.tags.Delete(ctx, tagID)
}

func (s *TagService) owned(ctx context.Context, userID, tagID string) (domain.Tag, error) {
	tag, err := s.tags.GetByID(ctx, tagID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tag{}, ErrTagNotFound
		}
		return domain.Tag{}, err
	}
	if tag.UserID != userID {
		return domain.Tag{}, ErrForbidden
	}
	return tag, nil
}
