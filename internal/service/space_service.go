package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"spacebook/internal/apperr"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
)

// ImageUpload is the image part of a create-space request. A nil Reader
// means the part was absent.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

type SpaceService struct {
	repo   domain.SpaceRepository
	images domain.ImageStore
	logger *zerolog.Logger
}

func NewSpaceService(repo domain.SpaceRepository, images domain.ImageStore, logger *zerolog.Logger) *SpaceService {
	return &SpaceService{repo: repo, images: images, logger: logger}
}

func (s *SpaceService) List(ctx context.Context) ([]*models.Space, error) {
	return s.repo.ListSpaces(ctx)
}

func (s *SpaceService) Get(ctx context.Context, id int64) (*models.Space, error) {
	space, err := s.repo.GetSpace(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("Space not found")
	}
	return space, err
}

// Create stores the image first and the row second; the image is removed
// again if the row cannot be written.
func (s *SpaceService) Create(ctx context.Context, space *models.Space, image ImageUpload) (*models.Space, error) {
	if image.Reader == nil {
		return nil, apperr.Validation("No image file part")
	}
	if image.Filename == "" {
		return nil, apperr.Validation("No selected file")
	}
	space.Name = strings.TrimSpace(space.Name)
	space.Location = strings.TrimSpace(space.Location)
	if space.Name == "" || space.Location == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if err := validateSpace(space); err != nil {
		return nil, err
	}

	path, err := s.images.Save(image.Filename, image.Reader)
	if err != nil {
		return nil, err
	}
	space.Image = path
	space.Booked = false

	if err := s.repo.CreateSpace(ctx, space); err != nil {
		if rmErr := s.images.Remove(path); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("image", path).Msg("orphaned upload")
		}
		return nil, err
	}

	s.logger.Info().Int64("space_id", space.ID).Str("image", path).Msg("space created")
	return space, nil
}

func (s *SpaceService) Update(ctx context.Context, id int64, patch models.SpacePatch) (*models.Space, error) {
	space, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(space)
	space.Name = strings.TrimSpace(space.Name)
	space.Location = strings.TrimSpace(space.Location)
	if space.Name == "" || space.Location == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if err := validateSpace(space); err != nil {
		return nil, err
	}

	err = s.repo.UpdateSpace(ctx, space)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("Space not found")
	}
	if err != nil {
		return nil, err
	}
	return space, nil
}

func (s *SpaceService) Delete(ctx context.Context, id int64) error {
	space, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.DeleteSpace(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("Space not found")
	}
	if err != nil {
		return err
	}

	if space.Image != "" {
		if err := s.images.Remove(space.Image); err != nil {
			s.logger.Warn().Err(err).Int64("space_id", id).Msg("failed to remove space image")
		}
	}
	return nil
}

func validateSpace(space *models.Space) error {
	if space.Capacity <= 0 {
		return apperr.Validation("Capacity must be a positive integer")
	}
	if space.Ratecard <= 0 {
		return apperr.Validation("Ratecard must be a positive number")
	}
	return nil
}
