package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/farmsync/farmsync/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListActive(ctx context.Context) ([]Location, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Location, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, name, description string) (Location, error) {
	if strings.TrimSpace(name) == "" {
		return Location{}, fmt.Errorf("%w: location name is required", shared.ErrInvalidArgument)
	}
	return s.repo.Create(ctx, Location{Name: name, Description: description, IsActive: true})
}
