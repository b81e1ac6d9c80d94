package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// CatalogService manages class listings.
type CatalogService struct {
	classes ClassStore
	log     *slog.Logger
}

// NewCatalogService builds the class catalog over classes.
func NewCatalogService(classes ClassStore, log *slog.Logger) *CatalogService {
	return &CatalogService{classes: classes, log: log.With(slog.String("service", "catalog"))}
}

// List returns classes, optionally only one instructor's, most enrolled
// first when sortByEnrolled is set, capped at limit when positive.
func (s *CatalogService) List(ctx context.Context, f model.ClassFilter) ([]model.ClassListing, error) {
	f.InstructorEmail = normalizeEmail(f.InstructorEmail)
	if f.Limit < 0 {
		f.Limit = 0
	}
	classes, err := s.classes.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Get returns the class or nil when there is none.
func (s *CatalogService) Get(ctx context.Context, id string) (*model.ClassListing, error) {
	c, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// Create stores a new class. Enrolled always starts at zero.
func (s *CatalogService) Create(ctx context.Context, req model.CreateClassRequest) (model.InsertResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Seats < 0 {
		return model.InsertResult{}, fmt.Errorf("%w: seats cannot be negative", ErrInvalidInput)
	}
	if req.Price < 0 {
		return model.InsertResult{}, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}

	c := &model.ClassListing{
		Name:            req.Name,
		Image:           req.Image,
		Seats:           req.Seats,
		Price:           req.Price,
		InstructorName:  req.InstructorName,
		InstructorEmail: normalizeEmail(req.InstructorEmail),
	}
	id, err := s.classes.Create(ctx, c)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("create class: %w", err)
	}
	s.log.Info("class created", slog.String("class_id", id), slog.String("instructor", c.InstructorEmail))
	return model.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// Update applies the whitelisted fields of u. Nothing else on a class can be
// changed through this path.
func (s *CatalogService) Update(ctx context.Context, id string, u model.ClassUpdate) (model.UpdateResult, error) {
	if u.Empty() {
		return model.UpdateResult{}, fmt.Errorf("%w: no updatable fields", ErrInvalidInput)
	}
	if u.Seats != nil && *u.Seats < 0 {
		return model.UpdateResult{}, fmt.Errorf("%w: seats cannot be negative", ErrInvalidInput)
	}
	if u.Price != nil && *u.Price < 0 {
		return model.UpdateResult{}, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	res, err := s.classes.Update(ctx, id, u)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("update class: %w", err)
	}
	return res, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) (model.DeleteResult, error) {
	res, err := s.classes.Delete(ctx, id)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete class: %w", err)
	}
	if res.DeletedCount > 0 {
		s.log.Info("class deleted", slog.String("class_id", id))
	}
	return res, nil
}
