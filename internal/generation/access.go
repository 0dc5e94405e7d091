package generation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"eventcraft/internal/models"
	"eventcraft/internal/store"
)

// canSee reports whether user may read or delete a row owned by owner.
func canSee(user *models.User, owner uuid.UUID) bool {
	return user.IsAdmin() || user.ID == owner
}

// Get returns one of the user's generations. Admins may read any.
func (s *Service) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Generation, error) {
	g, err := s.gens.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	if !canSee(user, g.UserID) {
		return nil, ErrForbidden
	}
	return g, nil
}

// GetCarousel returns one of the user's carousels with its slides.
func (s *Service) GetCarousel(ctx context.Context, user *models.User, id uuid.UUID) (*models.Carousel, error) {
	c, err := s.gens.FindCarousel(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if !canSee(user, c.UserID) {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListOptions narrows List.
type ListOptions struct {
	Status   string
	Kind     string
	Limit    int
	Offset   int
	AllUsers bool // admins only; ignored for other users
}

// List returns the user's generations newest first and the total count.
func (s *Service) List(ctx context.Context, user *models.User, opts ListOptions) ([]models.Generation, int, error) {
	f := store.ListFilter{
		Status: opts.Status,
		Kind:   opts.Kind,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if !(opts.AllUsers && user.IsAdmin()) {
		id := user.ID
		f.UserID = &id
	}
	return s.gens.List(ctx, f)
}

// Delete removes a generation and its stored object. The row goes
// first; a failed object delete is only logged.
func (s *Service) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	g, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.gens.Delete(ctx, id); err != nil {
		return translate(err)
	}
	if g.S3Key != "" && s.objects != nil {
		s.cleanup(ctx, g.S3Key)
	}
	slog.Info("generation deleted", "generation_id", id, "user_id", user.ID)
	return nil
}
