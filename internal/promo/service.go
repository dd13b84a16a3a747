package promo

import (
	"context"
	"errors"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup returns the code or ErrNotFound; the arbitrator decides what a
// missing code means for the shopper.
func (s *Service) Lookup(ctx context.Context, code string) (Code, error) {
	return s.repo.Get(ctx, Normalize(code))
}

func (s *Service) Featured(ctx context.Context) (Code, error) {
	c, err := s.repo.Featured(ctx)
	if errors.Is(err, ErrNotFound) {
		return Code{}, apierr.New(apierr.KindPromoInvalid, "no featured promo right now")
	}
	return c, err
}

func (s *Service) Save(ctx context.Context, c Code) (Code, error) {
	c.Code = Normalize(c.Code)
	if ves := validate(c); len(ves) > 0 {
		return Code{}, apierr.New(apierr.KindValidation, "invalid promo code").With("errors", ves)
	}
	return s.repo.Upsert(ctx, c)
}
