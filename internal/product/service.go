package product

import (
	"context"
	"errors"
	"strings"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	return s.repo.List(ctx, category)
}

func (s *Service) GetByID(ctx context.Context, id string) (Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, apierr.Newf(apierr.KindProductNotFound, "product %s not found", id).With("productId", id)
	}
	return p, err
}

// Snapshot returns the authoritative state of every requested product. A
// single missing id fails the whole read.
func (s *Service) Snapshot(ctx context.Context, ids []string) (map[string]Product, error) {
	snap, err := s.repo.Snapshot(ctx, ids)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindCommitFailure, "could not read the catalog, please try again", err)
	}
	for _, id := range ids {
		if _, ok := snap[id]; !ok {
			return nil, apierr.Newf(apierr.KindProductNotFound, "product %s is no longer available", id).With("productId", id)
		}
	}
	return snap, nil
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if ves := validateProduct(p); len(ves) > 0 {
		return Product{}, apierr.New(apierr.KindValidation, "invalid product").With("errors", ves)
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Restock(ctx context.Context, id string, openingStock int) (Product, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if openingStock < current.StockOut {
		return Product{}, apierr.Newf(apierr.KindValidation,
			"openingStock must be at least the %d units already sold", current.StockOut)
	}
	p, err := s.repo.SetOpeningStock(ctx, id, openingStock)
	if errors.Is(err, ErrNotFound) {
		return Product{}, apierr.Newf(apierr.KindProductNotFound, "product %s not found", id)
	}
	return p, err
}

func validateProduct(p Product) map[string]string {
	errs := map[string]string{}
	if p.Name == "" {
		errs["name"] = "name is required"
	}
	if p.Price < 0 {
		errs["price"] = "price must be >= 0"
	}
	if p.OpeningStock < 0 {
		errs["openingStock"] = "openingStock must be >= 0"
	}
	if p.StockOut < 0 || p.StockOut > p.OpeningStock {
		errs["stockOut"] = "stockOut must be between 0 and openingStock"
	}
	if p.Category != "" {
		valid := false
		for _, c := range AllowedCategories {
			if p.Category == c {
				valid = true
				break
			}
		}
		if !valid {
			errs["category"] = "invalid category"
		}
	}
	return errs
}
