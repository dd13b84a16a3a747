package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/contact"
	"github.com/wichananm65/pantry-shop-backend/internal/discount"
)

// Store applies cart mutations. Each call loads the state, changes it and
// saves it before returning, so a crash never loses an acknowledged edit.
type Store struct {
	persister Persister
	// serializes read-modify-write cycles
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(p Persister) *Store {
	return &Store{persister: p, now: func() time.Time { return time.Now().UTC() }}
}

func notFound(id string) error {
	return apierr.New(apierr.KindCartNotFound, "cart not found").With("cartId", id)
}

func (s *Store) load(ctx context.Context, id string) (State, error) {
	st, err := s.persister.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return State{}, notFound(id)
	}
	if err != nil {
		return State{}, apierr.Wrap(apierr.KindCommitFailure, "could not load the cart", err)
	}
	return st, nil
}

func (s *Store) update(ctx context.Context, id string, fn func(*State) error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx, id)
	if err != nil {
		return State{}, err
	}
	st.Notices = nil
	if err := fn(&st); err != nil {
		return State{}, err
	}
	st.revokePromoBelowMinimum()
	st.UpdatedAt = s.now()
	if err := s.persister.Save(ctx, id, st); err != nil {
		return State{}, apierr.Wrap(apierr.KindCommitFailure, "could not save the cart", err)
	}
	return st, nil
}

// Create starts an empty cart under a fresh session id.
func (s *Store) Create(ctx context.Context) (string, State, error) {
	id := uuid.NewString()
	st := State{Items: []Item{}, UpdatedAt: s.now()}
	if err := s.persister.Save(ctx, id, st); err != nil {
		return "", State{}, apierr.Wrap(apierr.KindCommitFailure, "could not create the cart", err)
	}
	return id, st, nil
}

func (s *Store) Get(ctx context.Context, id string) (State, error) {
	return s.load(ctx, id)
}

// AddItem adds item, merging into an existing line for the same product.
// The display fields of an existing line are refreshed from item.
func (s *Store) AddItem(ctx context.Context, id string, item Item) (State, error) {
	if strings.TrimSpace(item.ProductID) == "" {
		return State{}, apierr.New(apierr.KindValidation, "productId is required")
	}
	if item.Quantity < 1 {
		return State{}, apierr.New(apierr.KindValidation, "quantity must be at least 1")
	}
	return s.update(ctx, id, func(st *State) error {
		if i := st.index(item.ProductID); i >= 0 {
			st.Items[i].Quantity += item.Quantity
			st.Items[i].Name = item.Name
			st.Items[i].Image = item.Image
			st.Items[i].Price = item.Price
			return nil
		}
		st.Items = append(st.Items, item)
		return nil
	})
}

func lineMissing(productID string) error {
	return apierr.New(apierr.KindProductNotFound, "product is not in the cart").With("productId", productID)
}

func (s *Store) IncreaseQuantity(ctx context.Context, id, productID string) (State, error) {
	return s.update(ctx, id, func(st *State) error {
		i := st.index(productID)
		if i < 0 {
			return lineMissing(productID)
		}
		st.Items[i].Quantity++
		return nil
	})
}

// DecreaseQuantity never takes a line below one; use RemoveItem to drop it.
func (s *Store) DecreaseQuantity(ctx context.Context, id, productID string) (State, error) {
	return s.update(ctx, id, func(st *State) error {
		i := st.index(productID)
		if i < 0 {
			return lineMissing(productID)
		}
		if st.Items[i].Quantity > 1 {
			st.Items[i].Quantity--
		}
		return nil
	})
}

func (s *Store) RemoveItem(ctx context.Context, id, productID string) (State, error) {
	return s.update(ctx, id, func(st *State) error {
		i := st.index(productID)
		if i < 0 {
			return lineMissing(productID)
		}
		st.Items = append(st.Items[:i], st.Items[i+1:]...)
		return nil
	})
}

// Reset empties the cart after an order was placed. Contact details stay.
func (s *Store) Reset(ctx context.Context, id string) (State, error) {
	return s.update(ctx, id, func(st *State) error {
		st.Items = []Item{}
		st.Promo = nil
		st.Generation++
		return nil
	})
}

// SetCustomer records the shopper's contact details. A new email drops the
// applied promo since its eligibility was decided for the old one. Any
// contact change invalidates eligibility checks still in flight.
func (s *Store) SetCustomer(ctx context.Context, id, email, phone string) (State, error) {
	email = contact.NormalizeEmail(email)
	phone = contact.NormalizePhone(phone)
	return s.update(ctx, id, func(st *State) error {
		if email != st.Email {
			if st.Promo != nil {
				st.notice("Promo code %s was removed because the email address changed", st.Promo.Code)
				st.Promo = nil
			}
		}
		if email != st.Email || phone != st.Phone {
			st.Generation++
		}
		st.Email = email
		st.Phone = phone
		return nil
	})
}

// ApplyPromo sets p as the applied promo, replacing any earlier one.
func (s *Store) ApplyPromo(ctx context.Context, id string, p AppliedPromo) (State, error) {
	return s.update(ctx, id, func(st *State) error {
		if p.MinOrderAmount > 0 && st.Subtotal() < p.MinOrderAmount {
			return apierr.Newf(apierr.KindPromoInvalid, "Promo code %s needs a subtotal of at least %d", p.Code, p.MinOrderAmount).
				With("reason", discount.ReasonBelowMinimum).
				With("minOrderAmount", p.MinOrderAmount)
		}
		st.Promo = &p
		return nil
	})
}

// BeginEligibilityCheck starts a new check and returns its generation along
// with the state the check should be computed from.
func (s *Store) BeginEligibilityCheck(ctx context.Context, id string) (uint64, State, error) {
	st, err := s.update(ctx, id, func(st *State) error {
		st.Generation++
		return nil
	})
	if err != nil {
		return 0, State{}, err
	}
	return st.Generation, st, nil
}

// ApplyEligibility stores the outcome of the check started at generation.
// An outdated result leaves the cart untouched and reports applied=false.
func (s *Store) ApplyEligibility(ctx context.Context, id string, generation uint64, res discount.Result) (State, bool, error) {
	applied := false
	st, err := s.update(ctx, id, func(st *State) error {
		if st.Generation != generation {
			return nil
		}
		applied = true
		switch {
		case res.PromoSuperseded:
			st.Promo = nil
			if res.Notice != "" {
				st.notice("%s", res.Notice)
			}
		case res.PromoCode != "":
			st.Promo = &AppliedPromo{
				Code:           res.PromoCode,
				Label:          res.DiscountLabel,
				MinOrderAmount: res.MinOrderAmount,
				FreeShipping:   res.FreeShipping,
			}
		default:
			st.Promo = nil
		}
		return nil
	})
	if err != nil {
		return State{}, false, err
	}
	return st, applied, nil
}
