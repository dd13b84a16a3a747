// Package cart keeps the shopper's cart between page loads. State lives
// behind a Persister so the same Store runs on an in-process map in tests
// and on Redis in production.
package cart

import (
	"fmt"
	"time"
)

// Item is one product line. Name, image and price are display copies; the
// checkout re-reads the catalog before pricing anything.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// AppliedPromo is a promo code that passed eligibility for this cart.
type AppliedPromo struct {
	Code           string `json:"code"`
	Label          string `json:"label"`
	MinOrderAmount int64  `json:"minOrderAmount,omitempty"`
	FreeShipping   bool   `json:"freeShipping,omitempty"`
}

type State struct {
	Items []Item        `json:"items"`
	Email string        `json:"email,omitempty"`
	Phone string        `json:"phone,omitempty"`
	Promo *AppliedPromo `json:"promo,omitempty"`
	// Generation increments whenever an eligibility check starts or the
	// contact details change. Results carrying an older value are dropped.
	Generation uint64    `json:"generation"`
	Notices    []string  `json:"notices,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s State) Subtotal() int64 {
	var total int64
	for _, it := range s.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

func (s State) ItemCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s State) index(productID string) int {
	for i, it := range s.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	out := s
	out.Items = append([]Item(nil), s.Items...)
	out.Notices = append([]string(nil), s.Notices...)
	if s.Promo != nil {
		p := *s.Promo
		out.Promo = &p
	}
	return out
}

func (s *State) notice(format string, args ...any) {
	s.Notices = append(s.Notices, fmt.Sprintf(format, args...))
}

// revokePromoBelowMinimum drops the applied promo once the subtotal no
// longer reaches its minimum.
func (s *State) revokePromoBelowMinimum() {
	if s.Promo == nil || s.Promo.MinOrderAmount <= 0 {
		return
	}
	if s.Subtotal() < s.Promo.MinOrderAmount {
		s.notice("Promo code %s was removed because the subtotal is below %d", s.Promo.Code, s.Promo.MinOrderAmount)
		s.Promo = nil
	}
}
