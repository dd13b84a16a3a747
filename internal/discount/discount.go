package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/contact"
	"github.com/wichananm65/pantry-shop-backend/internal/promo"
	"golang.org/x/sync/errgroup"
)

type SubscriberLookup interface {
	SubscribedBefore(ctx context.Context, email string, cutoff time.Time) (bool, error)
}

// OrderHistory counts non-cancelled orders placed under email or phone.
type OrderHistory interface {
	CountActiveByContact(ctx context.Context, email, phone string) (int, error)
}

type PromoLookup interface {
	Lookup(ctx context.Context, code string) (promo.Code, error)
}

// Reasons carried in details.reason of a PROMO_INVALID error.
const (
	ReasonNotFound           = "not_found"
	ReasonInactive           = "inactive"
	ReasonBelowMinimum       = "below_minimum"
	ReasonSubscriberDiscount = "subscriber_discount"
	ReasonFirstOrderOnly     = "first_order_only"
)

type Input struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	PromoCode string `json:"promoCode,omitempty"`
	Subtotal  int64  `json:"subtotal"`
}

type Result struct {
	DiscountAmount  int64  `json:"discountAmount"`
	DiscountLabel   string `json:"discountLabel"`
	FreeShipping    bool   `json:"freeShipping"`
	PromoCode       string `json:"promoCode,omitempty"`
	MinOrderAmount  int64  `json:"minOrderAmount,omitempty"`
	PromoSuperseded bool   `json:"promoSuperseded,omitempty"`
	Notice          string `json:"notice,omitempty"`
}

type Options struct {
	SubscriberCutoff time.Time
	SubscriberPct    int64
}

// Arbitrator picks at most one discount for an order: the early-subscriber
// discount or a single promo code.
type Arbitrator struct {
	subscribers SubscriberLookup
	orders      OrderHistory
	promos      PromoLookup
	opts        Options
}

func NewArbitrator(subs SubscriberLookup, orders OrderHistory, promos PromoLookup, opts Options) *Arbitrator {
	if opts.SubscriberPct == 0 {
		opts.SubscriberPct = 15
	}
	return &Arbitrator{subscribers: subs, orders: orders, promos: promos, opts: opts}
}

// PercentOf returns pct percent of amount, rounded half-up.
func PercentOf(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}

type eligibility struct {
	subscriber bool
	priorOrder bool
}

func (a *Arbitrator) eligibility(ctx context.Context, email, phone string) (eligibility, error) {
	var el eligibility
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if email == "" {
			return nil
		}
		ok, err := a.subscribers.SubscribedBefore(gctx, email, a.opts.SubscriberCutoff)
		el.subscriber = ok
		return err
	})
	g.Go(func() error {
		n, err := a.orders.CountActiveByContact(gctx, email, phone)
		el.priorOrder = n > 0
		return err
	})
	if err := g.Wait(); err != nil {
		return eligibility{}, apierr.Wrap(apierr.KindCommitFailure, "could not check discount eligibility, please try again", err)
	}
	return el, nil
}

func (a *Arbitrator) Resolve(ctx context.Context, in Input) (Result, error) {
	code := promo.Normalize(in.PromoCode)
	el, err := a.eligibility(ctx, contact.NormalizeEmail(in.Email), contact.NormalizePhone(in.Phone))
	if err != nil {
		return Result{}, err
	}

	if el.subscriber && !el.priorOrder {
		res := Result{
			DiscountAmount: PercentOf(in.Subtotal, a.opts.SubscriberPct),
			DiscountLabel:  fmt.Sprintf("Subscriber discount (%d%%)", a.opts.SubscriberPct),
		}
		if code != "" {
			res.PromoSuperseded = true
			res.Notice = fmt.Sprintf("Your subscriber discount replaces promo code %s", code)
		}
		return res, nil
	}
	if code == "" {
		return Result{}, nil
	}

	p, err := a.promos.Lookup(ctx, code)
	switch {
	case errors.Is(err, promo.ErrNotFound):
		return Result{}, invalid(ReasonNotFound, "Promo code %s does not exist", code)
	case err != nil:
		return Result{}, apierr.Wrap(apierr.KindCommitFailure, "could not check the promo code, please try again", err)
	case !p.Active:
		return Result{}, invalid(ReasonInactive, "Promo code %s is no longer active", code)
	case in.Subtotal < p.MinOrderAmount:
		return Result{}, invalid(ReasonBelowMinimum, "Promo code %s needs a subtotal of at least %d", code, p.MinOrderAmount).
			With("minOrderAmount", p.MinOrderAmount)
	case el.subscriber && !el.priorOrder:
		return Result{}, invalid(ReasonSubscriberDiscount, "Promo codes cannot be combined with the subscriber discount")
	case p.FirstOrderOnly && el.priorOrder:
		return Result{}, invalid(ReasonFirstOrderOnly, "Promo code %s is only valid on a first order", code)
	}

	if p.FreeShipping {
		return Result{
			DiscountLabel:  fmt.Sprintf("Promo %s (free shipping)", code),
			FreeShipping:   true,
			PromoCode:      code,
			MinOrderAmount: p.MinOrderAmount,
		}, nil
	}
	return Result{
		DiscountAmount: PercentOf(in.Subtotal, p.DiscountPercentage),
		DiscountLabel:  fmt.Sprintf("Promo %s (%d%%)", code, p.DiscountPercentage),
		PromoCode:      code,
		MinOrderAmount: p.MinOrderAmount,
	}, nil
}

func invalid(reason, format string, args ...any) *apierr.Error {
	return apierr.Newf(apierr.KindPromoInvalid, format, args...).With("reason", reason)
}
