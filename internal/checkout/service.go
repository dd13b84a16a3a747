// Package checkout turns a submitted cart into a placed order: it validates
// the request, prices it from a fresh catalog snapshot, picks the discount,
// resolves delivery, guards against duplicates and hands the result to the
// order writer.
package checkout

import (
	"context"
	"math"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/delivery"
	"github.com/wichananm65/pantry-shop-backend/internal/discount"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
	"github.com/wichananm65/pantry-shop-backend/internal/payment"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

type Catalog interface {
	Snapshot(ctx context.Context, ids []string) (map[string]product.Product, error)
}

type Discounts interface {
	Resolve(ctx context.Context, in discount.Input) (discount.Result, error)
}

type Orders interface {
	Place(ctx context.Context, o order.Order) (order.Order, bool, error)
	FindRecentDuplicate(ctx context.Context, phone string, total int64, now time.Time, window time.Duration) (order.Order, bool, error)
	GetByIdempotencyKey(ctx context.Context, key string) (order.Order, bool, error)
}

type Gateway interface {
	Configured() bool
	CheckoutParams(o order.Order) (payment.Params, error)
}

type Deps struct {
	Catalog   Catalog
	Discounts Discounts
	Delivery  *delivery.Resolver
	Orders    Orders
	Notifier  order.Notifier
	Gateway   Gateway
	// Locker is optional; without it only committed duplicates are caught.
	Locker Locker
	Log    *logger.Logger
}

type Service struct {
	deps   Deps
	window time.Duration
	now    func() time.Time
}

func NewService(deps Deps, duplicateWindow time.Duration) *Service {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if duplicateWindow <= 0 {
		duplicateWindow = 30 * time.Second
	}
	return &Service{deps: deps, window: duplicateWindow, now: func() time.Time { return time.Now().UTC() }}
}

// Receipt is the checkout response body.
type Receipt struct {
	Message         string              `json:"message"`
	OrderID         string              `json:"orderId"`
	Payment         order.PaymentMethod `json:"payment"`
	Subtotal        int64               `json:"subtotal"`
	DiscountAmount  int64               `json:"discountAmount"`
	DiscountLabel   string              `json:"discountLabel,omitempty"`
	ShippingCost    int64               `json:"shippingCost"`
	Total           int64               `json:"total"`
	PromoSuperseded bool                `json:"promoSuperseded,omitempty"`
	Notice          string              `json:"notice,omitempty"`
	Gateway         *payment.Params     `json:"gateway,omitempty"`
}

// Quote is the server-side pricing of a request before anything is written.
type Quote struct {
	Items    []order.LineItem
	Subtotal int64
	Discount discount.Result
	Shipping int64
	Total    int64
}

// Price runs snapshot, reconciliation, discount and delivery for req. It
// has no side effects.
func (s *Service) Price(ctx context.Context, req Request) (Quote, error) {
	lines := MergeLines(req.Items)
	snapshot, err := s.deps.Catalog.Snapshot(ctx, productIDs(lines))
	if err != nil {
		return Quote{}, err
	}
	if err := Reconcile(lines, snapshot); err != nil {
		return Quote{}, err
	}
	items, subtotal := PriceLines(lines, snapshot)
	for _, l := range lines {
		if p := snapshot[l.ProductID]; l.ClientPrice != 0 && !sameAmount(l.ClientPrice, p.Price) {
			s.deps.Log.Warn("client price differs from catalog", "productId", p.ID, "client", l.ClientPrice, "catalog", p.Price)
		}
	}

	disc, err := s.deps.Discounts.Resolve(ctx, discount.Input{
		Email:     req.Form.Email,
		Phone:     req.Form.Phone,
		PromoCode: req.PromoCode,
		Subtotal:  subtotal,
	})
	if err != nil {
		return Quote{}, err
	}
	shipping := s.deps.Delivery.Fee(req.Form.District, req.Form.City, disc.FreeShipping)
	total := subtotal - disc.DiscountAmount + shipping
	if total < 0 {
		total = 0
	}
	return Quote{Items: items, Subtotal: subtotal, Discount: disc, Shipping: shipping, Total: total}, nil
}

func sameAmount(client float64, server int64) bool {
	return math.Abs(client-float64(server)) < 0.005
}

// Checkout places the order described by req. A non-empty idempotencyKey
// makes retries of the same submission return the original order.
func (s *Service) Checkout(ctx context.Context, req Request, idempotencyKey string) (Receipt, error) {
	if existing, ok, err := s.deps.Orders.GetByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return Receipt{}, err
	} else if ok {
		s.deps.Log.Info("checkout replayed", "order", existing.Number)
		return s.receipt(existing, discount.Result{}, "Order already placed")
	}

	if req.Form.Payment == order.PaymentCard && (s.deps.Gateway == nil || !s.deps.Gateway.Configured()) {
		return Receipt{}, apierr.New(apierr.KindPayment, "card payments are not available right now")
	}

	quote, err := s.Price(ctx, req)
	if err != nil {
		return Receipt{}, err
	}
	if req.Total != 0 && !sameAmount(req.Total, quote.Total) {
		s.deps.Log.Warn("client total differs from server total", "phone", req.Form.Phone, "client", req.Total, "server", quote.Total)
	}

	now := s.now()
	if dup, found, err := s.deps.Orders.FindRecentDuplicate(ctx, req.Form.Phone, quote.Total, now, s.window); err != nil {
		return Receipt{}, err
	} else if found {
		s.deps.Log.Warn("duplicate submission rejected", "phone", req.Form.Phone, "total", quote.Total, "existing", dup.Number)
		return Receipt{}, duplicate(dup.Number)
	}

	release := func() {}
	if s.deps.Locker != nil {
		rel, ok, err := s.deps.Locker.Acquire(ctx, lockKey(req.Form.Phone, quote.Total), s.window)
		if err != nil {
			// the committed-order check above still applies
			s.deps.Log.Warn("checkout lock unavailable", "error", err)
		} else if !ok {
			s.deps.Log.Warn("duplicate submission in flight", "phone", req.Form.Phone, "total", quote.Total)
			return Receipt{}, duplicate("")
		} else {
			release = rel
		}
	}

	placed, created, err := s.deps.Orders.Place(ctx, order.Order{
		PaymentMethod: req.Form.Payment,
		// card orders are emailed once the gateway confirms payment
		EmailSent:     req.Form.Payment != order.PaymentCard && s.deps.Notifier != nil,
		Customer: order.Customer{
			FirstName:        req.Form.FirstName,
			LastName:         req.Form.LastName,
			Email:            req.Form.Email,
			Phone:            req.Form.Phone,
			AlternativePhone: req.Form.AlternativePhone,
		},
		Shipping: order.Shipping{
			Address:  req.Form.Address,
			District: req.Form.District,
			City:     req.Form.City,
			Notes:    req.Form.Notes,
		},
		Items:          quote.Items,
		Subtotal:       quote.Subtotal,
		DiscountAmount: quote.Discount.DiscountAmount,
		DiscountLabel:  quote.Discount.DiscountLabel,
		PromoCode:      quote.Discount.PromoCode,
		ShippingCost:   quote.Shipping,
		Total:          quote.Total,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		// nothing was written; let a retry through
		release()
		return Receipt{}, err
	}
	if !created {
		return s.receipt(placed, discount.Result{}, "Order already placed")
	}

	if placed.PaymentMethod != order.PaymentCard && s.deps.Notifier != nil {
		s.deps.Notifier.OrderPlaced(placed)
	}
	return s.receipt(placed, quote.Discount, "Order placed successfully")
}

func duplicate(existing string) error {
	e := apierr.New(apierr.KindDuplicateSubmission, "This order was just submitted. Please wait a moment before trying again.")
	if existing != "" {
		e.With("orderId", existing)
	}
	return e
}

func (s *Service) receipt(o order.Order, disc discount.Result, msg string) (Receipt, error) {
	r := Receipt{
		Message:         msg,
		OrderID:         o.Number,
		Payment:         o.PaymentMethod,
		Subtotal:        o.Subtotal,
		DiscountAmount:  o.DiscountAmount,
		DiscountLabel:   o.DiscountLabel,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		PromoSuperseded: disc.PromoSuperseded,
		Notice:          disc.Notice,
	}
	if o.PaymentMethod == order.PaymentCard && o.PaymentStatus != order.PaymentPaid && s.deps.Gateway != nil {
		params, err := s.deps.Gateway.CheckoutParams(o)
		if err != nil {
			return Receipt{}, err
		}
		r.Gateway = &params
	}
	return r, nil
}
