package order

import (
	"context"
	"errors"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
)

// Notifier sends the order confirmation emails. Implementations must not
// block the caller.
type Notifier interface {
	OrderPlaced(o Order)
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      *logger.Logger
}

func NewService(r Repository, n Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: r, notifier: n, log: log}
}

func notFound(number string) *apierr.Error {
	return apierr.Newf(apierr.KindOrderNotFound, "order %s not found", number).With("orderId", number)
}

func translate(err error, number string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return notFound(number)
	case errors.Is(err, ErrReopenForbidden):
		return apierr.Wrap(apierr.KindReopenForbidden, "a cancelled order cannot be reopened", err)
	case errors.Is(err, ErrInvalidTransition):
		return apierr.Wrap(apierr.KindInvalidTransition, "order status can only move forward", err)
	case errors.Is(err, ErrNotCardPayment):
		return apierr.Wrap(apierr.KindValidation, "only card orders can be confirmed as paid", err)
	case errors.Is(err, ErrStockConflict):
		return apierr.Wrap(apierr.KindStockConflict, "stock changed while your order was being placed, please try again", err)
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	return apierr.Wrap(apierr.KindCommitFailure, "could not save the order, please try again", err)
}

// Place runs the atomic order write. When another request already stored
// an order under the same idempotency key, that order is returned with
// created=false.
func (s *Service) Place(ctx context.Context, o Order) (Order, bool, error) {
	placed, err := s.repo.Place(ctx, o)
	if errors.Is(err, ErrDuplicateKey) {
		existing, gerr := s.repo.GetByIdempotencyKey(ctx, o.IdempotencyKey)
		if gerr != nil {
			return Order{}, false, translate(gerr, "")
		}
		return existing, false, nil
	}
	if err != nil {
		return Order{}, false, translate(err, "")
	}
	s.log.Info("order placed", "order", placed.Number, "total", placed.Total, "items", len(placed.Items), "payment", placed.PaymentMethod)
	return placed, true, nil
}

// FindRecentDuplicate reports whether an order with the same phone and
// total was created within window of now.
func (s *Service) FindRecentDuplicate(ctx context.Context, phone string, total int64, now time.Time, window time.Duration) (Order, bool, error) {
	o, err := s.repo.FindRecentDuplicate(ctx, phone, total, now.Add(-window))
	if errors.Is(err, ErrNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, translate(err, "")
	}
	return o, true, nil
}

func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (Order, bool, error) {
	if key == "" {
		return Order{}, false, nil
	}
	o, err := s.repo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, translate(err, "")
	}
	return o, true, nil
}

func (s *Service) CountActiveByContact(ctx context.Context, email, phone string) (int, error) {
	return s.repo.CountActiveByContact(ctx, email, phone)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	return o, translate(err, number)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apierr.Newf(apierr.KindValidation, "unknown status %q", f.Status)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	orders, err := s.repo.List(ctx, f)
	return orders, translate(err, "")
}

// UpdateStatus is the administrative status change. It is the only path
// besides payment confirmation that moves an order's status.
func (s *Service) UpdateStatus(ctx context.Context, number string, to Status) (Order, error) {
	if !to.Valid() {
		return Order{}, apierr.Newf(apierr.KindValidation, "unknown status %q", to)
	}
	o, err := s.repo.UpdateStatus(ctx, number, to)
	if err != nil {
		return Order{}, translate(err, number)
	}
	if to == StatusCancelled {
		s.log.Info("order cancelled, stock restored", "order", number, "items", len(o.Items))
	}
	return o, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, number string, ps PaymentStatus) (Order, error) {
	if !ps.Valid() {
		return Order{}, apierr.Newf(apierr.KindValidation, "unknown payment status %q", ps)
	}
	o, err := s.repo.UpdatePaymentStatus(ctx, number, ps)
	return o, translate(err, number)
}

// ConfirmPayment marks a card order paid and sends the confirmation emails
// the first time it is called. Later calls change nothing.
func (s *Service) ConfirmPayment(ctx context.Context, number string) (Order, bool, error) {
	o, changed, err := s.repo.MarkPaid(ctx, number)
	if err != nil {
		return Order{}, false, translate(err, number)
	}
	if changed {
		s.log.Info("payment confirmed", "order", number, "total", o.Total)
		if s.notifier != nil {
			s.notifier.OrderPlaced(o)
		}
	}
	return o, changed, nil
}
