package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/logger"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	StoreName     string
	OperatorEmail string
	Timeout       time.Duration
}

// Notifier sends order confirmations to the customer and the shop operator.
// Sending never blocks or fails the caller.
type Notifier struct {
	sender Sender
	opts   Options
	log    *logger.Logger
}

func NewNotifier(sender Sender, opts Options, log *logger.Logger) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.StoreName == "" {
		opts.StoreName = "Pantry"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{sender: sender, opts: opts, log: log}
}

func (n *Notifier) OrderPlaced(o order.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.opts.Timeout)
		defer cancel()
		if err := n.Send(ctx, o); err != nil {
			n.log.Warn("order email failed", "order", o.Number, "error", err)
		}
	}()
}

// Send renders and delivers both emails, waiting for the results.
func (n *Notifier) Send(ctx context.Context, o order.Order) error {
	customerHTML, err := render(customerTmpl, o, n.opts.StoreName)
	if err != nil {
		return fmt.Errorf("render customer email: %w", err)
	}
	operatorHTML, err := render(operatorTmpl, o, n.opts.StoreName)
	if err != nil {
		return fmt.Errorf("render operator email: %w", err)
	}

	// recipients are independent; one failing send must not cancel the other
	var g errgroup.Group
	g.Go(func() error {
		return n.sender.Send(ctx, Message{
			To:      o.Customer.Email,
			Subject: fmt.Sprintf("%s order %s confirmed", n.opts.StoreName, o.Number),
			HTML:    customerHTML,
			ReplyTo: n.opts.OperatorEmail,
		})
	})
	if n.opts.OperatorEmail != "" {
		g.Go(func() error {
			return n.sender.Send(ctx, Message{
				To:      n.opts.OperatorEmail,
				Subject: fmt.Sprintf("New order %s (%s)", o.Number, Money(o.Total)),
				HTML:    operatorHTML,
				ReplyTo: o.Customer.Email,
			})
		})
	}
	return g.Wait()
}
