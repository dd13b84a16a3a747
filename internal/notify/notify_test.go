package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	fail map[string]bool
}

func (r *recordingSender) Send(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	if r.fail[m.To] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func (r *recordingSender) sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func sampleOrder() order.Order {
	return order.Order{
		Number:         "ORD-000042",
		PaymentMethod:  order.PaymentCOD,
		PaymentStatus:  order.PaymentPending,
		Customer:       order.Customer{FirstName: "<b>Nimal</b>", LastName: "Perera", Email: "nimal@example.com", Phone: "0771234567"},
		Shipping:       order.Shipping{Address: "12 Galle Rd", District: "Colombo", City: "Kollupitiya"},
		Items:          []order.LineItem{{ProductID: "p1", ProductName: "Wood-apple jam", Quantity: 2, UnitPrice: 1200}},
		Subtotal:       2400,
		DiscountAmount: 360,
		DiscountLabel:  "Subscriber discount (15%)",
		ShippingCost:   350,
		Total:          2390,
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "Rs. 0", Money(0))
	assert.Equal(t, "Rs. 950", Money(950))
	assert.Equal(t, "Rs. 12,500", Money(12500))
	assert.Equal(t, "Rs. 1,234,567", Money(1234567))
	assert.Equal(t, "-Rs. 1,000", Money(-1000))
}

func TestNotifier_SendsCustomerAndOperator(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier(rec, Options{StoreName: "Pantry", OperatorEmail: "orders@pantry.example"}, nil)

	require.NoError(t, n.Send(context.Background(), sampleOrder()))
	msgs := rec.sent()
	require.Len(t, msgs, 2)

	byTo := map[string]Message{}
	for _, m := range msgs {
		byTo[m.To] = m
	}
	customer := byTo["nimal@example.com"]
	assert.Contains(t, customer.Subject, "ORD-000042")
	assert.Contains(t, customer.HTML, "Rs. 2,390")
	assert.Contains(t, customer.HTML, "Cash on delivery")
	assert.Contains(t, customer.HTML, "&lt;b&gt;Nimal&lt;/b&gt;")
	assert.Equal(t, "orders@pantry.example", customer.ReplyTo)

	operator := byTo["orders@pantry.example"]
	assert.Equal(t, "nimal@example.com", operator.ReplyTo)
	assert.Contains(t, operator.HTML, "Wood-apple jam")
}

func TestNotifier_OneFailureDoesNotStopTheOther(t *testing.T) {
	rec := &recordingSender{fail: map[string]bool{"nimal@example.com": true}}
	n := NewNotifier(rec, Options{OperatorEmail: "orders@pantry.example"}, nil)

	err := n.Send(context.Background(), sampleOrder())
	assert.Error(t, err)
	assert.Len(t, rec.sent(), 2)
}

func TestNotifier_OrderPlacedIsAsync(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier(rec, Options{OperatorEmail: "orders@pantry.example"}, nil)

	n.OrderPlaced(sampleOrder())
	assert.Eventually(t, func() bool { return len(rec.sent()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestSendGridSender_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		var body mailSendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "shop@pantry.example", body.From.Email)

		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSendGridSender(SendGridConfig{APIKey: "sg-key", BaseURL: srv.URL, FromEmail: "shop@pantry.example"}, nil)
	require.NoError(t, err)
	s.sleep = func(time.Duration) {}

	require.NoError(t, s.Send(context.Background(), Message{To: "nimal@example.com", Subject: "hi", HTML: "<p>hi</p>"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendGridSender_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	s, err := NewSendGridSender(SendGridConfig{APIKey: "sg-key", BaseURL: srv.URL, FromEmail: "shop@pantry.example"}, nil)
	require.NoError(t, err)
	s.sleep = func(time.Duration) {}

	err = s.Send(context.Background(), Message{To: "nimal@example.com", Subject: "hi", HTML: "<p>hi</p>"})
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewSendGridSender_RequiresKey(t *testing.T) {
	_, err := NewSendGridSender(SendGridConfig{}, nil)
	assert.Error(t, err)
}
