package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCard         PaymentMethod = "card"
)

var PaymentMethods = []PaymentMethod{PaymentCOD, PaymentBankTransfer, PaymentCard}

func (m PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if m == v {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Customer struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	AlternativePhone string `json:"alternativePhone,omitempty"`
}

type Shipping struct {
	Address  string `json:"address"`
	District string `json:"district"`
	City     string `json:"city"`
	Notes    string `json:"notes,omitempty"`
}

// LineItem snapshots the product at order time so the record stays
// readable after catalog edits. Rev is the product revision the stock
// increment was guarded by.
type LineItem struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	ProductImage string `json:"productImage,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	Rev          string `json:"rev"`
}

type Order struct {
	ID             string        `json:"_id"`
	Number         string        `json:"orderNumber"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	Customer       Customer      `json:"customer"`
	Shipping       Shipping      `json:"shipping"`
	Items          []LineItem    `json:"items"`
	Subtotal       int64         `json:"subtotal"`
	DiscountAmount int64         `json:"discountAmount"`
	DiscountLabel  string        `json:"discountLabel,omitempty"`
	PromoCode      string        `json:"promoCode,omitempty"`
	ShippingCost   int64         `json:"shippingCost"`
	Total          int64         `json:"total"`
	EmailSent      bool          `json:"emailSent"`
	IdempotencyKey string        `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (o Order) StockChanges() []product.StockChange {
	out := make([]product.StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, product.StockChange{ProductID: it.ProductID, Rev: it.Rev, Quantity: it.Quantity})
	}
	return out
}

// position along the fulfilment path; cancelled sits outside it.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// CheckTransition reports whether an order may move from one status to
// another. Moving to the same status is allowed and changes nothing.
func CheckTransition(from, to Status) error {
	switch {
	case from == to:
		return nil
	case from == StatusCancelled:
		return ErrReopenForbidden
	case to == StatusCancelled:
		return nil
	case statusRank[to] < statusRank[from]:
		return ErrInvalidTransition
	}
	return nil
}

// NewNumber returns a human-readable order number such as ORD-042917.
func NewNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return fmt.Sprintf("ORD-%06d", time.Now().UnixNano()%1_000_000)
	}
	return fmt.Sprintf("ORD-%06d", n.Int64())
}
