// Package payment prepares card checkouts for the PayHere hosted payment
// page and verifies the gateway's server-to-server notifications.
package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
)

const (
	liveCheckoutURL    = "https://www.payhere.lk/pay/checkout"
	sandboxCheckoutURL = "https://sandbox.payhere.lk/pay/checkout"

	// StatusSuccess is the status_code PayHere posts for a captured payment.
	StatusSuccess = "2"
)

type Config struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
	Sandbox        bool
	// PublicBaseURL is the storefront origin the gateway redirects back to.
	PublicBaseURL string
	// APIBaseURL is where the gateway posts its notification.
	APIBaseURL string
}

// Params is everything the storefront needs to open the hosted payment
// page for one order.
type Params struct {
	CheckoutURL string `json:"checkoutUrl"`
	Sandbox     bool   `json:"sandbox"`
	MerchantID  string `json:"merchant_id"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifyURL   string `json:"notify_url"`
	OrderID     string `json:"order_id"`
	Items       string `json:"items"`
	Currency    string `json:"currency"`
	Amount      string `json:"amount"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Hash        string `json:"hash"`
}

type PayHere struct {
	cfg Config
}

func NewPayHere(cfg Config) *PayHere {
	if cfg.Currency == "" {
		cfg.Currency = "LKR"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &PayHere{cfg: cfg}
}

func (p *PayHere) Configured() bool {
	return p != nil && p.cfg.MerchantID != "" && p.cfg.MerchantSecret != ""
}

// FormatAmount renders whole currency units the way the gateway hashes
// them, always with two decimals.
func FormatAmount(amount int64) string {
	return fmt.Sprintf("%d.00", amount)
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Hash is the checkout signature:
// upper(md5(merchant_id + order_id + amount + currency + upper(md5(secret)))).
func Hash(merchantID, orderID, amount, currency, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + upperMD5(secret))
}

func (p *PayHere) CheckoutParams(o order.Order) (Params, error) {
	if !p.Configured() {
		return Params{}, apierr.New(apierr.KindPayment, "card payments are not available right now")
	}
	amount := FormatAmount(o.Total)
	checkoutURL := liveCheckoutURL
	if p.cfg.Sandbox {
		checkoutURL = sandboxCheckoutURL
	}
	return Params{
		CheckoutURL: checkoutURL,
		Sandbox:     p.cfg.Sandbox,
		MerchantID:  p.cfg.MerchantID,
		ReturnURL:   p.cfg.PublicBaseURL + "/checkout/success?orderId=" + o.Number,
		CancelURL:   p.cfg.PublicBaseURL + "/checkout?cancelled=" + o.Number,
		NotifyURL:   p.cfg.APIBaseURL + "/api/payment/notify",
		OrderID:     o.Number,
		Items:       itemsLabel(o),
		Currency:    p.cfg.Currency,
		Amount:      amount,
		FirstName:   o.Customer.FirstName,
		LastName:    o.Customer.LastName,
		Email:       o.Customer.Email,
		Phone:       o.Customer.Phone,
		Address:     o.Shipping.Address,
		City:        o.Shipping.City,
		Country:     "Sri Lanka",
		Hash:        Hash(p.cfg.MerchantID, o.Number, amount, p.cfg.Currency, p.cfg.MerchantSecret),
	}, nil
}

func itemsLabel(o order.Order) string {
	if len(o.Items) == 1 {
		return o.Items[0].ProductName
	}
	return fmt.Sprintf("Order %s (%d items)", o.Number, len(o.Items))
}

// Notification is the form the gateway posts to notify_url.
type Notification struct {
	MerchantID string `form:"merchant_id"`
	OrderID    string `form:"order_id"`
	Amount     string `form:"payhere_amount"`
	Currency   string `form:"payhere_currency"`
	StatusCode string `form:"status_code"`
	MD5Sig     string `form:"md5sig"`
}

// Verify checks the notification signature:
// upper(md5(merchant_id + order_id + amount + currency + status_code + upper(md5(secret)))).
func (p *PayHere) Verify(n Notification) bool {
	if !p.Configured() || n.MerchantID != p.cfg.MerchantID {
		return false
	}
	want := upperMD5(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + upperMD5(p.cfg.MerchantSecret))
	return strings.EqualFold(want, n.MD5Sig)
}
