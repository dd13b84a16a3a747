package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/wichananm65/pantry-shop-backend/internal/order"
)

const customerTemplate = `<!doctype html>
<html><body style="font-family:Georgia,serif;color:#2d2a26">
<h2>Thank you for your order, {{.Order.Customer.FirstName}}!</h2>
<p>Your order <strong>{{.Order.Number}}</strong> has been received{{if eq .Order.PaymentStatus "paid"}} and paid{{end}}.</p>
<table cellpadding="6" style="border-collapse:collapse">
{{range .Order.Items}}<tr><td>{{.ProductName}}</td><td>&times; {{.Quantity}}</td><td align="right">{{money .UnitPrice}}</td></tr>
{{end}}<tr><td colspan="2">Subtotal</td><td align="right">{{money .Order.Subtotal}}</td></tr>
{{if .Order.DiscountAmount}}<tr><td colspan="2">{{.Order.DiscountLabel}}</td><td align="right">-{{money .Order.DiscountAmount}}</td></tr>
{{end}}<tr><td colspan="2">Delivery</td><td align="right">{{money .Order.ShippingCost}}</td></tr>
<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Order.Total}}</strong></td></tr>
</table>
<p>Payment: {{method .Order.PaymentMethod}}</p>
<p>Delivering to {{.Order.Shipping.Address}}, {{.Order.Shipping.City}}, {{.Order.Shipping.District}}.</p>
<p>{{.Store}}</p>
</body></html>`

const operatorTemplate = `<!doctype html>
<html><body style="font-family:Arial,sans-serif">
<h3>New order {{.Order.Number}} ({{method .Order.PaymentMethod}}, {{.Order.PaymentStatus}})</h3>
<p>{{.Order.Customer.FirstName}} {{.Order.Customer.LastName}} &lt;{{.Order.Customer.Email}}&gt;, {{.Order.Customer.Phone}}{{with .Order.Customer.AlternativePhone}} / {{.}}{{end}}</p>
<p>{{.Order.Shipping.Address}}, {{.Order.Shipping.City}}, {{.Order.Shipping.District}}</p>
{{with .Order.Shipping.Notes}}<p>Notes: {{.}}</p>{{end}}
<ul>
{{range .Order.Items}}<li>{{.ProductName}} ({{.ProductID}}) &times; {{.Quantity}} @ {{money .UnitPrice}}</li>
{{end}}</ul>
<p>Subtotal {{money .Order.Subtotal}}, discount {{money .Order.DiscountAmount}}{{with .Order.PromoCode}} ({{.}}){{end}}, delivery {{money .Order.ShippingCost}}, total <strong>{{money .Order.Total}}</strong></p>
</body></html>`

var funcs = template.FuncMap{
	"money":  Money,
	"method": methodLabel,
}

var (
	customerTmpl = template.Must(template.New("customer").Funcs(funcs).Parse(customerTemplate))
	operatorTmpl = template.Must(template.New("operator").Funcs(funcs).Parse(operatorTemplate))
)

// Money formats whole rupees with thousands separators, e.g. "Rs. 12,500".
func Money(amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "Rs. " + b.String()
}

func methodLabel(m order.PaymentMethod) string {
	switch m {
	case order.PaymentCOD:
		return "Cash on delivery"
	case order.PaymentBankTransfer:
		return "Bank transfer"
	case order.PaymentCard:
		return "Card"
	}
	return string(m)
}

type emailData struct {
	Order order.Order
	Store string
}

func render(t *template.Template, o order.Order, store string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, emailData{Order: o, Store: store}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
