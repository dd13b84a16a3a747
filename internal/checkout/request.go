package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/contact"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
)

const requestSchemaURL = "https://pantry.local/schemas/checkout-request.json"

const requestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["form", "items"],
  "properties": {
    "form": {
      "type": "object",
      "required": ["firstName", "lastName", "address", "district", "city", "phone", "payment", "email"],
      "properties": {
        "firstName":        {"type": "string", "minLength": 1, "maxLength": 100, "pattern": "\\S"},
        "lastName":         {"type": "string", "minLength": 1, "maxLength": 100, "pattern": "\\S"},
        "address":          {"type": "string", "minLength": 1, "maxLength": 500, "pattern": "\\S"},
        "district":         {"type": "string", "minLength": 1, "maxLength": 100, "pattern": "\\S"},
        "city":             {"type": "string", "minLength": 1, "maxLength": 100, "pattern": "\\S"},
        "phone":            {"type": "string", "pattern": "^\\s*\\+?[0-9][0-9 ()-]{7,19}\\s*$"},
        "alternativePhone": {"type": "string", "maxLength": 24},
        "notes":            {"type": "string", "maxLength": 1000},
        "payment":          {"enum": ["cod", "bank_transfer", "card"]},
        "email":            {"type": "string", "maxLength": 254, "pattern": "^\\s*[^@\\s]+@[^@\\s]+\\.[^@\\s]+\\s*$"}
      }
    },
    "items": {
      "type": "array",
      "minItems": 1,
      "maxItems": 100,
      "items": {
        "type": "object",
        "required": ["product", "quantity"],
        "properties": {
          "product": {
            "type": "object",
            "required": ["_id"],
            "properties": {"_id": {"type": "string", "minLength": 1}}
          },
          "quantity":     {"type": "integer", "minimum": 1, "maximum": 1000},
          "price":        {"type": "number", "minimum": 0},
          "productName":  {"type": "string"},
          "productImage": {"type": "string"}
        }
      }
    },
    "total":          {"type": "number"},
    "discountAmount": {"type": "number"},
    "discountLabel":  {"type": "string"},
    "shippingCost":   {"type": "number"},
    "promoCode":      {"type": "string", "maxLength": 40}
  }
}`

var compiledSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(requestSchemaURL, strings.NewReader(requestSchema)); err != nil {
		panic(fmt.Sprintf("checkout schema load failed: %v", err))
	}
	return c.MustCompile(requestSchemaURL)
}

type Form struct {
	FirstName        string              `json:"firstName"`
	LastName         string              `json:"lastName"`
	Address          string              `json:"address"`
	District         string              `json:"district"`
	City             string              `json:"city"`
	Phone            string              `json:"phone"`
	AlternativePhone string              `json:"alternativePhone,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	Payment          order.PaymentMethod `json:"payment"`
	Email            string              `json:"email"`
}

type ProductRef struct {
	ID string `json:"_id"`
}

// RequestItem is a cart line as the storefront submits it. Price and name
// are the client's cached copy and are never trusted.
type RequestItem struct {
	Product      ProductRef `json:"product"`
	Quantity     int        `json:"quantity"`
	Price        float64    `json:"price"`
	ProductName  string     `json:"productName"`
	ProductImage string     `json:"productImage,omitempty"`
}

type Request struct {
	Form           Form          `json:"form"`
	Items          []RequestItem `json:"items"`
	Total          float64       `json:"total"`
	DiscountAmount float64       `json:"discountAmount"`
	DiscountLabel  string        `json:"discountLabel"`
	ShippingCost   float64       `json:"shippingCost"`
	PromoCode      string        `json:"promoCode,omitempty"`
}

// ParseRequest validates raw against the request schema, reporting only
// the first violation, then decodes and normalizes it.
func ParseRequest(raw []byte) (Request, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Request{}, apierr.New(apierr.KindValidation, "request body must be valid JSON")
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Request{}, firstViolation(err)
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, apierr.New(apierr.KindValidation, err.Error())
	}
	req.normalize()
	return req, nil
}

func firstViolation(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return apierr.Wrap(apierr.KindValidation, "invalid checkout request", err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(strings.ReplaceAll(ve.InstanceLocation, "/", "."), ".")
	msg := ve.Message
	if field != "" {
		msg = field + ": " + msg
	}
	return apierr.New(apierr.KindValidation, msg).With("field", field)
}

func (r *Request) normalize() {
	f := &r.Form
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Address = strings.TrimSpace(f.Address)
	f.District = strings.TrimSpace(f.District)
	f.City = strings.TrimSpace(f.City)
	f.Notes = strings.TrimSpace(f.Notes)
	f.Email = contact.NormalizeEmail(f.Email)
	f.Phone = contact.NormalizePhone(f.Phone)
	f.AlternativePhone = contact.NormalizePhone(f.AlternativePhone)
	r.PromoCode = strings.ToUpper(strings.TrimSpace(r.PromoCode))
	for i := range r.Items {
		r.Items[i].Product.ID = strings.TrimSpace(r.Items[i].Product.ID)
	}
}
