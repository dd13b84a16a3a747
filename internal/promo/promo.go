package promo

import (
	"strings"
	"time"
)

// Code is a customer-entered discount rule. A code grants either a
// percentage off the subtotal or free shipping, never both.
type Code struct {
	Code               string    `json:"code"`
	Active             bool      `json:"active"`
	DiscountPercentage int64     `json:"discountPercentage"`
	FreeShipping       bool      `json:"isFreeShipping"`
	MinOrderAmount     int64     `json:"minOrderAmount"`
	FirstOrderOnly     bool      `json:"firstOrderOnly"`
	Featured           bool      `json:"featured"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validate(c Code) map[string]string {
	errs := map[string]string{}
	if c.Code == "" {
		errs["code"] = "code is required"
	}
	if c.DiscountPercentage < 0 || c.DiscountPercentage > 100 {
		errs["discountPercentage"] = "discountPercentage must be between 0 and 100"
	}
	if c.FreeShipping && c.DiscountPercentage > 0 {
		errs["isFreeShipping"] = "a free-shipping code cannot also carry a percentage"
	}
	if !c.FreeShipping && c.DiscountPercentage == 0 {
		errs["discountPercentage"] = "discountPercentage is required unless isFreeShipping is set"
	}
	if c.MinOrderAmount < 0 {
		errs["minOrderAmount"] = "minOrderAmount must be >= 0"
	}
	return errs
}
