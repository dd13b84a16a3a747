package product

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Stock is tracked as a cumulative counter of
// units sold against the total ever stocked so concurrent sales only ever
// increment one column.
type Product struct {
	ID           string    `json:"_id"`
	Rev          string    `json:"_rev"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug,omitempty"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	Price        int64     `json:"price"`
	OpeningStock int       `json:"openingStock"`
	StockOut     int       `json:"stockOut"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Available is the quantity sellable right now. A negative difference means
// the counters were corrupted; it is reported as zero.
func (p Product) Available() int {
	a := p.OpeningStock - p.StockOut
	if a < 0 {
		return 0
	}
	return a
}

// StockChange is a conditional stock-out increment guarded by the revision
// captured when the product was read.
type StockChange struct {
	ProductID string
	Rev       string
	Quantity  int
}

// AllowedCategories contains the shelves the storefront groups products into.
var AllowedCategories = []string{
	"Preserves",
	"Spices",
	"Tea & Coffee",
	"Snacks",
	"Condiments",
	"Pantry Staples",
	"Gift Boxes",
}

func NewRev() string {
	return uuid.NewString()
}
