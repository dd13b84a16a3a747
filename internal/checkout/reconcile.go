package checkout

import (
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

// Line is one requested product after duplicate lines were merged.
type Line struct {
	ProductID   string
	Quantity    int
	ClientPrice float64
}

// MergeLines folds repeated products into one line, keeping first-seen
// order. The client price of the first occurrence is kept.
func MergeLines(items []RequestItem) []Line {
	idx := make(map[string]int, len(items))
	out := make([]Line, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.Product.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.Product.ID] = len(out)
		out = append(out, Line{ProductID: it.Product.ID, Quantity: it.Quantity, ClientPrice: it.Price})
	}
	return out
}

func productIDs(lines []Line) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// Reconcile checks every line against the snapshot. The first line asking
// for more than is available rejects the whole order.
func Reconcile(lines []Line, snapshot map[string]product.Product) error {
	for _, l := range lines {
		p, ok := snapshot[l.ProductID]
		if !ok {
			return apierr.Newf(apierr.KindProductNotFound, "product %s is no longer available", l.ProductID).
				With("productId", l.ProductID)
		}
		if available := p.Available(); available < l.Quantity {
			return apierr.Newf(apierr.KindInsufficientStock, "%s is no longer available, only %d left", p.Name, available).
				With("productId", p.ID).
				With("productName", p.Name).
				With("available", available).
				With("requested", l.Quantity)
		}
	}
	return nil
}

// PriceLines builds order lines from snapshot prices and revisions and
// returns their subtotal.
func PriceLines(lines []Line, snapshot map[string]product.Product) ([]order.LineItem, int64) {
	items := make([]order.LineItem, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		p := snapshot[l.ProductID]
		items = append(items, order.LineItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			Quantity:     l.Quantity,
			UnitPrice:    p.Price,
			Rev:          p.Rev,
		})
		subtotal += p.Price * int64(l.Quantity)
	}
	return items, subtotal
}
