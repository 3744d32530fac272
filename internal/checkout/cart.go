package checkout

import (
	"slices"

	"github.com/tillpoint/tillpoint/internal/catalog"
)

// Cart keeps lines in the order products were first added.
type Cart struct {
	lines []CartLine
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []CartLine {
	return slices.Clone(c.lines)
}

// Len reports the number of distinct products.
func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.lines, func(l CartLine) bool { return l.ProductID == productID })
}

// Add puts one unit of p in the cart. An existing line keeps its price but
// takes p's stock as the new bound.
func (c *Cart) Add(p catalog.Product) error {
	if !p.IsActive() {
		return ErrProductInactive
	}
	if i := c.index(p.ID); i >= 0 {
		line := c.lines[i]
		if line.Quantity+1 > p.Stock {
			return ErrExceedsStock
		}
		line.AvailableStock = p.Stock
		line.Quantity++
		line.LineTotal = round2(float64(line.Quantity) * line.UnitPrice)
		c.lines[i] = line
		return nil
	}
	if p.Stock < 1 {
		return ErrExceedsStock
	}
	c.lines = append(c.lines, CartLine{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.SellingPrice,
		Quantity:       1,
		LineTotal:      round2(p.SellingPrice),
		AvailableStock: p.Stock,
	})
	return nil
}

// Adjust changes a line's quantity by delta against stock. Quantities clamp at
// zero and a zero line is removed.
func (c *Cart) Adjust(productID, delta, stock int64) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	line := c.lines[i]
	next := max(line.Quantity+delta, 0)
	if delta > 0 && next > stock {
		return ErrExceedsStock
	}
	if next == 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
		return nil
	}
	line.Quantity = next
	line.AvailableStock = stock
	line.LineTotal = round2(float64(next) * line.UnitPrice)
	c.lines[i] = line
	return nil
}

// Remove deletes the product's line if present.
func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	}
}

// Refresh updates AvailableStock from the live catalog view. Products missing
// from the view keep their last known stock.
func (c *Cart) Refresh(live map[int64]catalog.Product) {
	for i, l := range c.lines {
		if p, ok := live[l.ProductID]; ok {
			c.lines[i].AvailableStock = p.Stock
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Line returns the cart line for productID.
func (c *Cart) Line(productID int64) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}
