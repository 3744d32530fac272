package catalog

import (
	"fmt"
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Status marks whether a product is offered for sale.
type Status string

const (
	// StatusActive products appear at the till.
	StatusActive Status = "Active"
	// StatusInactive products are hidden from the till but keep their history.
	StatusInactive Status = "Inactive"
)

// Product is a sellable catalog item. Stock only changes through the
// increment primitives, never through Update.
type Product struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Barcode      string    `json:"barcode"`
	Name         string    `json:"name"`
	CategoryID   *int64    `json:"category_id,omitempty"`
	SupplierID   *int64    `json:"supplier_id,omitempty"`
	Unit         string    `json:"unit"`
	CostPrice    float64   `json:"cost_price"`
	SellingPrice float64   `json:"selling_price"`
	Stock        int64     `json:"stock"`
	MinStock     int64     `json:"min_stock"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive reports whether the product can be sold.
func (p Product) IsActive() bool {
	return p.Status == StatusActive
}

// IsLowStock reports whether stock has fallen to the reorder threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// ProductInput is the editable part of a product.
type ProductInput struct {
	Code         string  `json:"code" validate:"required,max=64"`
	Barcode      string  `json:"barcode" validate:"max=64"`
	Name         string  `json:"name" validate:"required,max=200"`
	CategoryID   *int64  `json:"category_id" validate:"omitempty,gt=0"`
	SupplierID   *int64  `json:"supplier_id" validate:"omitempty,gt=0"`
	Unit         string  `json:"unit" validate:"max=16"`
	CostPrice    float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice float64 `json:"selling_price" validate:"gte=0"`
	MinStock     int64   `json:"min_stock" validate:"gte=0"`
	Status       Status  `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

// NewProductInput seeds a product on creation, including its opening stock.
type NewProductInput struct {
	ProductInput
	OpeningStock int64 `json:"opening_stock" validate:"gte=0"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	shared.ListFilters
	Status     Status
	CategoryID int64
	LowStock   bool
}

// StockDelta is a signed stock change for one product.
type StockDelta struct {
	ProductID int64
	Delta     int64
}

// Snapshot is the full active catalog at one point in time.
type Snapshot struct {
	Products []Product
	At       time.Time
}

// Index maps product ids to their snapshot entries.
func (s Snapshot) Index() map[int64]Product {
	idx := make(map[int64]Product, len(s.Products))
	for _, p := range s.Products {
		idx[p.ID] = p
	}
	return idx
}

var (
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = shared.Safe("Product not found", httpx.ErrNotFound)
	// ErrDuplicateCode indicates the product code or barcode is taken.
	ErrDuplicateCode = shared.Safe("A product with this code already exists", httpx.ErrDuplicate)
)

func productNotFound(id int64) error {
	return fmt.Errorf("catalog: product %d: %w", id, ErrProductNotFound)
}
