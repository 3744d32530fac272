package procurement

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Document number prefixes.
const (
	GRNPrefix    = "GRN"
	ReturnPrefix = "RTN"
)

// GRNStatus is the goods receipt lifecycle state.
type GRNStatus string

const (
	GRNStatusDraft  GRNStatus = "draft"
	GRNStatusPosted GRNStatus = "posted"
)

// Line is one product row on a receipt or return.
type Line struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       int64   `json:"qty" validate:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

// GoodsReceipt records stock delivered by a supplier. Stock changes only when
// the receipt is posted.
type GoodsReceipt struct {
	ID         int64      `json:"id"`
	Number     string     `json:"number"`
	SupplierID int64      `json:"supplier_id"`
	Status     GRNStatus  `json:"status"`
	ReceivedAt time.Time  `json:"received_at"`
	Note       string     `json:"note"`
	CreatedBy  int64      `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	PostedAt   *time.Time `json:"posted_at,omitempty"`
	Lines      []Line     `json:"lines"`
}

// Total is the receipt value at unit cost.
func (g GoodsReceipt) Total() float64 {
	var total float64
	for _, l := range g.Lines {
		total += float64(l.Qty) * l.UnitCost
	}
	return total
}

// SupplierReturn sends stock back to a supplier. Returns post on creation.
type SupplierReturn struct {
	ID         int64     `json:"id"`
	Number     string    `json:"number"`
	SupplierID int64     `json:"supplier_id"`
	GRNID      *int64    `json:"grn_id,omitempty"`
	Reason     string    `json:"reason"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	Lines      []Line    `json:"lines"`
}

// GRNInput is the payload for a draft receipt. Number is generated when empty.
type GRNInput struct {
	SupplierID int64     `json:"supplier_id" validate:"required,gt=0"`
	Number     string    `json:"number" validate:"max=64"`
	ReceivedAt time.Time `json:"received_at"`
	Note       string    `json:"note" validate:"max=500"`
	Lines      []Line    `json:"lines" validate:"required,min=1,dive"`
}

// ReturnInput is the payload for a supplier return.
type ReturnInput struct {
	SupplierID int64  `json:"supplier_id" validate:"required,gt=0"`
	GRNID      *int64 `json:"grn_id"`
	Reason     string `json:"reason" validate:"required,max=255"`
	Lines      []Line `json:"lines" validate:"required,min=1,dive"`
}

// ListFilter narrows receipt and return listings.
type ListFilter struct {
	shared.ListFilters
	SupplierID int64
	Status     GRNStatus
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = shared.Safe("Document not found", httpx.ErrNotFound)
	// ErrAlreadyPosted blocks posting a receipt twice.
	ErrAlreadyPosted = shared.Safe("Goods receipt is already posted", httpx.ErrConflict)
	// ErrDuplicateNumber indicates the document number is taken.
	ErrDuplicateNumber = shared.Safe("Document number already exists", httpx.ErrDuplicate)
	// ErrUnknownReference indicates a supplier or product id that does not exist.
	ErrUnknownReference = shared.Safe("Unknown supplier or product", httpx.ErrValidation)
	// ErrReturnNotPosted rejects returns against a draft receipt.
	ErrReturnNotPosted = shared.Safe("Returns can only reference a posted goods receipt", httpx.ErrValidation)
	// ErrReturnExceedsReceipt rejects returning more than was received.
	ErrReturnExceedsReceipt = shared.Safe("Return quantity exceeds the received quantity", httpx.ErrValidation)
	// ErrSupplierMismatch rejects returns to a different supplier than the receipt.
	ErrSupplierMismatch = shared.Safe("Return supplier does not match the goods receipt", httpx.ErrValidation)
)
