package inventory

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Reason explains a stock movement.
type Reason string

const (
	ReasonReceived Reason = "received"
	ReasonSold     Reason = "sold"
	ReasonDamaged  Reason = "damaged"
	ReasonExpired  Reason = "expired"
	ReasonReturned Reason = "returned"
	ReasonAudit    Reason = "audit"
	ReasonOther    Reason = "other"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonReceived, ReasonSold, ReasonDamaged, ReasonExpired, ReasonReturned, ReasonAudit, ReasonOther:
		return true
	}
	return false
}

// AdjustmentInput is a signed manual change to one product's stock.
type AdjustmentInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,ne=0"`
	Reason    Reason `json:"reason" validate:"required"`
	Note      string `json:"note" validate:"max=500"`
	// Ref links the movement to its source document, such as a GRN number.
	Ref     string `json:"ref" validate:"max=64"`
	ActorID int64  `json:"-"`
}

// Movement is one append-only stock log entry. Entries are never edited.
type Movement struct {
	ID            string    `json:"id"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int64     `json:"quantity"`
	PreviousStock int64     `json:"previous_stock"`
	NewStock      int64     `json:"new_stock"`
	Reason        Reason    `json:"reason"`
	Note          string    `json:"note"`
	Ref           string    `json:"ref,omitempty"`
	ActorID       int64     `json:"actor_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// MovementFilter selects a stock card window.
type MovementFilter struct {
	shared.ListFilters
	ProductID int64
	Reason    Reason
	From      time.Time
	To        time.Time
}

// ProductStock is the locked stock row an adjustment works on.
type ProductStock struct {
	ID    int64
	Name  string
	Stock int64
}

var (
	// ErrInvalidReason rejects unknown reason codes.
	ErrInvalidReason = shared.Safe("Unknown adjustment reason", httpx.ErrValidation)
	// ErrNoteRequired is returned when reason other has no note.
	ErrNoteRequired = shared.Safe("A note is required when the reason is other", httpx.ErrValidation)
	// ErrAlreadyApplied indicates the referenced document was already posted.
	ErrAlreadyApplied = shared.Safe("This stock change was already applied", httpx.ErrConflict)
)
