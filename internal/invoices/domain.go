package invoices

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Status describes where an invoice is in its life.
type Status string

const (
	// StatusCompleted is set by checkout.
	StatusCompleted Status = "completed"
	// StatusVoid marks a sale cancelled after the fact.
	StatusVoid Status = "void"
	// StatusRefunded marks a sale whose money was returned.
	StatusRefunded Status = "refunded"
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	// PaymentCash requires the amount received to cover the total.
	PaymentCash PaymentMethod = "cash"
	// PaymentCard is settled for exactly the total.
	PaymentCard PaymentMethod = "card"
)

// Item is one sold line at the price in effect at sale time.
type Item struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int64   `json:"quantity"`
	LineTotal float64 `json:"line_total"`
}

// Invoice is the durable record of a completed sale, keyed by Number.
type Invoice struct {
	Number          string        `json:"invoice_number"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	Items           []Item        `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	DiscountPercent float64       `json:"discount_percent"`
	DiscountAmount  float64       `json:"discount_amount"`
	TaxRatePercent  float64       `json:"tax_rate_percent"`
	TaxAmount       float64       `json:"tax_amount"`
	Total           float64       `json:"total"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	AmountReceived  float64       `json:"amount_received"`
	ChangeGiven     float64       `json:"change_given"`
	Status          Status        `json:"status"`
	CashierID       int64         `json:"cashier_id"`
	TerminalID      string        `json:"terminal_id"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ItemCount sums the quantities on the invoice.
func (inv Invoice) ItemCount() int64 {
	var n int64
	for _, it := range inv.Items {
		n += it.Quantity
	}
	return n
}

// ListFilter narrows invoice listings. Zero times leave the window open.
type ListFilter struct {
	shared.ListFilters
	From   time.Time
	To     time.Time
	Status Status
}

// StatusChange records why an invoice left the completed state.
type StatusChange struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = shared.Safe("Invoice not found", httpx.ErrNotFound)
	// ErrDuplicateNumber indicates the invoice number is already used.
	ErrDuplicateNumber = shared.Safe("Invoice number already exists", httpx.ErrDuplicate)
	// ErrNotCompleted rejects status changes on invoices that are already void or refunded.
	ErrNotCompleted = shared.Safe("Only completed invoices can be changed", httpx.ErrConflict)
)
