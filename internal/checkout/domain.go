package checkout

import (
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// InvoicePrefix starts every invoice number.
const InvoicePrefix = "INV"

// CartLine is one product in the sale in progress. UnitPrice is captured on
// the first add and never re-read; AvailableStock follows the catalog.
type CartLine struct {
	ProductID      int64   `json:"product_id"`
	Name           string  `json:"name"`
	UnitPrice      float64 `json:"unit_price"`
	Quantity       int64   `json:"quantity"`
	LineTotal      float64 `json:"line_total"`
	AvailableStock int64   `json:"available_stock"`
}

// Totals are derived from the cart and the sale inputs on every call.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	AfterDiscount  float64 `json:"after_discount"`
	TaxAmount      float64 `json:"tax_amount"`
	Total          float64 `json:"total"`
	AmountReceived float64 `json:"amount_received"`
	Change         float64 `json:"change"`
}

// SaleInput carries the editable non-cart fields of a sale.
type SaleInput struct {
	CustomerName       string                 `json:"customer_name" validate:"max=128"`
	CustomerPhone      string                 `json:"customer_phone" validate:"max=32"`
	PaymentMethod      invoices.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash card"`
	AmountReceivedText string                 `json:"amount_received"`
	DiscountPercent    float64                `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxRatePercent     float64                `json:"tax_rate_percent" validate:"gte=0,lte=100"`
}

// View is a read-only copy of a terminal's sale.
type View struct {
	TerminalID         string                 `json:"terminal_id"`
	Lines              []CartLine             `json:"lines"`
	CustomerName       string                 `json:"customer_name"`
	CustomerPhone      string                 `json:"customer_phone"`
	PaymentMethod      invoices.PaymentMethod `json:"payment_method"`
	AmountReceivedText string                 `json:"amount_received"`
	DiscountPercent    float64                `json:"discount_percent"`
	TaxRatePercent     float64                `json:"tax_rate_percent"`
	PromotionCode      string                 `json:"promotion_code,omitempty"`
	CheckingOut        bool                   `json:"checking_out"`
	Totals             Totals                 `json:"totals"`
}

var (
	// ErrExceedsStock rejects a quantity above the product's available stock.
	ErrExceedsStock = shared.Safe("Not enough stock for this item", httpx.ErrConflict)
	// ErrProductInactive rejects products that are not offered for sale.
	ErrProductInactive = shared.Safe("This product is not available for sale", httpx.ErrValidation)
	// ErrInvalidDelta rejects a zero quantity change.
	ErrInvalidDelta = shared.Safe("Quantity change must not be zero", httpx.ErrValidation)
	// ErrInvalidPercent rejects discount or tax rates outside 0 to 100.
	ErrInvalidPercent = shared.Safe("Discount and tax must be between 0 and 100", httpx.ErrValidation)
	// ErrLineNotFound indicates the product is not in the cart.
	ErrLineNotFound = shared.Safe("This item is not in the cart", httpx.ErrNotFound)
	// ErrEmptyCart blocks checkout of an empty sale.
	ErrEmptyCart = shared.Safe("The cart is empty", httpx.ErrValidation)
	// ErrInsufficientCash blocks cash checkout when the amount received is short.
	ErrInsufficientCash = shared.Safe("Amount received is less than the total", httpx.ErrValidation)
	// ErrStockConflict is returned by strict checkout when stock ran out meanwhile.
	ErrStockConflict = shared.Safe("Stock changed while checking out; please review the cart", httpx.ErrConflict)
	// ErrCheckoutInProgress refuses edits while the terminal's sale is being committed.
	ErrCheckoutInProgress = shared.Safe("Checkout in progress on this terminal", httpx.ErrConflict)
	// ErrUnknownTerminal rejects terminals outside the configured list.
	ErrUnknownTerminal = shared.Safe("Unknown terminal", httpx.ErrNotFound)
	// ErrNoLastInvoice indicates the terminal has not completed a sale yet.
	ErrNoLastInvoice = shared.Safe("No completed sale on this terminal yet", httpx.ErrNotFound)
)
