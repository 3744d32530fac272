package reports

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// TopProductLimit caps the best sellers listed on a daily report.
const TopProductLimit = 5

// MaxSummaryDays bounds a summary request.
const MaxSummaryDays = 92

// ProductSales aggregates one product's completed sales.
type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// Daily is the sales picture for one calendar day. Only completed invoices
// contribute to money totals; voided and refunded invoices are counted apart.
type Daily struct {
	Date          string         `json:"date"`
	InvoiceCount  int            `json:"invoice_count"`
	GrossSubtotal float64        `json:"gross_subtotal"`
	Discounts     float64        `json:"discounts"`
	Tax           float64        `json:"tax"`
	NetTotal      float64        `json:"net_total"`
	CashTotal     float64        `json:"cash_total"`
	CardTotal     float64        `json:"card_total"`
	CashReceived  float64        `json:"cash_received"`
	ChangeGiven   float64        `json:"change_given"`
	ItemsSold     int64          `json:"items_sold"`
	VoidedCount   int            `json:"voided_count"`
	RefundedCount int            `json:"refunded_count"`
	TopProducts   []ProductSales `json:"top_products"`
}

// Summary is a per-day series with its grand total.
type Summary struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Days   []Daily `json:"days"`
	Totals Daily   `json:"totals"`
}

// ZReport closes a trading day: the daily figures plus the cash drawer
// reconciliation.
type ZReport struct {
	Daily
	StoreName    string    `json:"store_name"`
	ExpectedCash float64   `json:"expected_cash"`
	CountedCash  float64   `json:"counted_cash"`
	Variance     float64   `json:"variance"`
	GeneratedAt  time.Time `json:"generated_at"`
}

var (
	// ErrInvalidRange rejects summaries that end before they start.
	ErrInvalidRange = shared.Safe("The end date must not be before the start date", httpx.ErrValidation)
	// ErrRangeTooLarge rejects summaries longer than MaxSummaryDays.
	ErrRangeTooLarge = shared.Safe("Summaries are limited to 92 days", httpx.ErrValidation)
	// ErrNegativeCount rejects a negative counted cash amount.
	ErrNegativeCount = shared.Safe("Counted cash cannot be negative", httpx.ErrValidation)
)
