package printing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/reports"
)

// Receipt paper is 80mm roll stock; labels are 60x40mm.
const (
	receiptWidth = 80.0
	labelWidth   = 60.0
	labelHeight  = 40.0
)

// Store is the header and footer printed on receipts.
type Store struct {
	Name    string
	Address string
	Footer  string
}

// Renderer produces receipts, shelf labels and Z reports.
type Renderer struct {
	store     Store
	money     Money
	pages     *Pages
	gotenberg *Gotenberg
	logger    *slog.Logger
}

// NewRenderer constructs Renderer. gotenberg may be nil, in which case Z
// reports are drawn locally.
func NewRenderer(store Store, money Money, pages *Pages, gotenberg *Gotenberg, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{store: store, money: money, pages: pages, gotenberg: gotenberg, logger: logger}
}

var (
	_ invoices.ReceiptRenderer = (*Renderer)(nil)
	_ catalog.LabelRenderer    = (*Renderer)(nil)
	_ reports.ZRenderer        = (*Renderer)(nil)
)

// ReceiptPDF draws a till receipt ending with the invoice number as a Code128
// barcode and a QR code.
func (r *Renderer) ReceiptPDF(ctx context.Context, inv invoices.Invoice) ([]byte, error) {
	height := 150 + 9*float64(len(inv.Items))
	cfg := config.NewBuilder().
		WithDimensions(receiptWidth, height).
		WithLeftMargin(4).
		WithRightMargin(4).
		WithTopMargin(4).
		Build()
	m := maroto.New(cfg)

	small := props.Text{Size: 7}
	right := props.Text{Size: 7, Align: align.Right}

	m.AddRow(7, text.NewCol(12, r.store.Name, props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Center}))
	if r.store.Address != "" {
		m.AddRow(4, text.NewCol(12, r.store.Address, props.Text{Size: 7, Align: align.Center}))
	}
	m.AddRow(2, line.NewCol(12))
	m.AddRow(4, text.NewCol(12, "Invoice: "+inv.Number, small))
	m.AddRow(4, text.NewCol(12, "Date: "+inv.CreatedAt.Format("02 Jan 2006 15:04"), small))
	if inv.CustomerName != "" {
		m.AddRow(4, text.NewCol(12, "Customer: "+inv.CustomerName, small))
	}
	m.AddRow(2, line.NewCol(12))

	for _, it := range inv.Items {
		m.AddRow(4, text.NewCol(12, it.Name, small))
		m.AddRow(4,
			text.NewCol(7, fmt.Sprintf("%d x %s", it.Quantity, r.money.Number(it.UnitPrice)), small),
			text.NewCol(5, r.money.Number(it.LineTotal), right),
		)
	}
	m.AddRow(2, line.NewCol(12))

	total := func(label string, v float64, bold bool) {
		p, pr := small, right
		if bold {
			p.Style, pr.Style = fontstyle.Bold, fontstyle.Bold
		}
		m.AddRow(4, text.NewCol(7, label, p), text.NewCol(5, r.money.Format(v), pr))
	}
	total("Subtotal", inv.Subtotal, false)
	if inv.DiscountAmount > 0 {
		total(fmt.Sprintf("Discount (%s%%)", trimPercent(inv.DiscountPercent)), -inv.DiscountAmount, false)
	}
	if inv.TaxAmount > 0 {
		total(fmt.Sprintf("Tax (%s%%)", trimPercent(inv.TaxRatePercent)), inv.TaxAmount, false)
	}
	total("Total", inv.Total, true)
	total("Paid ("+string(inv.PaymentMethod)+")", inv.AmountReceived, false)
	total("Change", inv.ChangeGiven, false)
	if inv.Status != invoices.StatusCompleted {
		m.AddRow(6, text.NewCol(12, string(inv.Status), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Center}))
	}

	m.AddRow(14, code.NewBarCol(12, inv.Number, props.Barcode{Percent: 90, Center: true}))
	m.AddRow(24, col.New(3), code.NewQrCol(6, inv.Number, props.Rect{Percent: 100, Center: true}), col.New(3))
	if r.store.Footer != "" {
		m.AddRow(5, text.NewCol(12, r.store.Footer, props.Text{Size: 7, Align: align.Center}))
	}
	return generate(m)
}

// ReceiptHTML renders the browser print page for an invoice.
func (r *Renderer) ReceiptHTML(ctx context.Context, inv invoices.Invoice) ([]byte, error) {
	return r.pages.Render("receipt.html", map[string]any{"Store": r.store, "Invoice": inv})
}

// ProductLabel draws a shelf label with the selling price and scannable code.
func (r *Renderer) ProductLabel(ctx context.Context, p catalog.Product) ([]byte, error) {
	cfg := config.NewBuilder().
		WithDimensions(labelWidth, labelHeight).
		WithLeftMargin(3).
		WithRightMargin(3).
		WithTopMargin(3).
		Build()
	m := maroto.New(cfg)

	m.AddRow(6, text.NewCol(12, p.Name, props.Text{Size: 9, Style: fontstyle.Bold}))
	m.AddRow(8, text.NewCol(12, r.money.Format(p.SellingPrice), props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}))
	m.AddRow(4, text.NewCol(12, p.Code+" / "+p.Unit, props.Text{Size: 6}))
	scan := p.Barcode
	if scan == "" {
		scan = p.Code
	}
	m.AddRow(14, code.NewBarCol(12, scan, props.Barcode{Percent: 100, Center: true}))
	return generate(m)
}

// ZReportPDF renders the Z report through Gotenberg, falling back to a local
// table when the service is absent or failing.
func (r *Renderer) ZReportPDF(ctx context.Context, z reports.ZReport) ([]byte, error) {
	if r.gotenberg != nil {
		html, err := r.pages.Render("zreport.html", z)
		if err != nil {
			return nil, err
		}
		pdf, err := r.gotenberg.RenderHTML(ctx, html)
		if err == nil {
			return pdf, nil
		}
		r.logger.Warn("gotenberg z report render, drawing locally", slog.String("date", z.Date), slog.Any("error", err))
	}
	return r.zReportLocal(z)
}

func (r *Renderer) zReportLocal(z reports.ZReport) ([]byte, error) {
	m := maroto.New(config.NewBuilder().WithLeftMargin(15).WithRightMargin(15).WithTopMargin(15).Build())
	m.AddRow(10, text.NewCol(12, z.StoreName+" Z report", props.Text{Size: 16, Style: fontstyle.Bold}))
	m.AddRow(7, text.NewCol(12, "Trading day "+z.Date+", generated "+z.GeneratedAt.Format(time.RFC1123), props.Text{Size: 9}))

	row := func(label, value string) {
		m.AddRow(6, text.NewCol(8, label, props.Text{Size: 10}), text.NewCol(4, value, props.Text{Size: 10, Align: align.Right}))
	}
	row("Invoices", strconv.Itoa(z.InvoiceCount))
	row("Items sold", strconv.FormatInt(z.ItemsSold, 10))
	row("Gross subtotal", r.money.Format(z.GrossSubtotal))
	row("Discounts", r.money.Format(z.Discounts))
	row("Tax", r.money.Format(z.Tax))
	row("Net total", r.money.Format(z.NetTotal))
	row("Cash sales", r.money.Format(z.CashTotal))
	row("Card sales", r.money.Format(z.CardTotal))
	row("Change given", r.money.Format(z.ChangeGiven))
	row("Voided invoices", strconv.Itoa(z.VoidedCount))
	row("Refunded invoices", strconv.Itoa(z.RefundedCount))
	m.AddRow(4, line.NewCol(12))
	row("Expected cash", r.money.Format(z.ExpectedCash))
	row("Counted cash", r.money.Format(z.CountedCash))
	row("Variance", r.money.Format(z.Variance))
	for _, p := range z.TopProducts {
		row(fmt.Sprintf("%s x%d", p.Name, p.Quantity), r.money.Format(p.Revenue))
	}
	return generate(m)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("printing: generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func trimPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
