package reports

import (
	"cmp"
	"math"
	"slices"

	"github.com/tillpoint/tillpoint/internal/invoices"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// aggregate folds one day's invoices into a Daily.
func aggregate(date string, invs []invoices.Invoice) Daily {
	d := Daily{Date: date, TopProducts: []ProductSales{}}
	products := map[int64]*ProductSales{}
	for _, inv := range invs {
		switch inv.Status {
		case invoices.StatusVoid:
			d.VoidedCount++
			continue
		case invoices.StatusRefunded:
			d.RefundedCount++
			continue
		}
		d.InvoiceCount++
		d.GrossSubtotal += inv.Subtotal
		d.Discounts += inv.DiscountAmount
		d.Tax += inv.TaxAmount
		d.NetTotal += inv.Total
		switch inv.PaymentMethod {
		case invoices.PaymentCash:
			d.CashTotal += inv.Total
			d.CashReceived += inv.AmountReceived
			d.ChangeGiven += inv.ChangeGiven
		case invoices.PaymentCard:
			d.CardTotal += inv.Total
		}
		for _, it := range inv.Items {
			d.ItemsSold += it.Quantity
			p, ok := products[it.ProductID]
			if !ok {
				p = &ProductSales{ProductID: it.ProductID, Name: it.Name}
				products[it.ProductID] = p
			}
			p.Quantity += it.Quantity
			p.Revenue += it.LineTotal
		}
	}
	d.GrossSubtotal = round2(d.GrossSubtotal)
	d.Discounts = round2(d.Discounts)
	d.Tax = round2(d.Tax)
	d.NetTotal = round2(d.NetTotal)
	d.CashTotal = round2(d.CashTotal)
	d.CardTotal = round2(d.CardTotal)
	d.CashReceived = round2(d.CashReceived)
	d.ChangeGiven = round2(d.ChangeGiven)

	for _, p := range products {
		p.Revenue = round2(p.Revenue)
		d.TopProducts = append(d.TopProducts, *p)
	}
	slices.SortFunc(d.TopProducts, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(d.TopProducts) > TopProductLimit {
		d.TopProducts = d.TopProducts[:TopProductLimit]
	}
	return d
}

// total sums a series. Its top products merge each day's best sellers.
func total(days []Daily) Daily {
	t := Daily{TopProducts: []ProductSales{}}
	products := map[int64]*ProductSales{}
	for _, d := range days {
		t.InvoiceCount += d.InvoiceCount
		t.GrossSubtotal += d.GrossSubtotal
		t.Discounts += d.Discounts
		t.Tax += d.Tax
		t.NetTotal += d.NetTotal
		t.CashTotal += d.CashTotal
		t.CardTotal += d.CardTotal
		t.CashReceived += d.CashReceived
		t.ChangeGiven += d.ChangeGiven
		t.ItemsSold += d.ItemsSold
		t.VoidedCount += d.VoidedCount
		t.RefundedCount += d.RefundedCount
		for _, p := range d.TopProducts {
			acc, ok := products[p.ProductID]
			if !ok {
				acc = &ProductSales{ProductID: p.ProductID, Name: p.Name}
				products[p.ProductID] = acc
			}
			acc.Quantity += p.Quantity
			acc.Revenue += p.Revenue
		}
	}
	t.GrossSubtotal = round2(t.GrossSubtotal)
	t.Discounts = round2(t.Discounts)
	t.Tax = round2(t.Tax)
	t.NetTotal = round2(t.NetTotal)
	t.CashTotal = round2(t.CashTotal)
	t.CardTotal = round2(t.CardTotal)
	t.CashReceived = round2(t.CashReceived)
	t.ChangeGiven = round2(t.ChangeGiven)
	for _, p := range products {
		p.Revenue = round2(p.Revenue)
		t.TopProducts = append(t.TopProducts, *p)
	}
	slices.SortFunc(t.TopProducts, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(t.TopProducts) > TopProductLimit {
		t.TopProducts = t.TopProducts[:TopProductLimit]
	}
	return t
}
