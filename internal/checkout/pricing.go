package checkout

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ComputeTotals derives every monetary figure of a sale. Each output is
// rounded half-up to two decimals before it feeds the next step, so the stored
// invoice satisfies total == subtotal - discount + tax exactly.
func ComputeTotals(lines []CartLine, discountPercent, taxRatePercent, received float64) Totals {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.LineTotal
	}
	t := Totals{Subtotal: round2(subtotal)}
	t.DiscountAmount = round2(t.Subtotal * discountPercent / 100)
	t.AfterDiscount = round2(t.Subtotal - t.DiscountAmount)
	t.TaxAmount = round2(t.AfterDiscount * taxRatePercent / 100)
	t.Total = round2(t.AfterDiscount + t.TaxAmount)
	t.AmountReceived = round2(received)
	t.Change = round2(math.Max(0, t.AmountReceived-t.Total))
	return t
}

var groupedAmount = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// ParseAmount reads a typed money amount. Commas are accepted only as
// thousands separators; anything that is not a finite number counts as zero.
func ParseAmount(text string) float64 {
	text = strings.TrimSpace(text)
	if strings.Contains(text, ",") {
		if !groupedAmount.MatchString(text) {
			return 0
		}
		text = strings.ReplaceAll(text, ",", "")
	}
	if text == "" {
		return 0
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func validPercent(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}

// round2 rounds half away from zero at two decimals. The nudge absorbs binary
// representation error such as 1.005 being stored as 1.00499...
func round2(v float64) float64 {
	return math.Round((v+math.Copysign(1e-9, v))*100) / 100
}
