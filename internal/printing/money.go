package printing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money formats amounts as "<ISO code> <localized number>", e.g. "USD 1,035.00".
type Money struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoney builds a formatter for an ISO 4217 code in the given locale.
func NewMoney(code string, tag language.Tag) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("printing: currency %q: %w", code, err)
	}
	return Money{unit: unit, printer: message.NewPrinter(tag)}, nil
}

// Format renders v with two decimals.
func (m Money) Format(v float64) string {
	return m.unit.String() + " " + m.Number(v)
}

// Number renders v with two decimals and no currency code.
func (m Money) Number(v float64) string {
	return m.printer.Sprint(number.Decimal(v, number.Scale(2)))
}
