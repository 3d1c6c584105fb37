package amount

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is rendered for unknown values.
const Placeholder = "—"

const (
	DefaultAmountDigits   = 6
	DefaultCurrencyDigits = 2
	DefaultPercentDigits  = 2
)

var printer = message.NewPrinter(language.English)

func finite(v Optional) (float64, bool) {
	if !v.Valid || math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
		return 0, false
	}
	if v.Value == 0 {
		// drop negative zero
		return 0, true
	}
	return v.Value, true
}

// FormatAmount renders a token or SOL amount with up to maxFractionDigits
// fraction digits and thousands grouping.
func FormatAmount(v Optional, maxFractionDigits int) string {
	f, ok := finite(v)
	if !ok {
		return Placeholder
	}
	return printer.Sprint(number.Decimal(f, number.MaxFractionDigits(clampDigits(maxFractionDigits))))
}

// FormatCurrency renders a USD value.
func FormatCurrency(v Optional, maxFractionDigits int) string {
	f, ok := finite(v)
	if !ok {
		return Placeholder
	}
	maxDigits := clampDigits(maxFractionDigits)
	minDigits := DefaultCurrencyDigits
	if minDigits > maxDigits {
		minDigits = maxDigits
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + "$" + printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(minDigits),
		number.MaxFractionDigits(maxDigits)))
}

// FormatPercent renders a signed percentage with exactly maxFractionDigits
// fraction digits. Non-negative values get a leading "+".
func FormatPercent(v Optional, maxFractionDigits int) string {
	f, ok := finite(v)
	if !ok {
		return Placeholder
	}
	digits := clampDigits(maxFractionDigits)
	out := printer.Sprint(number.Decimal(f,
		number.MinFractionDigits(digits),
		number.MaxFractionDigits(digits)))
	if f >= 0 {
		out = "+" + out
	}
	return out + "%"
}

func clampDigits(d int) int {
	switch {
	case d < 0:
		return 0
	case d > 20:
		return 20
	}
	return d
}
