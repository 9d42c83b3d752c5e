package domain

import (
	"math"
	"strconv"
	"strings"
)

// FormatThousands renders n with Chilean grouping ("1.250.000"); fractions
// are kept with a decimal comma when present ("3,5").
func FormatThousands(n float64) string {
	neg := n < 0
	n = math.Abs(n)
	whole := math.Floor(n)
	frac := n - whole

	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac >= 0.005 {
		f := strconv.FormatFloat(frac, 'f', 2, 64) // "0.50"
		f = strings.TrimRight(f[2:], "0")
		if f != "" {
			out += "," + f
		}
	}
	if neg {
		out = "-" + out
	}
	return out
}

func FormatAmount(v float64, c Currency) string {
	if c == CurrencyCLP {
		return "$" + FormatThousands(v)
	}
	return FormatThousands(v) + " UF"
}
