package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AdditionalRevenue estimates registry-wide revenue impact of a price
// change. Unknown domain counts yield zero.
func AdditionalRevenue(priceChange decimal.Decimal, domainCount *int64) decimal.Decimal {
	if domainCount == nil {
		return decimal.Zero
	}
	return priceChange.Mul(decimal.NewFromInt(*domainCount))
}

// FormatCurrency renders a USD amount with thousands grouping and two
// decimal places, e.g. "$1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	negative := amount.Sign() < 0
	fixed := amount.Abs().StringFixed(2)

	whole, frac, _ := strings.Cut(fixed, ".")
	grouped := groupThousands(whole)

	builder := strings.Builder{}
	if negative {
		builder.WriteString("-")
	}
	builder.WriteString("$")
	builder.WriteString(grouped)
	builder.WriteString(".")
	builder.WriteString(frac)
	return builder.String()
}

// FormatNumber renders an integer with thousands grouping.
func FormatNumber(n int64) string {
	grouped := groupThousands(decimal.NewFromInt(n).Abs().String())
	if n < 0 {
		return "-" + grouped
	}
	return grouped
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	builder := strings.Builder{}
	lead := len(digits) % 3
	if lead > 0 {
		builder.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if builder.Len() > 0 {
			builder.WriteString(",")
		}
		builder.WriteString(digits[i : i+3])
	}
	return builder.String()
}

// FormatDate renders a date in long form, e.g. "October 4, 2024".
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// TLDPath converts a dot-prefixed TLD to a URL path segment.
func TLDPath(tld string) string {
	return strings.ToLower(strings.ReplaceAll(tld, ".", ""))
}

// TransformToChartData projects a list of price changes to chart points,
// newest first in the input, oldest first in the output.
func TransformToChartData(changes []*PriceChange) []ChartDataPoint {
	out := make([]ChartDataPoint, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		out = append(out, changes[i].ToChartDataPoint())
	}
	return out
}
