package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Trend labels the short-term direction of a price series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Analytics summarises the merged price history of a TLD.
type Analytics struct {
	MinPrice   decimal.Decimal `json:"minPrice"`
	MaxPrice   decimal.Decimal `json:"maxPrice"`
	MeanPrice  decimal.Decimal `json:"meanPrice"`
	Volatility float64         `json:"volatility"`
	Trend      Trend           `json:"trend"`
	Confidence float64         `json:"confidence"`
}

// Analytics computes dispersion and trend statistics over the history
// merged with the current observation. Volatility is the population
// standard deviation of prices. The trend compares the first and last of
// the most recent three points; fewer than two points yields "stable".
// Confidence blends history length with inverse volatility, clamped to
// [0,1].
func (p *PriceChange) Analytics() Analytics {
	points := p.HistoryPoints()

	prices := make([]float64, len(points))
	minPrice := points[0].Price
	maxPrice := points[0].Price
	sum := decimal.Zero
	for i, pt := range points {
		prices[i] = pt.Price.InexactFloat64()
		if pt.Price.LessThan(minPrice) {
			minPrice = pt.Price
		}
		if pt.Price.GreaterThan(maxPrice) {
			maxPrice = pt.Price
		}
		sum = sum.Add(pt.Price)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(points))))

	meanF := mean.InexactFloat64()
	var variance float64
	for _, price := range prices {
		diff := price - meanF
		variance += diff * diff
	}
	variance /= float64(len(prices))
	volatility := math.Sqrt(variance)

	return Analytics{
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		MeanPrice:  mean,
		Volatility: volatility,
		Trend:      trendOf(points),
		Confidence: confidence(len(points), volatility, meanF),
	}
}

func trendOf(points []PricePoint) Trend {
	if len(points) < 2 {
		return TrendStable
	}
	window := points
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	first := window[0].Price
	last := window[len(window)-1].Price
	switch last.Cmp(first) {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendStable
	}
}

// confidence grows with history depth and shrinks with relative
// volatility. A dozen points with zero dispersion scores 1.0.
func confidence(n int, volatility, mean float64) float64 {
	depth := float64(n) / 12
	if depth > 1 {
		depth = 1
	}

	stability := 1.0
	if mean > 0 && volatility > 0 {
		stability = 1 / (1 + volatility/mean)
	}

	score := 0.5*depth + 0.5*stability
	return math.Max(0, math.Min(1, score))
}
