package pricing

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSource labels observations with no explicit origin.
const DefaultSource = "default"

// PricePoint is a single historical price observation for a TLD.
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

// PriceChange captures one registration price movement for a TLD together
// with its history, attached alerts, and bookkeeping timestamps. Instances
// are treated as immutable; updates replace the cached entry for the TLD.
type PriceChange struct {
	ID               string            `json:"id"`
	TLD              string            `json:"tld"`
	OldPrice         decimal.Decimal   `json:"oldPrice"`
	NewPrice         decimal.Decimal   `json:"newPrice"`
	PriceChange      decimal.Decimal   `json:"priceChange"`
	PercentageChange decimal.Decimal   `json:"percentageChange"`
	Date             time.Time         `json:"date"`
	DomainCount      *int64            `json:"domainCount,omitempty"`
	History          []PricePoint      `json:"history"`
	Alerts           []PriceAlert      `json:"alerts,omitempty"`
	LastChecked      time.Time         `json:"lastChecked"`
	NextCheck        time.Time         `json:"nextCheck"`
	Sources          []string          `json:"sources"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Record is the untyped wire shape returned by the price API. Optional
// fields are pointers so absent values can be told apart from zeroes.
type Record struct {
	ID               string            `json:"id,omitempty"`
	TLD              string            `json:"tld"`
	OldPrice         decimal.Decimal   `json:"oldPrice"`
	NewPrice         decimal.Decimal   `json:"newPrice"`
	PriceChange      decimal.Decimal   `json:"priceChange"`
	PercentageChange decimal.Decimal   `json:"percentageChange"`
	Date             string            `json:"date"`
	DomainCount      *int64            `json:"domainCount,omitempty"`
	History          []PointRecord     `json:"history,omitempty"`
	LastChecked      string            `json:"lastChecked,omitempty"`
	NextCheck        string            `json:"nextCheck,omitempty"`
	Sources          []string          `json:"sources,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// PointRecord is the wire shape of a history point.
type PointRecord struct {
	Date   string          `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source,omitempty"`
}

// FromRecord materialises a PriceChange from a wire record, supplying
// defaults for everything the payload omits: a random identifier, empty
// history, lastChecked=now, nextCheck=now+24h, and a single "default"
// source. Required numeric fields that are absent simply come through as
// zero values; callers must treat them as mandatory.
func FromRecord(rec Record, now time.Time) *PriceChange {
	pc := &PriceChange{
		ID:               rec.ID,
		TLD:              rec.TLD,
		OldPrice:         rec.OldPrice,
		NewPrice:         rec.NewPrice,
		PriceChange:      rec.PriceChange,
		PercentageChange: rec.PercentageChange,
		Date:             parseDate(rec.Date, now),
		DomainCount:      rec.DomainCount,
		History:          make([]PricePoint, 0, len(rec.History)),
		LastChecked:      parseDate(rec.LastChecked, now),
		NextCheck:        parseDate(rec.NextCheck, now.Add(24*time.Hour)),
		Sources:          rec.Sources,
		Metadata:         rec.Metadata,
	}

	if pc.ID == "" {
		pc.ID = uuid.NewString()
	}
	if len(pc.Sources) == 0 {
		pc.Sources = []string{DefaultSource}
	}

	for _, pt := range rec.History {
		source := pt.Source
		if source == "" {
			source = DefaultSource
		}
		pc.History = append(pc.History, PricePoint{
			Date:   parseDate(pt.Date, now),
			Price:  pt.Price,
			Source: source,
		})
	}

	return pc
}

const dateLayout = "2006-01-02"

func parseDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t
	}
	return fallback
}

// ChartDataPoint projects a price observation for charting.
type ChartDataPoint struct {
	Date   string          `json:"date"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

// ToChartDataPoint projects the current observation to a chart point.
func (p *PriceChange) ToChartDataPoint() ChartDataPoint {
	source := DefaultSource
	if len(p.Sources) > 0 {
		source = p.Sources[0]
	}
	return ChartDataPoint{
		Date:   p.Date.Format(dateLayout),
		Price:  p.NewPrice,
		Source: source,
	}
}

// HistoryChartData merges the historical points with the current
// observation into one sequence ordered ascending by date.
func (p *PriceChange) HistoryChartData() []ChartDataPoint {
	points := make([]PricePoint, len(p.History))
	copy(points, p.History)
	current := p.ToChartDataPoint()
	points = append(points, PricePoint{Date: p.Date, Price: current.Price, Source: current.Source})

	sortPointsByDate(points)

	out := make([]ChartDataPoint, 0, len(points))
	for _, pt := range points {
		out = append(out, ChartDataPoint{
			Date:   pt.Date.Format(dateLayout),
			Price:  pt.Price,
			Source: pt.Source,
		})
	}
	return out
}

// HistoryPoints returns the merged history including the current
// observation ordered ascending by date, keeping full timestamps.
func (p *PriceChange) HistoryPoints() []PricePoint {
	source := DefaultSource
	if len(p.Sources) > 0 {
		source = p.Sources[0]
	}
	points := make([]PricePoint, len(p.History))
	copy(points, p.History)
	points = append(points, PricePoint{Date: p.Date, Price: p.NewPrice, Source: source})
	sortPointsByDate(points)
	return points
}

func sortPointsByDate(points []PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
}
