package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAnalyticsFlatHistory(t *testing.T) {
	pc := FromRecord(Record{
		TLD:      ".flat",
		NewPrice: decimal.NewFromInt(10),
		Date:     "2024-04-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(10)},
			{Date: "2024-02-01", Price: decimal.NewFromInt(10)},
			{Date: "2024-03-01", Price: decimal.NewFromInt(10)},
		},
	}, time.Now().UTC())

	a := pc.Analytics()
	if a.Volatility != 0 {
		t.Fatalf("flat prices should have zero volatility, got %f", a.Volatility)
	}
	if a.Trend != TrendStable {
		t.Fatalf("flat prices should be stable, got %s", a.Trend)
	}
	if a.MinPrice.Cmp(decimal.NewFromInt(10)) != 0 || a.MaxPrice.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("min/max wrong: %s/%s", a.MinPrice, a.MaxPrice)
	}
	if a.MeanPrice.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("mean wrong: %s", a.MeanPrice)
	}
}

func TestAnalyticsSinglePoint(t *testing.T) {
	pc := FromRecord(Record{
		TLD:      ".one",
		NewPrice: decimal.NewFromInt(25),
		Date:     "2024-01-01",
	}, time.Now().UTC())

	a := pc.Analytics()
	if a.Volatility != 0 {
		t.Fatalf("single point should have zero variance, got %f", a.Volatility)
	}
	if a.Trend != TrendStable {
		t.Fatalf("single point trend should be stable, got %s", a.Trend)
	}
}

func TestAnalyticsTrendDirection(t *testing.T) {
	up := FromRecord(Record{
		TLD:      ".up",
		NewPrice: decimal.NewFromInt(30),
		Date:     "2024-03-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(10)},
			{Date: "2024-02-01", Price: decimal.NewFromInt(20)},
		},
	}, time.Now().UTC())
	if got := up.Analytics().Trend; got != TrendUp {
		t.Fatalf("expected up trend, got %s", got)
	}

	down := FromRecord(Record{
		TLD:      ".down",
		NewPrice: decimal.NewFromInt(5),
		Date:     "2024-03-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(30)},
			{Date: "2024-02-01", Price: decimal.NewFromInt(20)},
		},
	}, time.Now().UTC())
	if got := down.Analytics().Trend; got != TrendDown {
		t.Fatalf("expected down trend, got %s", got)
	}
}

func TestAnalyticsTrendUsesLastThreePoints(t *testing.T) {
	// Older points fall before the three-sample window and must not
	// influence the direction.
	pc := FromRecord(Record{
		TLD:      ".window",
		NewPrice: decimal.NewFromInt(12),
		Date:     "2024-05-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(100)},
			{Date: "2024-02-01", Price: decimal.NewFromInt(9)},
			{Date: "2024-03-01", Price: decimal.NewFromInt(10)},
			{Date: "2024-04-01", Price: decimal.NewFromInt(11)},
		},
	}, time.Now().UTC())

	if got := pc.Analytics().Trend; got != TrendUp {
		t.Fatalf("expected up trend over last three points, got %s", got)
	}
}

func TestAnalyticsConfidenceBounds(t *testing.T) {
	pc := FromRecord(Record{
		TLD:      ".conf",
		NewPrice: decimal.NewFromInt(10),
		Date:     "2024-04-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(2)},
			{Date: "2024-02-01", Price: decimal.NewFromInt(90)},
			{Date: "2024-03-01", Price: decimal.NewFromInt(5)},
		},
	}, time.Now().UTC())

	c := pc.Analytics().Confidence
	if c < 0 || c > 1 {
		t.Fatalf("confidence outside [0,1]: %f", c)
	}

	flat := FromRecord(Record{
		TLD:      ".flatconf",
		NewPrice: decimal.NewFromInt(10),
		Date:     "2024-04-01",
	}, time.Now().UTC())
	if fc := flat.Analytics().Confidence; fc < 0 || fc > 1 {
		t.Fatalf("confidence outside [0,1]: %f", fc)
	}
}

func TestAnalyticsVolatility(t *testing.T) {
	// Prices 10 and 20: mean 15, population stddev 5.
	pc := FromRecord(Record{
		TLD:      ".vol",
		NewPrice: decimal.NewFromInt(20),
		Date:     "2024-02-01",
		History: []PointRecord{
			{Date: "2024-01-01", Price: decimal.NewFromInt(10)},
		},
	}, time.Now().UTC())

	a := pc.Analytics()
	if math.Abs(a.Volatility-5) > 1e-9 {
		t.Fatalf("expected volatility 5, got %f", a.Volatility)
	}
}
