package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"tldwatch/internal/pricing"
)

// Export renders a TLD's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.TLD == "" {
		return errors.New("--tld is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = 1000
	}

	points, err := a.collectHistory(ctx, opts.TLD)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Str("tld", opts.TLD).Msg("no history found for export")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, opts.TLD, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, opts.TLD, downsampled); err != nil {
			return err
		}
	}

	return nil
}

// collectHistory prefers persisted observations and falls back to the
// data service's remote/cached history when no database is configured.
func (a *App) collectHistory(ctx context.Context, tld string) ([]pricing.PricePoint, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		defer closeStore()
	}

	if store != nil {
		observations, err := store.ListObservationsForTLD(ctx, tld)
		if err != nil {
			return nil, err
		}
		points := make([]pricing.PricePoint, 0, len(observations))
		for _, obs := range observations {
			source := "db"
			if len(obs.Sources) > 0 {
				source = obs.Sources[0]
			}
			points = append(points, pricing.PricePoint{
				Date:   obs.ObservedAt,
				Price:  obs.NewPrice,
				Source: source,
			})
		}
		if len(points) > 0 {
			return points, nil
		}
	}

	svcs := a.buildServices(nil, nil)
	return svcs.data.GetPriceHistory(ctx, tld), nil
}

func downsamplePoints(points []pricing.PricePoint, max int) []pricing.PricePoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[len(points)-1:]
	}

	result := make([]pricing.PricePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeHistoryCSV(path, tld string, points []pricing.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"tld", "date", "price", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, pt := range points {
		record := []string{
			tld,
			pt.Date.Format(time.RFC3339),
			pt.Price.String(),
			pt.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path, tld string, points []pricing.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	prices := make([]float64, len(points))
	for i, pt := range points {
		x[i] = pt.Date
		prices[i] = pt.Price.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    tld,
				XValues: x,
				YValues: prices,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
