package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"tldwatch/internal/pricing"
)

// PriceAPI retrieves TLD price data from the remote service.
type PriceAPI interface {
	PriceChanges(ctx context.Context) ([]pricing.Record, error)
	Search(ctx context.Context, query string) ([]pricing.Record, error)
	History(ctx context.Context, tld string) ([]pricing.PointRecord, error)
	Price(ctx context.Context, tld string) (decimal.Decimal, error)
	CreateAlert(ctx context.Context, tld string, alert pricing.PriceAlert) error
}
