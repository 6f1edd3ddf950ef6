package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"tldwatch/internal/notification"
	"tldwatch/internal/pricing"
)

// SimulateAlert pushes a synthetic price change through the alert
// pipeline without touching the remote API and prints the resulting
// notifications.
func (a *App) SimulateAlert(ctx context.Context, tld string, oldPrice, newPrice decimal.Decimal) error {
	if tld == "" {
		return errors.New("--tld is required")
	}
	if oldPrice.IsZero() {
		return errors.New("old price must be non-zero")
	}

	change := newPrice.Sub(oldPrice)
	percentage := change.Div(oldPrice).Mul(decimal.NewFromInt(100))

	pc := pricing.FromRecord(pricing.Record{
		TLD:              tld,
		OldPrice:         oldPrice,
		NewPrice:         newPrice,
		PriceChange:      change,
		PercentageChange: percentage,
		Date:             time.Now().UTC().Format(time.RFC3339),
	}, time.Now().UTC())

	alertType := pricing.AlertPriceIncrease
	if change.Sign() < 0 {
		alertType = pricing.AlertPriceDrop
	}
	alert := pricing.PriceAlert{
		Type:      alertType,
		Enabled:   true,
		NotifyVia: []pricing.Channel{pricing.ChannelInApp},
	}

	if !pc.ShouldNotify(alert) {
		fmt.Fprintln(os.Stdout, "simulated change does not trigger the alert")
		return nil
	}

	notifier := notification.NewEvaluator(a.Logger, nil)
	notifier.ProcessAlert(DefaultUserID, pc, alert)

	for _, payload := range notifier.PendingNotifications() {
		fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", payload.Priority, payload.Title, payload.Body)
	}
	return nil
}
