package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AlertType discriminates the supported alert rules.
type AlertType string

const (
	AlertPriceDrop     AlertType = "price_drop"
	AlertPriceIncrease AlertType = "price_increase"
	AlertThreshold     AlertType = "threshold"
)

// Valid reports whether the alert type is one of the known kinds.
func (t AlertType) Valid() bool {
	switch t {
	case AlertPriceDrop, AlertPriceIncrease, AlertThreshold:
		return true
	default:
		return false
	}
}

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// PriceAlert is a rule attached to a tracked TLD. Threshold applies to
// "threshold" alerts, Percentage to the directional kinds; either may be
// nil when the rule does not use it.
type PriceAlert struct {
	Type       AlertType        `json:"type"`
	Threshold  *decimal.Decimal `json:"threshold,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Enabled    bool             `json:"enabled"`
	NotifyVia  []Channel        `json:"notifyVia"`
}

// Validate checks the structural requirements of an alert rule.
func (a PriceAlert) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown alert type %q", a.Type)
	}
	if len(a.NotifyVia) == 0 {
		return fmt.Errorf("alert requires at least one notification channel")
	}
	return nil
}

// ShouldNotify decides whether the alert fires against this price change.
// Disabled alerts never fire. Directional alerts require the change sign
// to match and, when a percentage trigger is set, the absolute percentage
// change to reach it. Threshold alerts fire when the new price is at or
// below the threshold or the old price was above it.
func (p *PriceChange) ShouldNotify(alert PriceAlert) bool {
	if !alert.Enabled {
		return false
	}

	switch alert.Type {
	case AlertPriceDrop:
		if p.PriceChange.Sign() >= 0 {
			return false
		}
		return alert.Percentage == nil || p.PercentageChange.Abs().GreaterThanOrEqual(*alert.Percentage)
	case AlertPriceIncrease:
		if p.PriceChange.Sign() <= 0 {
			return false
		}
		return alert.Percentage == nil || p.PercentageChange.Abs().GreaterThanOrEqual(*alert.Percentage)
	case AlertThreshold:
		if alert.Threshold == nil {
			return false
		}
		return p.NewPrice.LessThanOrEqual(*alert.Threshold) || p.OldPrice.GreaterThan(*alert.Threshold)
	default:
		return false
	}
}
