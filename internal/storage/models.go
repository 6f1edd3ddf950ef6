package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is a persisted TLD price change.
type PriceObservation struct {
	TLD              string
	OldPrice         decimal.Decimal
	NewPrice         decimal.Decimal
	PriceChange      decimal.Decimal
	PercentageChange decimal.Decimal
	ObservedAt       time.Time
	DomainCount      *int64
	Sources          []string
	CreatedAt        time.Time
}

// TriggeredAlert captures an emitted alert for auditing.
type TriggeredAlert struct {
	ID               int64
	TLD              string
	UserID           string
	AlertType        string
	Priority         string
	PriceChange      decimal.Decimal
	PercentageChange decimal.Decimal
	Channels         []string
	CreatedAt        time.Time
}
