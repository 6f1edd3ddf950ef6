// Package notification evaluates triggered price alerts against per-user
// delivery preferences and queues or dispatches the resulting payloads.
package notification

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tldwatch/internal/pricing"
)

var (
	decimal5  = decimal.NewFromInt(5)
	decimal10 = decimal.NewFromInt(10)
)

// Priority grades a notification payload.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Frequency is the user's delivery cadence preference.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

// QuietHours is a daily window during which payloads are queued instead
// of dispatched. Start and End are "HH:MM" in the given timezone; the
// bounds are inclusive and the window does not wrap past midnight.
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// ChannelSetting enables or disables one delivery channel for a user.
type ChannelSetting struct {
	Type    pricing.Channel `json:"type"`
	Enabled bool            `json:"enabled"`
}

// Preferences is a user's notification configuration. Updates overwrite
// the record wholesale; there is no partial merge.
type Preferences struct {
	Channels   []ChannelSetting `json:"channels"`
	Frequency  Frequency        `json:"frequency"`
	QuietHours *QuietHours      `json:"quiet_hours,omitempty"`
}

// DefaultPreferences seeds users with no explicit configuration: in-app
// enabled, email and push disabled, instant delivery, no quiet hours.
func DefaultPreferences() Preferences {
	return Preferences{
		Channels: []ChannelSetting{
			{Type: pricing.ChannelInApp, Enabled: true},
			{Type: pricing.ChannelEmail, Enabled: false},
			{Type: pricing.ChannelPush, Enabled: false},
		},
		Frequency: FrequencyInstant,
	}
}

func (p Preferences) channelEnabled(ch pricing.Channel) bool {
	for _, setting := range p.Channels {
		if setting.Type == ch {
			return setting.Enabled
		}
	}
	return false
}

// Payload is one notification ready for delivery. Transient; never
// persisted.
type Payload struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"type"`
	Priority  Priority          `json:"priority"`
}

// Evaluator holds per-user preferences and the pending in-app queue.
type Evaluator struct {
	logger zerolog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	prefs   map[string]Preferences
	pending []Payload
}

// NewEvaluator constructs an Evaluator. A nil clock uses time.Now.
func NewEvaluator(logger zerolog.Logger, clock func() time.Time) *Evaluator {
	if clock == nil {
		clock = time.Now
	}
	return &Evaluator{
		logger: logger.With().Str("component", "notification").Logger(),
		clock:  clock,
		prefs:  make(map[string]Preferences),
	}
}

// SetPreferences replaces the user's preferences.
func (e *Evaluator) SetPreferences(userID string, prefs Preferences) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prefs[userID] = prefs
}

// GetPreferences returns the user's preferences, falling back to the
// defaults for unknown users.
func (e *Evaluator) GetPreferences(userID string) Preferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prefs, ok := e.prefs[userID]; ok {
		return prefs
	}
	return DefaultPreferences()
}

// ProcessAlert builds the payload for a fired alert and either queues it
// (quiet hours) or dispatches it to every channel named by the alert that
// the user has enabled. Email and push delivery are log-only stubs;
// in-app delivery appends to the pending queue.
func (e *Evaluator) ProcessAlert(userID string, change *pricing.PriceChange, alert pricing.PriceAlert) {
	prefs := e.GetPreferences(userID)
	payload := e.buildPayload(change, alert)

	if e.withinQuietHours(prefs) {
		e.logger.Info().Str("tld", change.TLD).Msg("notification queued: within quiet hours")
		e.enqueue(payload)
		return
	}

	for _, ch := range alert.NotifyVia {
		if !prefs.channelEnabled(ch) {
			continue
		}
		e.dispatch(ch, payload)
	}
}

func (e *Evaluator) buildPayload(change *pricing.PriceChange, alert pricing.PriceAlert) Payload {
	changeType := "increased"
	if change.PriceChange.Sign() < 0 {
		changeType = "decreased"
	}
	amount := change.PriceChange.Abs()
	percent := change.PercentageChange.Abs()

	return Payload{
		Title: fmt.Sprintf("Price %s for %s", changeType, change.TLD),
		Body:  fmt.Sprintf("The price has %s by $%s (%s%%)", changeType, amount.StringFixed(2), percent.StringFixed(1)),
		Data: map[string]string{
			"tld":       change.TLD,
			"oldPrice":  change.OldPrice.String(),
			"newPrice":  change.NewPrice.String(),
			"alertType": string(alert.Type),
		},
		Timestamp: e.clock(),
		Type:      "price_alert",
		Priority:  PriorityFor(change.PercentageChange),
	}
}

// PriorityFor grades a percentage change: high at or above 10%, normal at
// or above 5%, low otherwise. The sign is ignored.
func PriorityFor(percentageChange decimal.Decimal) Priority {
	percent := percentageChange.Abs()
	switch {
	case percent.GreaterThanOrEqual(decimal10):
		return PriorityHigh
	case percent.GreaterThanOrEqual(decimal5):
		return PriorityNormal
	default:
		return PriorityLow
	}
}

func (e *Evaluator) dispatch(ch pricing.Channel, payload Payload) {
	switch ch {
	case pricing.ChannelInApp:
		e.enqueue(payload)
	case pricing.ChannelEmail:
		// External email delivery is out of scope.
		e.logger.Info().Str("title", payload.Title).Msg("email notification (stub)")
	case pricing.ChannelPush:
		// External push delivery is out of scope.
		e.logger.Info().Str("title", payload.Title).Msg("push notification (stub)")
	default:
		e.logger.Warn().Str("channel", string(ch)).Msg("unsupported notification channel")
	}
}

func (e *Evaluator) enqueue(payload Payload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, payload)
}

// PendingNotifications returns the queued in-app payloads.
func (e *Evaluator) PendingNotifications() []Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Payload, len(e.pending))
	copy(out, e.pending)
	return out
}

// ClearNotifications empties the pending queue.
func (e *Evaluator) ClearNotifications() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = e.pending[:0]
}

func (e *Evaluator) withinQuietHours(prefs Preferences) bool {
	qh := prefs.QuietHours
	if qh == nil {
		return false
	}

	loc, err := time.LoadLocation(qh.Timezone)
	if err != nil {
		e.logger.Warn().Str("timezone", qh.Timezone).Msg("unknown quiet-hours timezone; ignoring window")
		return false
	}

	now := e.clock().In(loc)
	current := now.Hour()*60 + now.Minute()

	start, okStart := parseClock(qh.Start)
	end, okEnd := parseClock(qh.End)
	if !okStart || !okEnd {
		return false
	}

	return current >= start && current <= end
}

func parseClock(value string) (int, bool) {
	h, m, ok := strings.Cut(value, ":")
	if !ok {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
