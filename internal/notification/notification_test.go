package notification

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tldwatch/internal/pricing"
)

func dropChange(t *testing.T, old, new float64) *pricing.PriceChange {
	t.Helper()
	oldD := decimal.NewFromFloat(old)
	newD := decimal.NewFromFloat(new)
	delta := newD.Sub(oldD)
	pct := delta.Div(oldD).Mul(decimal.NewFromInt(100))
	return pricing.FromRecord(pricing.Record{
		TLD:              ".com",
		OldPrice:         oldD,
		NewPrice:         newD,
		PriceChange:      delta,
		PercentageChange: pct,
		Date:             "2024-10-04",
	}, time.Now().UTC())
}

func inAppAlert() pricing.PriceAlert {
	return pricing.PriceAlert{
		Type:      pricing.AlertPriceDrop,
		Enabled:   true,
		NotifyVia: []pricing.Channel{pricing.ChannelInApp},
	}
}

func TestDefaultPreferences(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)

	prefs := e.GetPreferences("nobody")
	if prefs.Frequency != FrequencyInstant {
		t.Fatalf("default frequency = %s", prefs.Frequency)
	}
	if !prefs.channelEnabled(pricing.ChannelInApp) {
		t.Fatal("in-app should be enabled by default")
	}
	if prefs.channelEnabled(pricing.ChannelEmail) || prefs.channelEnabled(pricing.ChannelPush) {
		t.Fatal("email and push should be disabled by default")
	}
	if prefs.QuietHours != nil {
		t.Fatal("no default quiet hours expected")
	}
}

func TestSetPreferencesOverwrites(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)
	e.SetPreferences("u1", Preferences{
		Channels:  []ChannelSetting{{Type: pricing.ChannelEmail, Enabled: true}},
		Frequency: FrequencyDaily,
	})

	prefs := e.GetPreferences("u1")
	if prefs.Frequency != FrequencyDaily {
		t.Fatalf("frequency = %s", prefs.Frequency)
	}
	// Channels absent from the stored record are simply disabled.
	if prefs.channelEnabled(pricing.ChannelInApp) {
		t.Fatal("in-app should not survive a wholesale overwrite")
	}
	if !prefs.channelEnabled(pricing.ChannelEmail) {
		t.Fatal("email should be enabled")
	}
}

func TestProcessAlertBuildsPayload(t *testing.T) {
	fixed := time.Date(2024, 10, 4, 15, 0, 0, 0, time.UTC)
	e := NewEvaluator(zerolog.Nop(), func() time.Time { return fixed })

	e.ProcessAlert("default", dropChange(t, 100, 90), inAppAlert())

	pending := e.PendingNotifications()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending payload, got %d", len(pending))
	}
	p := pending[0]
	if p.Title != "Price decreased for .com" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Body != "The price has decreased by $10.00 (10.0%)" {
		t.Errorf("body = %q", p.Body)
	}
	if p.Priority != PriorityHigh {
		t.Errorf("priority = %s, want high", p.Priority)
	}
	if p.Type != "price_alert" {
		t.Errorf("type = %s", p.Type)
	}
	if !p.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %s", p.Timestamp)
	}
	if p.Data["tld"] != ".com" || p.Data["alertType"] != "price_drop" {
		t.Errorf("data = %+v", p.Data)
	}
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		pct  float64
		want Priority
	}{
		{-12, PriorityHigh},
		{10, PriorityHigh},
		{7.5, PriorityNormal},
		{-5, PriorityNormal},
		{4.99, PriorityLow},
		{-2, PriorityLow},
		{0, PriorityLow},
	}
	for _, tc := range cases {
		if got := PriorityFor(decimal.NewFromFloat(tc.pct)); got != tc.want {
			t.Errorf("PriorityFor(%v) = %s, want %s", tc.pct, got, tc.want)
		}
	}
}

func TestIncreaseWording(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)
	alert := inAppAlert()
	alert.Type = pricing.AlertPriceIncrease

	e.ProcessAlert("default", dropChange(t, 100, 103), alert)

	pending := e.PendingNotifications()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending payload, got %d", len(pending))
	}
	if pending[0].Body != "The price has increased by $3.00 (3.0%)" {
		t.Errorf("body = %q", pending[0].Body)
	}
	if pending[0].Priority != PriorityLow {
		t.Errorf("priority = %s, want low", pending[0].Priority)
	}
}

func TestQuietHoursQueueInsteadOfDispatch(t *testing.T) {
	inside := time.Date(2024, 10, 4, 12, 0, 0, 0, time.UTC)
	e := NewEvaluator(zerolog.Nop(), func() time.Time { return inside })

	prefs := DefaultPreferences()
	prefs.Channels = []ChannelSetting{{Type: pricing.ChannelEmail, Enabled: true}}
	prefs.QuietHours = &QuietHours{Start: "00:00", End: "23:59", Timezone: "UTC"}
	e.SetPreferences("u1", prefs)

	// Even though the alert targets email only, the quiet window queues
	// the payload instead of dispatching anywhere.
	alert := inAppAlert()
	alert.NotifyVia = []pricing.Channel{pricing.ChannelEmail}
	e.ProcessAlert("u1", dropChange(t, 100, 90), alert)

	if got := len(e.PendingNotifications()); got != 1 {
		t.Fatalf("expected queued payload during quiet hours, got %d", got)
	}
}

func TestQuietHoursBoundsInclusive(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", time.Date(2024, 10, 4, 21, 59, 0, 0, time.UTC), false},
		{"at start", time.Date(2024, 10, 4, 22, 0, 0, 0, time.UTC), true},
		{"inside", time.Date(2024, 10, 4, 22, 30, 0, 0, time.UTC), true},
		{"at end", time.Date(2024, 10, 4, 23, 0, 0, 0, time.UTC), true},
		{"after", time.Date(2024, 10, 4, 23, 1, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvaluator(zerolog.Nop(), func() time.Time { return tc.now })
			prefs := DefaultPreferences()
			prefs.QuietHours = &QuietHours{Start: "22:00", End: "23:00", Timezone: "UTC"}
			if got := e.withinQuietHours(prefs); got != tc.want {
				t.Fatalf("withinQuietHours at %s = %v, want %v", tc.now.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestQuietHoursBadTimezoneIgnored(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)
	prefs := DefaultPreferences()
	prefs.QuietHours = &QuietHours{Start: "00:00", End: "23:59", Timezone: "Nowhere/Invalid"}
	if e.withinQuietHours(prefs) {
		t.Fatal("an unparseable timezone must disable the window")
	}
}

func TestDisabledChannelsSkipped(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)

	// Default preferences leave email disabled, so an email-only alert
	// produces nothing.
	alert := inAppAlert()
	alert.NotifyVia = []pricing.Channel{pricing.ChannelEmail}
	e.ProcessAlert("default", dropChange(t, 100, 90), alert)

	if got := len(e.PendingNotifications()); got != 0 {
		t.Fatalf("expected no payloads, got %d", got)
	}
}

func TestPendingAccumulateAndClear(t *testing.T) {
	e := NewEvaluator(zerolog.Nop(), nil)
	e.ProcessAlert("default", dropChange(t, 100, 90), inAppAlert())
	e.ProcessAlert("default", dropChange(t, 50, 40), inAppAlert())

	if got := len(e.PendingNotifications()); got != 2 {
		t.Fatalf("expected 2 pending payloads, got %d", got)
	}

	e.ClearNotifications()
	if got := len(e.PendingNotifications()); got != 0 {
		t.Fatalf("expected empty queue after clear, got %d", got)
	}
}
