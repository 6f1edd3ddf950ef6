// Package service is the single access point for TLD price data. It hides
// remote failures behind a TTL cache seeded with embedded fallback data,
// evaluates alert rules, and optionally persists observations.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"tldwatch/internal/fallback"
	"tldwatch/internal/fetcher"
	"tldwatch/internal/monitoring"
	"tldwatch/internal/notification"
	"tldwatch/internal/pricing"
	"tldwatch/internal/storage"
)

// ErrTLDNotFound indicates an operation referenced a TLD that is not in
// the cache.
var ErrTLDNotFound = errors.New("tld not found")

// Options tune the data service.
type Options struct {
	CacheTTL time.Duration
	Clock    func() time.Time
}

// DataService caches price changes keyed by TLD with a single staleness
// clock. Read operations never surface errors; they degrade to cached or
// fallback data. Write operations propagate failures.
type DataService struct {
	api          fetcher.PriceAPI
	notifier     *notification.Evaluator
	monitor      *monitoring.Aggregator
	observations storage.ObservationStore
	alertLog     storage.AlertLogStore
	logger       zerolog.Logger
	ttl          time.Duration
	clock        func() time.Time

	mu          sync.RWMutex
	cache       map[string]*pricing.PriceChange
	lastUpdated time.Time
}

// New constructs a DataService seeded with the embedded fallback data.
// The seed is served until the first successful refresh; the staleness
// clock starts expired so the first read attempts the remote API.
func New(api fetcher.PriceAPI, notifier *notification.Evaluator, monitor *monitoring.Aggregator, observations storage.ObservationStore, alertLog storage.AlertLogStore, opts Options, logger zerolog.Logger) *DataService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &DataService{
		api:          api,
		notifier:     notifier,
		monitor:      monitor,
		observations: observations,
		alertLog:     alertLog,
		logger:       logger.With().Str("component", "data_service").Logger(),
		ttl:          opts.CacheTTL,
		clock:        clock,
		cache:        make(map[string]*pricing.PriceChange),
	}

	for _, pc := range fallback.PriceChanges(clock()) {
		s.cache[cacheKey(pc.TLD)] = pc
	}

	return s
}

func cacheKey(tld string) string {
	return strings.ToLower(tld)
}

// GetPriceChanges returns the cached entries while they are fresh,
// otherwise refreshes from the remote API. Failures and empty payloads
// fall back to the current cache contents; this path never errors.
func (s *DataService) GetPriceChanges(ctx context.Context) []*pricing.PriceChange {
	s.mu.RLock()
	fresh := !s.lastUpdated.IsZero() && s.clock().Sub(s.lastUpdated) < s.ttl && len(s.cache) > 0
	s.mu.RUnlock()

	if fresh {
		s.trackCacheHit()
		return s.snapshot()
	}

	if changes, err := s.refresh(ctx); err == nil {
		return changes
	} else {
		s.logger.Error().Err(err).Msg("refresh failed; serving cached data")
	}
	return s.snapshot()
}

// Refresh fetches the remote price changes regardless of cache age and
// replaces the cache on success. Used by the scheduled sweep.
func (s *DataService) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

func (s *DataService) refresh(ctx context.Context) ([]*pricing.PriceChange, error) {
	records, err := s.api.PriceChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch price changes: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("remote returned empty payload")
	}

	now := s.clock()
	changes := make([]*pricing.PriceChange, 0, len(records))

	s.mu.Lock()
	for _, rec := range records {
		pc := pricing.FromRecord(rec, now)
		// Carry attached alerts across refreshes.
		if prev, ok := s.cache[cacheKey(pc.TLD)]; ok && len(prev.Alerts) > 0 {
			pc.Alerts = prev.Alerts
		}
		s.cache[cacheKey(pc.TLD)] = pc
		changes = append(changes, pc)
	}
	s.lastUpdated = now
	s.mu.Unlock()

	s.persistObservations(ctx, changes)

	s.logger.Info().Int("count", len(changes)).Msg("price cache refreshed")
	return changes, nil
}

func (s *DataService) persistObservations(ctx context.Context, changes []*pricing.PriceChange) {
	if s.observations == nil {
		return
	}
	for _, pc := range changes {
		obs := storage.PriceObservation{
			TLD:              pc.TLD,
			OldPrice:         pc.OldPrice,
			NewPrice:         pc.NewPrice,
			PriceChange:      pc.PriceChange,
			PercentageChange: pc.PercentageChange,
			ObservedAt:       pc.Date,
			DomainCount:      pc.DomainCount,
			Sources:          pc.Sources,
		}
		if err := s.observations.UpsertObservation(ctx, obs); err != nil {
			s.logger.Error().Err(err).Str("tld", pc.TLD).Msg("failed to persist observation")
		}
	}
}

// SearchTLD returns entries whose TLD contains the query, case
// insensitively. The remote search is preferred; an empty or failed
// response falls back to filtering the cache with the same predicate.
func (s *DataService) SearchTLD(ctx context.Context, query string) []*pricing.PriceChange {
	records, err := s.api.Search(ctx, query)
	if err == nil && len(records) > 0 {
		now := s.clock()
		changes := make([]*pricing.PriceChange, 0, len(records))
		for _, rec := range records {
			changes = append(changes, pricing.FromRecord(rec, now))
		}
		return changes
	}
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("remote search failed; filtering cache")
	}

	needle := strings.ToLower(query)
	matches := make([]*pricing.PriceChange, 0)
	for _, pc := range s.snapshot() {
		if strings.Contains(strings.ToLower(pc.TLD), needle) {
			matches = append(matches, pc)
		}
	}
	return matches
}

// GetPriceHistory fetches the remote history for a TLD, replaces the
// cached entity's history on success, and returns the stored points. On
// failure it returns whatever history the cache already holds.
func (s *DataService) GetPriceHistory(ctx context.Context, tld string) []pricing.PricePoint {
	points, err := s.api.History(ctx, tld)
	if err != nil {
		s.logger.Error().Err(err).Str("tld", tld).Msg("history fetch failed; serving cached history")
		return s.cachedHistory(tld)
	}

	now := s.clock()
	history := make([]pricing.PricePoint, 0, len(points))
	for _, pt := range points {
		rec := pricing.FromRecord(pricing.Record{TLD: tld, History: []pricing.PointRecord{pt}}, now)
		history = append(history, rec.History...)
	}

	s.mu.Lock()
	if cached, ok := s.cache[cacheKey(tld)]; ok {
		updated := *cached
		updated.History = history
		s.cache[cacheKey(tld)] = &updated
	}
	s.mu.Unlock()

	return history
}

func (s *DataService) cachedHistory(tld string) []pricing.PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cached, ok := s.cache[cacheKey(tld)]; ok {
		out := make([]pricing.PricePoint, len(cached.History))
		copy(out, cached.History)
		return out
	}
	return []pricing.PricePoint{}
}

// SetAlert attaches an alert rule to a tracked TLD and persists it
// remotely. A TLD absent from the cache fails with ErrTLDNotFound before
// any network call.
func (s *DataService) SetAlert(ctx context.Context, tld string, alert pricing.PriceAlert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	cached, ok := s.cache[cacheKey(tld)]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTLDNotFound, tld)
	}
	updated := *cached
	updated.Alerts = append(append([]pricing.PriceAlert(nil), cached.Alerts...), alert)
	s.cache[cacheKey(tld)] = &updated
	s.mu.Unlock()

	if err := s.api.CreateAlert(ctx, tld, alert); err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}
	return nil
}

// CheckAlerts evaluates every enabled alert attached to cached entries
// and hands fired ones to the notification evaluator for the given user.
func (s *DataService) CheckAlerts(ctx context.Context, userID string) {
	for _, pc := range s.snapshot() {
		for _, alert := range pc.Alerts {
			if !pc.ShouldNotify(alert) {
				continue
			}
			if s.notifier != nil {
				s.notifier.ProcessAlert(userID, pc, alert)
			}
			s.auditTriggeredAlert(ctx, userID, pc, alert)
		}
	}
}

func (s *DataService) auditTriggeredAlert(ctx context.Context, userID string, pc *pricing.PriceChange, alert pricing.PriceAlert) {
	if s.alertLog == nil {
		return
	}
	channels := make([]string, 0, len(alert.NotifyVia))
	for _, ch := range alert.NotifyVia {
		channels = append(channels, string(ch))
	}
	record := storage.TriggeredAlert{
		TLD:              pc.TLD,
		UserID:           userID,
		AlertType:        string(alert.Type),
		Priority:         string(notification.PriorityFor(pc.PercentageChange)),
		PriceChange:      pc.PriceChange,
		PercentageChange: pc.PercentageChange,
		Channels:         channels,
	}
	if _, err := s.alertLog.InsertTriggeredAlert(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("tld", pc.TLD).Msg("failed to audit triggered alert")
	}
}

// ComparedPrice is one entry of a price comparison.
type ComparedPrice struct {
	TLD    string          `json:"tld"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

// ComparePrices fetches each TLD's current price concurrently. A per-TLD
// failure substitutes the cached price for that TLD; results keep the
// input order.
func (s *DataService) ComparePrices(ctx context.Context, tlds []string) []ComparedPrice {
	results := make([]ComparedPrice, len(tlds))

	var wg conc.WaitGroup
	for i, tld := range tlds {
		i, tld := i, tld
		wg.Go(func() {
			price, err := s.api.Price(ctx, tld)
			if err != nil {
				s.logger.Error().Err(err).Str("tld", tld).Msg("price fetch failed; using cached price")
				results[i] = s.cachedPrice(tld)
				return
			}
			results[i] = ComparedPrice{TLD: tld, Price: price, Source: "api"}
		})
	}
	wg.Wait()

	return results
}

func (s *DataService) cachedPrice(tld string) ComparedPrice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cached, ok := s.cache[cacheKey(tld)]; ok {
		return ComparedPrice{TLD: tld, Price: cached.NewPrice, Source: "cache"}
	}
	return ComparedPrice{TLD: tld, Source: "unavailable"}
}

// Lookup returns the cached entity for a TLD.
func (s *DataService) Lookup(tld string) (*pricing.PriceChange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.cache[cacheKey(tld)]
	return pc, ok
}

func (s *DataService) snapshot() []*pricing.PriceChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pricing.PriceChange, 0, len(s.cache))
	for _, pc := range s.cache {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].TLD) < strings.ToLower(out[j].TLD)
	})
	return out
}

func (s *DataService) trackCacheHit() {
	if s.monitor != nil {
		s.monitor.TrackCacheHit()
	}
}
