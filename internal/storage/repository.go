package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertObservationSQL = `INSERT INTO price_observations (
        tld,
        old_price,
        new_price,
        price_change,
        percentage_change,
        observed_at,
        domain_count,
        sources
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (tld, observed_at) DO UPDATE
    SET
        old_price         = EXCLUDED.old_price,
        new_price         = EXCLUDED.new_price,
        price_change      = EXCLUDED.price_change,
        percentage_change = EXCLUDED.percentage_change,
        domain_count      = EXCLUDED.domain_count,
        sources           = EXCLUDED.sources;`

	listRecentObservationsSQL = `SELECT
        tld,
        old_price,
        new_price,
        price_change,
        percentage_change,
        observed_at,
        domain_count,
        sources,
        created_at
    FROM price_observations
    ORDER BY observed_at DESC
    LIMIT $1;`

	listObservationsForTLDSQL = `SELECT
        tld,
        old_price,
        new_price,
        price_change,
        percentage_change,
        observed_at,
        domain_count,
        sources,
        created_at
    FROM price_observations
    WHERE lower(tld) = lower($1)
    ORDER BY observed_at;`

	countObservationsSQL = `SELECT COUNT(*) FROM price_observations;`

	insertTriggeredAlertSQL = `INSERT INTO triggered_alerts (
        tld,
        user_id,
        alert_type,
        priority,
        price_change,
        percentage_change,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, tld, user_id, alert_type, priority, price_change, percentage_change, channels, created_at;`

	listRecentTriggeredAlertsSQL = `SELECT
        id,
        tld,
        user_id,
        alert_type,
        priority,
        price_change,
        percentage_change,
        channels,
        created_at
    FROM triggered_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteTriggeredAlertsBeforeSQL = `DELETE FROM triggered_alerts WHERE created_at < $1;`
)

// ObservationStore defines operations for price observation persistence.
type ObservationStore interface {
	UpsertObservation(ctx context.Context, obs PriceObservation) error
	ListRecentObservations(ctx context.Context, limit int) ([]PriceObservation, error)
	ListObservationsForTLD(ctx context.Context, tld string) ([]PriceObservation, error)
	CountObservations(ctx context.Context) (int64, error)
}

// AlertLogStore defines operations for triggered-alert auditing.
type AlertLogStore interface {
	InsertTriggeredAlert(ctx context.Context, alert TriggeredAlert) (TriggeredAlert, error)
	ListRecentTriggeredAlerts(ctx context.Context, limit int) ([]TriggeredAlert, error)
	DeleteTriggeredAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to observations and triggered alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertObservation persists or updates a price observation.
func (s *Store) UpsertObservation(ctx context.Context, obs PriceObservation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var domainCount interface{}
	if obs.DomainCount != nil {
		domainCount = *obs.DomainCount
	}

	_, execErr := pool.Exec(ctx, upsertObservationSQL,
		obs.TLD,
		obs.OldPrice.String(),
		obs.NewPrice.String(),
		obs.PriceChange.String(),
		obs.PercentageChange.String(),
		obs.ObservedAt,
		domainCount,
		obs.Sources,
	)
	if execErr != nil {
		return fmt.Errorf("upsert observation: %w", execErr)
	}
	return nil
}

// ListRecentObservations lists the most recent observations ordered by
// descending observation date.
func (s *Store) ListRecentObservations(ctx context.Context, limit int) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentObservationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, limit)
}

// ListObservationsForTLD lists all observations for one TLD ascending by
// observation date.
func (s *Store) ListObservationsForTLD(ctx context.Context, tld string) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsForTLDSQL, tld)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations for tld: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// CountObservations counts stored observations.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

func collectObservations(rows pgx.Rows, capacity int) ([]PriceObservation, error) {
	observations := make([]PriceObservation, 0, capacity)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

// InsertTriggeredAlert persists an alert emission.
func (s *Store) InsertTriggeredAlert(ctx context.Context, alert TriggeredAlert) (TriggeredAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return TriggeredAlert{}, err
	}

	row := pool.QueryRow(ctx, insertTriggeredAlertSQL,
		alert.TLD,
		alert.UserID,
		alert.AlertType,
		alert.Priority,
		alert.PriceChange.String(),
		alert.PercentageChange.String(),
		alert.Channels,
	)

	rec, scanErr := scanTriggeredAlert(row)
	if scanErr != nil {
		return TriggeredAlert{}, fmt.Errorf("insert triggered alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentTriggeredAlerts lists most recent triggered alerts.
func (s *Store) ListRecentTriggeredAlerts(ctx context.Context, limit int) ([]TriggeredAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTriggeredAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent triggered alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]TriggeredAlert, 0, limit)
	for rows.Next() {
		rec, scanErr := scanTriggeredAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteTriggeredAlertsBefore deletes historical triggered alerts.
func (s *Store) DeleteTriggeredAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteTriggeredAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete triggered alerts before: %w", execErr)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (PriceObservation, error) {
	var (
		tld           string
		oldStr        string
		newStr        string
		changeStr     string
		percentageStr string
		observedAt    time.Time
		domainCount   sql.NullInt64
		sources       []string
		createdAt     time.Time
	)

	if err := row.Scan(
		&tld,
		&oldStr,
		&newStr,
		&changeStr,
		&percentageStr,
		&observedAt,
		&domainCount,
		&sources,
		&createdAt,
	); err != nil {
		return PriceObservation{}, err
	}

	obs := PriceObservation{
		TLD:        tld,
		ObservedAt: observedAt,
		Sources:    sources,
		CreatedAt:  createdAt,
	}

	var convErr error
	if obs.OldPrice, convErr = decimal.NewFromString(oldStr); convErr != nil {
		return PriceObservation{}, fmt.Errorf("parse old price: %w", convErr)
	}
	if obs.NewPrice, convErr = decimal.NewFromString(newStr); convErr != nil {
		return PriceObservation{}, fmt.Errorf("parse new price: %w", convErr)
	}
	if obs.PriceChange, convErr = decimal.NewFromString(changeStr); convErr != nil {
		return PriceObservation{}, fmt.Errorf("parse price change: %w", convErr)
	}
	if obs.PercentageChange, convErr = decimal.NewFromString(percentageStr); convErr != nil {
		return PriceObservation{}, fmt.Errorf("parse percentage change: %w", convErr)
	}

	if domainCount.Valid {
		value := domainCount.Int64
		obs.DomainCount = &value
	}

	return obs, nil
}

func scanTriggeredAlert(row rowScanner) (TriggeredAlert, error) {
	var (
		rec           TriggeredAlert
		changeStr     string
		percentageStr string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.TLD,
		&rec.UserID,
		&rec.AlertType,
		&rec.Priority,
		&changeStr,
		&percentageStr,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return TriggeredAlert{}, err
	}

	var convErr error
	if rec.PriceChange, convErr = decimal.NewFromString(changeStr); convErr != nil {
		return TriggeredAlert{}, fmt.Errorf("parse price change: %w", convErr)
	}
	if rec.PercentageChange, convErr = decimal.NewFromString(percentageStr); convErr != nil {
		return TriggeredAlert{}, fmt.Errorf("parse percentage change: %w", convErr)
	}

	return rec, nil
}
