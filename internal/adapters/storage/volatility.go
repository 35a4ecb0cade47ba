package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// SaveVolatility reemplaza (UPSERT) el estado de N de market.
func (j *SQLiteJournal) SaveVolatility(ctx context.Context, market string, snap domain.VolatilitySnapshot) error {
	if market == "" {
		return fmt.Errorf("storage.SaveVolatility: %w", domain.Invalid("market", "must not be empty"))
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO volatility_state
			(market, period, n, base, has_base,
			 prev_date, prev_high, prev_low, prev_close,
			 last_date, last_high, last_low, last_close, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market) DO UPDATE SET
			period     = excluded.period,
			n          = excluded.n,
			base       = excluded.base,
			has_base   = excluded.has_base,
			prev_date  = excluded.prev_date,
			prev_high  = excluded.prev_high,
			prev_low   = excluded.prev_low,
			prev_close = excluded.prev_close,
			last_date  = excluded.last_date,
			last_high  = excluded.last_high,
			last_low   = excluded.last_low,
			last_close = excluded.last_close,
			updated_at = excluded.updated_at
	`, market, snap.Period, snap.N, snap.Base, snap.HasBase,
		formatTime(snap.Prev.Date), snap.Prev.High, snap.Prev.Low, snap.Prev.Close,
		formatTime(snap.Last.Date), snap.Last.High, snap.Last.Low, snap.Last.Close,
		formatTime(j.now()),
	); err != nil {
		return fmt.Errorf("storage.SaveVolatility: upsert %s: %w", market, err)
	}
	return nil
}

// LoadVolatility devuelve el estado de N de market. false si nunca se guardó.
func (j *SQLiteJournal) LoadVolatility(ctx context.Context, market string) (domain.VolatilitySnapshot, bool, error) {
	var (
		snap               domain.VolatilitySnapshot
		prevDate, lastDate string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT period, n, base, has_base,
		       prev_date, prev_high, prev_low, prev_close,
		       last_date, last_high, last_low, last_close
		FROM volatility_state WHERE market = ?
	`, market).Scan(
		&snap.Period, &snap.N, &snap.Base, &snap.HasBase,
		&prevDate, &snap.Prev.High, &snap.Prev.Low, &snap.Prev.Close,
		&lastDate, &snap.Last.High, &snap.Last.Low, &snap.Last.Close,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VolatilitySnapshot{}, false, nil
	}
	if err != nil {
		return domain.VolatilitySnapshot{}, false, fmt.Errorf("storage.LoadVolatility: %s: %w", market, err)
	}

	if snap.Prev.Date, err = parseTime(prevDate); err != nil {
		return domain.VolatilitySnapshot{}, false, fmt.Errorf("storage.LoadVolatility: %s: prev_date: %w", market, err)
	}
	if snap.Last.Date, err = parseTime(lastDate); err != nil {
		return domain.VolatilitySnapshot{}, false, fmt.Errorf("storage.LoadVolatility: %s: last_date: %w", market, err)
	}
	return snap, true, nil
}
