package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// SaveState reemplaza el snapshot de market: fila de estado más unidades
// abiertas, todo en una transacción para que nunca quede a medias.
func (j *SQLiteJournal) SaveState(ctx context.Context, market string, snap domain.StrategySnapshot) error {
	if market == "" {
		return fmt.Errorf("storage.SaveState: %w", domain.Invalid("market", "must not be empty"))
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveState: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_state (market, last_trade_profitable, entry_system, unit_percent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(market) DO UPDATE SET
			last_trade_profitable = excluded.last_trade_profitable,
			entry_system          = excluded.entry_system,
			unit_percent          = excluded.unit_percent,
			updated_at            = excluded.updated_at
	`, market, snap.LastTradeProfitable.String(), snap.EntrySystem.String(), snap.UnitPercent, formatTime(j.now())); err != nil {
		return fmt.Errorf("storage.SaveState: upsert %s: %w", market, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM position_units WHERE market = ?`, market); err != nil {
		return fmt.Errorf("storage.SaveState: clear units %s: %w", market, err)
	}

	if len(snap.Units) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO position_units (market, unit_number, price, quantity, trade_date)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveState: prepare: %w", err)
		}
		defer stmt.Close()

		for _, u := range snap.Units {
			if _, err := stmt.ExecContext(ctx, market, u.UnitNumber, u.Price, u.Quantity, u.TradeDate); err != nil {
				return fmt.Errorf("storage.SaveState: insert unit %s #%d: %w", market, u.UnitNumber, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveState: commit: %w", err)
	}
	return nil
}

// LoadState devuelve el snapshot guardado de market. false si nunca se guardó.
// Las invariantes de campaña las valida el motor al restaurar, no aquí.
func (j *SQLiteJournal) LoadState(ctx context.Context, market string) (domain.StrategySnapshot, bool, error) {
	var (
		snap         domain.StrategySnapshot
		last, system string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT last_trade_profitable, entry_system, unit_percent
		FROM strategy_state WHERE market = ?
	`, market).Scan(&last, &system, &snap.UnitPercent)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StrategySnapshot{}, false, nil
	}
	if err != nil {
		return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: %s: %w", market, err)
	}

	var ok bool
	if snap.LastTradeProfitable, ok = domain.ParseOutcome(last); !ok {
		return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: %s: unknown outcome %q", market, last)
	}
	if snap.EntrySystem, ok = domain.ParseSystem(system); !ok {
		return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: %s: unknown system %q", market, system)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT unit_number, price, quantity, trade_date
		FROM position_units WHERE market = ?
		ORDER BY unit_number ASC
	`, market)
	if err != nil {
		return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: query units: %w", err)
	}
	defer rows.Close()

	snap.Units = []domain.PositionUnit{}
	for rows.Next() {
		var u domain.PositionUnit
		if err := rows.Scan(&u.UnitNumber, &u.Price, &u.Quantity, &u.TradeDate); err != nil {
			return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: scan unit: %w", err)
		}
		snap.Units = append(snap.Units, u)
	}
	if err := rows.Err(); err != nil {
		return domain.StrategySnapshot{}, false, fmt.Errorf("storage.LoadState: %w", err)
	}
	return snap, true, nil
}
