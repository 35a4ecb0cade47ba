package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// SaveSignal persiste una señal ejecutada. Si rec.ID está vacío se genera un UUID;
// si rec.CreatedAt es cero se usa la hora actual.
func (j *SQLiteJournal) SaveSignal(ctx context.Context, rec domain.SignalRecord) error {
	if rec.Market == "" {
		return fmt.Errorf("storage.SaveSignal: %w", domain.Invalid("market", "must not be empty"))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = j.now()
	}

	var (
		fillID, executedAt sql.NullString
		fillPrice, fillFee sql.NullFloat64
		fillQty            sql.NullInt64
	)
	if f := rec.Fill; f != nil {
		fillID = sql.NullString{String: f.ID, Valid: true}
		fillPrice = sql.NullFloat64{Float64: f.Price, Valid: true}
		fillQty = sql.NullInt64{Int64: f.Quantity, Valid: true}
		fillFee = sql.NullFloat64{Float64: f.Fee, Valid: true}
		executedAt = sql.NullString{String: formatTime(f.ExecutedAt), Valid: true}
	}

	s := rec.Signal
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO signals
			(id, market, action, buy_type, price, quantity, n, trade_date, reason,
			 unit_number, system, profit_rate,
			 fill_id, fill_price, fill_qty, fill_fee, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Market, string(s.Action), string(s.Type), s.Price, s.Quantity, s.N,
		s.TradeDate, s.Reason, s.UnitNumber, s.System.String(), s.ProfitRate,
		fillID, fillPrice, fillQty, fillFee, executedAt, formatTime(rec.CreatedAt),
	); err != nil {
		return fmt.Errorf("storage.SaveSignal: insert %s: %w", rec.ID, err)
	}
	return nil
}

// GetSignals devuelve las señales registradas entre from y to (inclusive),
// de la más antigua a la más reciente. market vacío = todos los mercados.
func (j *SQLiteJournal) GetSignals(ctx context.Context, market string, from, to time.Time) ([]domain.SignalRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, market, action, buy_type, price, quantity, n, trade_date, reason,
		       unit_number, system, profit_rate,
		       fill_id, fill_price, fill_qty, fill_fee, executed_at, created_at
		FROM signals
		WHERE (? = '' OR market = ?) AND created_at BETWEEN ? AND ?
		ORDER BY created_at ASC, rowid ASC
	`, market, market, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetSignals: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetSignals: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanSignal(rows *sql.Rows) (domain.SignalRecord, error) {
	var (
		rec                     domain.SignalRecord
		action, buyType, system string
		createdAt               string
		fillID, executedAt      sql.NullString
		fillPrice, fillFee      sql.NullFloat64
		fillQty                 sql.NullInt64
	)
	s := &rec.Signal
	if err := rows.Scan(
		&rec.ID, &rec.Market, &action, &buyType, &s.Price, &s.Quantity, &s.N,
		&s.TradeDate, &s.Reason, &s.UnitNumber, &system, &s.ProfitRate,
		&fillID, &fillPrice, &fillQty, &fillFee, &executedAt, &createdAt,
	); err != nil {
		return rec, fmt.Errorf("scan row: %w", err)
	}

	s.Action = domain.Action(action)
	s.Type = domain.BuyType(buyType)
	sys, ok := domain.ParseSystem(system)
	if !ok {
		return rec, fmt.Errorf("signal %s: unknown system %q", rec.ID, system)
	}
	s.System = sys

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, fmt.Errorf("signal %s: created_at: %w", rec.ID, err)
	}

	if fillID.Valid {
		f := &domain.Fill{
			ID:       fillID.String,
			Market:   rec.Market,
			Action:   s.Action,
			Price:    fillPrice.Float64,
			Quantity: fillQty.Int64,
			Fee:      fillFee.Float64,
		}
		if executedAt.Valid {
			if f.ExecutedAt, err = parseTime(executedAt.String); err != nil {
				return rec, fmt.Errorf("signal %s: executed_at: %w", rec.ID, err)
			}
		}
		rec.Fill = f
	}
	return rec, nil
}
