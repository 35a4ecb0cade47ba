package storage

// sqlite.go: journal de señales y estado del motor en SQLite.
//
// Tablas:
//   - `signals`: una fila por señal ejecutada (BUY/SELL), con su fill.
//     Los HOLD no se persisten: no cambian el estado y serían ruido.
//   - `strategy_state`: una fila por mercado (UPSERT) con la memoria del motor.
//   - `position_units`: las unidades abiertas de cada mercado. Se reescriben
//     enteras en cada SaveState junto a `strategy_state`, en una transacción.
//   - `volatility_state`: una fila por mercado con la N suavizada y las dos
//     últimas barras, para no resembrar N al reiniciar.
//   - Prune al arrancar: señales de más de 365 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
    id          TEXT PRIMARY KEY,
    market      TEXT    NOT NULL,
    action      TEXT    NOT NULL,
    buy_type    TEXT    NOT NULL DEFAULT '',
    price       REAL    NOT NULL,
    quantity    INTEGER NOT NULL,
    n           REAL    NOT NULL DEFAULT 0,
    trade_date  TEXT    NOT NULL,
    reason      TEXT    NOT NULL DEFAULT '',
    unit_number INTEGER NOT NULL DEFAULT 0,
    system      TEXT    NOT NULL DEFAULT 'UNSET',
    profit_rate REAL    NOT NULL DEFAULT 0,
    fill_id     TEXT,
    fill_price  REAL,
    fill_qty    INTEGER,
    fill_fee    REAL,
    executed_at TEXT,
    created_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_state (
    market                TEXT PRIMARY KEY,
    last_trade_profitable TEXT NOT NULL DEFAULT 'UNKNOWN',
    entry_system          TEXT NOT NULL DEFAULT 'UNSET',
    unit_percent          REAL NOT NULL,
    updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS position_units (
    market      TEXT    NOT NULL,
    unit_number INTEGER NOT NULL,
    price       REAL    NOT NULL,
    quantity    INTEGER NOT NULL,
    trade_date  TEXT    NOT NULL,
    PRIMARY KEY (market, unit_number)
);

CREATE TABLE IF NOT EXISTS volatility_state (
    market     TEXT PRIMARY KEY,
    period     INTEGER NOT NULL,
    n          REAL    NOT NULL,
    base       REAL    NOT NULL DEFAULT 0,
    has_base   INTEGER NOT NULL DEFAULT 0,
    prev_date  TEXT    NOT NULL,
    prev_high  REAL    NOT NULL,
    prev_low   REAL    NOT NULL,
    prev_close REAL    NOT NULL,
    last_date  TEXT    NOT NULL,
    last_high  REAL    NOT NULL,
    last_low   REAL    NOT NULL,
    last_close REAL    NOT NULL,
    updated_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_market_at ON signals(market, created_at);
CREATE INDEX IF NOT EXISTS idx_signals_at        ON signals(created_at);
`

const retentionSignals = 365 * 24 * time.Hour

// timeLayout es de ancho fijo y siempre UTC, así que el orden lexicográfico
// de la columna coincide con el cronológico.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia señales antiguas.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer; además :memory: es por conexión
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db, now: time.Now}
	j.pruneOld(context.Background())
	return j, nil
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina señales antiguas para mantener la DB ligera.
// El estado no se poda nunca: es la campaña abierta.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := formatTime(j.now().Add(-retentionSignals))
	j.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < ?`, cutoff)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
