package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// Journal persiste las señales emitidas y el estado del motor por mercado.
type Journal interface {
	// SaveSignal registra una señal ejecutada (y su fill, si lo hubo).
	SaveSignal(ctx context.Context, rec domain.SignalRecord) error

	// GetSignals devuelve las señales de market registradas en el rango dado,
	// de la más antigua a la más reciente. market vacío = todos los mercados.
	GetSignals(ctx context.Context, market string, from, to time.Time) ([]domain.SignalRecord, error)

	// SaveState reemplaza el snapshot guardado de market.
	SaveState(ctx context.Context, market string, snap domain.StrategySnapshot) error

	// LoadState devuelve el último snapshot de market; false si no hay ninguno.
	LoadState(ctx context.Context, market string) (domain.StrategySnapshot, bool, error)

	// SaveVolatility reemplaza el estado de N guardado de market.
	SaveVolatility(ctx context.Context, market string, snap domain.VolatilitySnapshot) error

	// LoadVolatility devuelve el último estado de N de market; false si no hay ninguno.
	LoadVolatility(ctx context.Context, market string) (domain.VolatilitySnapshot, bool, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
