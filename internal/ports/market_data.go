package ports

import (
	"context"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// MarketData obtiene velas y precio actual de un exchange.
type MarketData interface {
	// Candles devuelve las últimas count velas diarias de market,
	// ordenadas de la más antigua a la más reciente.
	Candles(ctx context.Context, market string, count int) ([]domain.PriceBar, error)

	// CurrentPrice devuelve el último precio negociado de market.
	CurrentPrice(ctx context.Context, market string) (float64, error)
}

// Account expone el saldo disponible para dimensionar unidades.
type Account interface {
	// Balance devuelve el saldo disponible de currency (p.ej. "KRW").
	Balance(ctx context.Context, currency string) (float64, error)
}
