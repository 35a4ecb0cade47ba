package ports

import (
	"context"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// OrderExecutor ejecuta las señales BUY/SELL del motor.
// El motor nunca lo llama directamente: lo hace la capa de aplicación
// después de Evaluate.
type OrderExecutor interface {
	// Execute lleva a cabo sig en market y devuelve el fill resultante.
	// Una señal HOLD es un error de programación.
	Execute(ctx context.Context, market string, sig domain.TradeSignal) (domain.Fill, error)
}
