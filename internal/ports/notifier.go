package ports

import (
	"context"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// Notifier presenta el resultado de cada ciclo al usuario.
type Notifier interface {
	// Notify muestra un informe por mercado.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, reports []domain.CycleReport) error
}
