package trader

// concurrent.go: worker pool para evaluar varios mercados en paralelo.
//
// Cada mercado es un trabajo; un mercado nunca se evalúa dos veces en el mismo
// ciclo, así que el motor de cada uno sigue teniendo un único dueño.

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// evaluateConcurrent evalúa todos los instrumentos usando un worker pool y
// devuelve los informes en el mismo orden que instruments.
//
// Si workers <= 0 usa un worker por instrumento: el trabajo está dominado por
// la latencia de red y el rate limiter del cliente ya acota la presión.
func evaluateConcurrent(
	ctx context.Context,
	instruments []*instrument,
	workers int,
	eval func(context.Context, *instrument) domain.CycleReport,
) []domain.CycleReport {
	if workers <= 0 || workers > len(instruments) {
		workers = len(instruments)
	}

	reports := make([]domain.CycleReport, len(instruments))
	workCh := make(chan int, len(instruments))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				reports[idx] = eval(ctx, instruments[idx])
			}
		}()
	}

	for i := range instruments {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	slog.Debug("concurrent evaluation complete",
		"markets", len(instruments),
		"workers", workers,
	)
	return reports
}
