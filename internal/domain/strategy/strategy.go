package strategy

import "github.com/alejandrodnm/turtlebot/internal/domain"

// Strategy es el contrato de un motor de decisión para un único instrumento.
// Cada instancia mantiene su propio estado y no debe compartirse entre ciclos
// concurrentes del mismo instrumento.
type Strategy interface {
	// Params devuelve la configuración con la que se construyó el motor.
	Params() Params

	// Evaluate ejecuta un ciclo y devuelve exactamente una señal.
	// Devuelve *domain.ValidationError si los datos de entrada están mal formados.
	Evaluate(in Input) (domain.TradeSignal, error)

	// Snapshot exporta el estado actual para persistirlo.
	Snapshot() domain.StrategySnapshot

	// Restore sustituye el estado por uno previamente exportado.
	Restore(snap domain.StrategySnapshot) error

	// Reset vuelve al estado inicial (sin campaña ni memoria de resultados).
	Reset()
}

// Input son los datos de un ciclo. Cada ventana debe tener exactamente la
// longitud configurada para su sistema: el motor no trunca historia.
type Input struct {
	Price     float64 // precio actual
	N         float64 // volatilidad actual (≥ 0)
	Capital   float64 // capital disponible para dimensionar unidades
	TradeDate string  // ISO-8601; vacío = reloj del motor

	// Equity es el valor total de la cuenta (efectivo + posición). Solo lo usa
	// MaxPositionPercent; 0 = usar Capital.
	Equity float64

	Windows
}

// Windows agrupa los cierres de las cuatro ventanas de ruptura.
type Windows struct {
	System1Entry []float64
	System1Exit  []float64
	System2Entry []float64
	System2Exit  []float64
}

// Windows corta las cuatro ventanas finales exactas a partir de una historia
// de cierres (de más antiguo a más reciente) suficientemente larga.
func (p Params) Windows(closes []float64) (Windows, error) {
	var w Windows
	var err error
	cuts := []struct {
		dst *[]float64
		n   int
	}{
		{&w.System1Entry, p.System1EntryPeriod},
		{&w.System1Exit, p.System1ExitPeriod},
		{&w.System2Entry, p.System2EntryPeriod},
		{&w.System2Exit, p.System2ExitPeriod},
	}
	for _, c := range cuts {
		if *c.dst, err = domain.Trailing(closes, c.n); err != nil {
			return Windows{}, err
		}
	}
	return w, nil
}
