package strategy

import "github.com/alejandrodnm/turtlebot/internal/domain"

// Params configura un motor Turtle. Todos los valores se fijan al construirlo.
type Params struct {
	System1EntryPeriod int // ruptura de entrada, sistema 1 (días)
	System1ExitPeriod  int // canal de salida, sistema 1
	System2EntryPeriod int // ruptura de entrada, sistema 2
	System2ExitPeriod  int // canal de salida, sistema 2
	NPeriod            int // ventana de la volatilidad N

	MaxUnits        int     // unidades máximas por campaña
	BaseUnitPercent float64 // % de capital por unidad
	PyramidN        float64 // paso de pyramiding en múltiplos de N
	StopN           float64 // distancia del stop en múltiplos de N

	// MaxPositionPercent limita el valor de la campaña (a precio de entrada)
	// como % de Input.Equity; al alcanzarlo no se añaden más unidades.
	// 0 = sin límite.
	MaxPositionPercent float64
}

// DefaultParams devuelve los valores clásicos de la estrategia Turtle.
func DefaultParams() Params {
	return Params{
		System1EntryPeriod: 20,
		System1ExitPeriod:  10,
		System2EntryPeriod: 55,
		System2ExitPeriod:  20,
		NPeriod:            20,
		MaxUnits:           4,
		BaseUnitPercent:    2.0,
		PyramidN:           0.5,
		StopN:              2.0,
	}
}

// Validate rechaza periodos o unidades no positivos y multiplicadores negativos.
func (p Params) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"system1_entry_period", p.System1EntryPeriod},
		{"system1_exit_period", p.System1ExitPeriod},
		{"system2_entry_period", p.System2EntryPeriod},
		{"system2_exit_period", p.System2ExitPeriod},
		{"n_period", p.NPeriod},
		{"max_units", p.MaxUnits},
	}
	for _, f := range periods {
		if f.v < 1 {
			return domain.Invalid(f.name, "must be >= 1, got %d", f.v)
		}
	}
	if !(p.BaseUnitPercent > 0) || p.BaseUnitPercent > 100 {
		return domain.Invalid("base_unit_percent", "must be in (0, 100], got %v", p.BaseUnitPercent)
	}
	if !(p.PyramidN >= 0) {
		return domain.Invalid("pyramid_n", "must be >= 0, got %v", p.PyramidN)
	}
	if !(p.StopN >= 0) {
		return domain.Invalid("stop_n", "must be >= 0, got %v", p.StopN)
	}
	if !(p.MaxPositionPercent >= 0) {
		return domain.Invalid("max_position_percent", "must be >= 0, got %v", p.MaxPositionPercent)
	}
	return nil
}

// EntryPeriod devuelve el periodo de ruptura de entrada del sistema.
func (p Params) EntryPeriod(s domain.System) int {
	if s == domain.System2 {
		return p.System2EntryPeriod
	}
	return p.System1EntryPeriod
}

// ExitPeriod devuelve el periodo del canal de salida del sistema.
func (p Params) ExitPeriod(s domain.System) int {
	if s == domain.System2 {
		return p.System2ExitPeriod
	}
	return p.System1ExitPeriod
}

// HistoryBars es el número de barras que hay que pedir para cubrir todas las
// ventanas del motor y la barra extra de N.
func (p Params) HistoryBars() int {
	return max(p.System1EntryPeriod, p.System1ExitPeriod,
		p.System2EntryPeriod, p.System2ExitPeriod, p.NPeriod+1)
}
