package domain

// System identifica qué sistema de ruptura abrió la campaña.
type System int

const (
	SystemUnset System = iota
	System1
	System2
)

// String devuelve la etiqueta usada en logs, razones y persistencia.
func (s System) String() string {
	switch s {
	case System1:
		return "SYSTEM1"
	case System2:
		return "SYSTEM2"
	default:
		return "UNSET"
	}
}

// ParseSystem es la inversa de String. Etiquetas desconocidas → SystemUnset, false.
func ParseSystem(s string) (System, bool) {
	switch s {
	case "SYSTEM1":
		return System1, true
	case "SYSTEM2":
		return System2, true
	case "UNSET", "":
		return SystemUnset, true
	default:
		return SystemUnset, false
	}
}

// Outcome es la memoria tri-estado del resultado de la campaña anterior.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeProfitable
	OutcomeUnprofitable
)

// String devuelve la etiqueta usada en logs y persistencia.
func (o Outcome) String() string {
	switch o {
	case OutcomeProfitable:
		return "PROFITABLE"
	case OutcomeUnprofitable:
		return "UNPROFITABLE"
	default:
		return "UNKNOWN"
	}
}

// ParseOutcome es la inversa de String.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "PROFITABLE":
		return OutcomeProfitable, true
	case "UNPROFITABLE":
		return OutcomeUnprofitable, true
	case "UNKNOWN", "":
		return OutcomeUnknown, true
	default:
		return OutcomeUnknown, false
	}
}

// PositionUnit es una compra discreta dentro de una campaña.
// Solo la crea el ledger; fuera de él se manejan copias.
type PositionUnit struct {
	UnitNumber int     // 1..n dentro de la campaña, en orden de alta
	Price      float64 // precio de entrada (> 0)
	Quantity   int64   // cantidad entera (> 0)
	TradeDate  string  // timestamp ISO-8601
}

// Value devuelve price × quantity.
func (u PositionUnit) Value() float64 {
	return u.Price * float64(u.Quantity)
}

// CampaignResult resume una campaña que acaba de cerrarse.
type CampaignResult struct {
	AverageEntry float64
	ExitPrice    float64
	Quantity     int64
	Units        int
	ProfitRate   float64 // % realizado sobre la entrada media
	Profitable   bool    // exit > entrada media (igual NO es rentable)
}

// StrategySnapshot es el estado exportable de un motor Turtle para un instrumento.
// Permite persistir y restaurar el estado entre ejecuciones del proceso.
type StrategySnapshot struct {
	Units               []PositionUnit
	LastTradeProfitable Outcome
	EntrySystem         System
	UnitPercent         float64
}

// VolatilitySnapshot es el estado exportable de un NTracker: la N suavizada,
// la base del último pliegue y las dos barras más recientes que la produjeron.
type VolatilitySnapshot struct {
	Period  int
	N       float64
	Base    float64 // N en la penúltima barra; válido si HasBase
	HasBase bool
	Prev    PriceBar
	Last    PriceBar
}
