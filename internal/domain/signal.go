package domain

import "time"

// Action es la decisión de un ciclo de evaluación.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// BuyType distingue la entrada inicial de una unidad de pyramiding.
// Solo está presente cuando Action == ActionBuy.
type BuyType string

const (
	BuyInitial BuyType = "INITIAL"
	BuyPyramid BuyType = "PYRAMID"
)

// TradeSignal es la salida del motor para un ciclo. No tiene ciclo de vida propio.
type TradeSignal struct {
	Action     Action
	Type       BuyType // vacío salvo en BUY
	Price      float64
	Quantity   int64
	N          float64
	TradeDate  string
	Reason     string
	UnitNumber int     // número de la unidad añadida en BUY
	System     System  // sistema activo de la campaña
	ProfitRate float64 // % realizado, solo en SELL
}

// IsTrade devuelve true si la señal requiere ejecutar una orden.
func (s TradeSignal) IsTrade() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}

// Label devuelve "BUY/INITIAL", "BUY/PYRAMID", "SELL" o "HOLD".
func (s TradeSignal) Label() string {
	if s.Action == ActionBuy && s.Type != "" {
		return string(s.Action) + "/" + string(s.Type)
	}
	return string(s.Action)
}

// Fill es la ejecución de una señal reportada por el executor.
type Fill struct {
	ID         string
	Market     string
	Action     Action
	Price      float64
	Quantity   int64
	Fee        float64
	ExecutedAt time.Time
}

// CycleReport es lo que produce un ciclo de trading para un mercado.
type CycleReport struct {
	Market      string
	Signal      TradeSignal
	Fill        *Fill
	Units       int
	UnitPercent float64
	Capital     float64
	Err         error
	At          time.Time
}

// SignalRecord es una señal ejecutada tal y como queda en el journal.
type SignalRecord struct {
	ID        string
	Market    string
	Signal    TradeSignal
	Fill      *Fill
	CreatedAt time.Time
}
