package domain

import (
	"math"
	"time"
)

// PriceBar es una observación de un periodo de trading (normalmente un día).
// Las secuencias de barras van siempre de la más antigua a la más reciente.
type PriceBar struct {
	Date  time.Time // identidad externa de la barra, solo para ordenar
	High  float64
	Low   float64
	Close float64
}

// Validate rechaza precios no positivos, no finitos o high < low.
func (b PriceBar) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{{"high", b.High}, {"low", b.Low}, {"close", b.Close}} {
		if !IsPositive(p.v) {
			return Invalid("bar."+p.name, "must be a positive finite number, got %v (%s)", p.v, b.Date.Format(time.DateOnly))
		}
	}
	if b.High < b.Low {
		return Invalid("bar", "high %v below low %v (%s)", b.High, b.Low, b.Date.Format(time.DateOnly))
	}
	return nil
}

// Closes extrae los cierres en el mismo orden que las barras.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// IsFinite rechaza NaN y ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsPositive es true para números finitos > 0.
func IsPositive(v float64) bool {
	return IsFinite(v) && v > 0
}

// IsNonNegative es true para números finitos ≥ 0.
func IsNonNegative(v float64) bool {
	return IsFinite(v) && v >= 0
}
