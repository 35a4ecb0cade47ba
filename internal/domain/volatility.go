package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// TrueRange calcula el rango verdadero de cur respecto al cierre anterior.
//
// Fórmula: TR = max(high − low, |high − prevClose|, |low − prevClose|)
func TrueRange(prev, cur PriceBar) float64 {
	return math.Max(cur.High-cur.Low,
		math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// WilderN calcula la volatilidad N (ATR) a partir de exactamente period+1 barras.
// La barra extra es necesaria para el primer true range.
//
// N inicial = media simple de los primeros `period` true ranges.
// Cada TR posterior se incorpora con SmoothN.
//
// Devuelve *ValidationError si len(bars) != period+1; nunca trunca en silencio.
func WilderN(bars []PriceBar, period int) (float64, error) {
	if period < 1 {
		return 0, Invalid("period", "must be >= 1, got %d", period)
	}
	if len(bars) != period+1 {
		return 0, Invalid("bars", "need exactly %d bars for period %d, got %d", period+1, period, len(bars))
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return 0, err
		}
	}

	trs := make([]float64, 0, period)
	for i := 1; i < len(bars); i++ {
		trs = append(trs, TrueRange(bars[i-1], bars[i]))
	}
	return floats.Sum(trs) / float64(period), nil
}

// SmoothN incorpora un nuevo true range con el suavizado de Wilder.
//
// Fórmula: N = ((period − 1) × prevN + TR) / period
func SmoothN(prevN, tr float64, period int) float64 {
	if period < 1 {
		return tr
	}
	p := float64(period)
	return ((p-1)*prevN + tr) / p
}
