package domain

import "gonum.org/v1/gonum/floats"

// ChannelHigh devuelve el cierre máximo de las últimas `window` posiciones.
// Se usa como umbral de entrada por ruptura (breakout).
func ChannelHigh(closes []float64, window int) (float64, error) {
	tail, err := Trailing(closes, window)
	if err != nil {
		return 0, err
	}
	return floats.Max(tail), nil
}

// ChannelLow devuelve el cierre mínimo de las últimas `window` posiciones.
// Se usa como umbral de salida del sistema activo.
func ChannelLow(closes []float64, window int) (float64, error) {
	tail, err := Trailing(closes, window)
	if err != nil {
		return 0, err
	}
	return floats.Min(tail), nil
}

// Trailing devuelve las últimas n posiciones de closes.
// Falla si no hay suficientes datos o algún cierre no es positivo:
// una ruptura calculada sobre historia corta sería engañosa.
func Trailing(closes []float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, Invalid("window", "must be >= 1, got %d", n)
	}
	if len(closes) < n {
		return nil, Invalid("closes", "need at least %d closes, got %d", n, len(closes))
	}
	tail := closes[len(closes)-n:]
	for i, c := range tail {
		if !IsPositive(c) {
			return nil, Invalid("closes", "close #%d must be a positive finite number, got %v", len(closes)-n+i, c)
		}
	}
	return tail, nil
}
