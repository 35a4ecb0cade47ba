package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// adjustStepRate es el tramo de profit rate (%) que mueve el factor de tamaño.
	adjustStepRate = 10.0
	// adjustStepFactor es cuánto cambia el factor por cada tramo completo.
	adjustStepFactor = 0.2
	// minUnitFactor es el suelo del factor tras pérdidas.
	minUnitFactor = 0.2
)

var hundred = decimal.NewFromInt(100)

// UnitQuantity convierte un porcentaje de capital en una cantidad entera de unidades.
//
// Fórmula: qty = floor(capital × unitPercent / 100 / price)
//
// Se calcula en decimal para que el redondeo binario de float64 no reste
// una unidad entera (p.ej. 1000 × 2 / 100 / 20 debe dar exactamente 1).
// Nunca devuelve una cantidad negativa.
func UnitQuantity(capital, price, unitPercent float64) (int64, error) {
	if !IsPositive(price) {
		return 0, Invalid("price", "must be a positive finite number, got %v", price)
	}
	if !IsFinite(capital) || capital < 0 {
		return 0, Invalid("capital", "must be a non-negative finite number, got %v", capital)
	}
	if !IsFinite(unitPercent) || unitPercent < 0 {
		return 0, Invalid("unit_percent", "must be a non-negative finite number, got %v", unitPercent)
	}

	qty := decimal.NewFromFloat(capital).
		Mul(decimal.NewFromFloat(unitPercent)).
		Div(hundred).
		Div(decimal.NewFromFloat(price)).
		Floor()
	if qty.IsNegative() {
		return 0, nil
	}
	return qty.IntPart(), nil
}

// AdjustedUnitPercent devuelve el nuevo porcentaje por unidad tras cerrar una campaña.
//
//   - profitRate ≤ −10: factor = 1 − floor(|rate| / 10) × 0.2, con suelo 0.2 → base × factor
//   - profitRate ≥ +10: factor = 1 + floor(rate / 10) × 0.2 → min(base × factor, base)
//   - resto: current sin cambios
//
// La rama de ganancias queda recortada a base, así que hoy nunca crece por
// encima del tamaño base. Se conserva tal cual hasta que se decida lo contrario.
func AdjustedUnitPercent(base, current, profitRate float64) float64 {
	switch {
	case profitRate <= -adjustStepRate:
		factor := 1 - math.Floor(math.Abs(profitRate)/adjustStepRate)*adjustStepFactor
		return base * math.Max(factor, minUnitFactor)
	case profitRate >= adjustStepRate:
		factor := 1 + math.Floor(profitRate/adjustStepRate)*adjustStepFactor
		return math.Min(base*factor, base)
	default:
		return current
	}
}

// ProfitRate devuelve el resultado porcentual de salir a exit con entrada media avg.
func ProfitRate(avg, exit float64) float64 {
	if avg <= 0 {
		return 0
	}
	return (exit - avg) / avg * 100
}
