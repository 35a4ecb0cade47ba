package strategy

import "github.com/alejandrodnm/turtlebot/internal/domain"

// RiskController owns the adaptive unit size: a base percentage of capital
// and the current percentage after recent campaign outcomes.
type RiskController struct {
	base    float64
	current float64
}

// NewRiskController starts at basePercent.
func NewRiskController(basePercent float64) (*RiskController, error) {
	if !(basePercent > 0) {
		return nil, domain.Invalid("base_unit_percent", "must be > 0, got %v", basePercent)
	}
	return &RiskController{base: basePercent, current: basePercent}, nil
}

// Quantity sizes one unit at the current unit percent.
func (r *RiskController) Quantity(capital, price float64) (int64, error) {
	return domain.UnitQuantity(capital, price, r.current)
}

// AdjustUnitSize applies the realized profit rate (%) of a closed campaign and
// returns the resulting unit percent.
func (r *RiskController) AdjustUnitSize(profitRate float64) float64 {
	r.current = domain.AdjustedUnitPercent(r.base, r.current, profitRate)
	return r.current
}

// UnitPercent is the unit size currently in force.
func (r *RiskController) UnitPercent() float64 { return r.current }

// BasePercent is the configured unit size.
func (r *RiskController) BasePercent() float64 { return r.base }

// Reset goes back to the base unit size.
func (r *RiskController) Reset() { r.current = r.base }

// restore loads a persisted unit percent. A value above the base (the base was
// lowered since it was saved) is capped at the base.
func (r *RiskController) restore(unitPercent float64) error {
	if !(unitPercent > 0) {
		return domain.Violation("unit percent must be > 0, got %v", unitPercent)
	}
	r.current = min(unitPercent, r.base)
	return nil
}
