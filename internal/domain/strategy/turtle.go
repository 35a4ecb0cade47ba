package strategy

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

const noSignalReason = "No signal"

// Turtle is the decision engine for one instrument. Each cycle it checks, in
// this order: exit (stop or channel) when a campaign is open, then pyramid;
// or entry by breakout when flat. It returns exactly one signal and applies
// the resulting ledger mutation before returning.
//
// Turtle has no internal locking: the caller must not start a new cycle for
// the same instrument before the previous one returned.
type Turtle struct {
	params Params
	ledger Ledger
	risk   *RiskController
	now    func() time.Time
}

// Option personaliza un Turtle.
type Option func(*Turtle)

// WithClock sets the clock used when an Input carries no trade date.
func WithClock(now func() time.Time) Option {
	return func(t *Turtle) { t.now = now }
}

// NewTurtle builds a flat engine with the given parameters.
func NewTurtle(params Params, opts ...Option) (*Turtle, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("strategy.NewTurtle: %w", err)
	}
	risk, err := NewRiskController(params.BaseUnitPercent)
	if err != nil {
		return nil, fmt.Errorf("strategy.NewTurtle: %w", err)
	}
	t := &Turtle{params: params, risk: risk, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Params implements Strategy.
func (t *Turtle) Params() Params { return t.params }

// Ledger gives read access to the campaign.
func (t *Turtle) Ledger() *Ledger { return &t.ledger }

// UnitPercent is the unit size currently in force.
func (t *Turtle) UnitPercent() float64 { return t.risk.UnitPercent() }

// Evaluate implements Strategy.
func (t *Turtle) Evaluate(in Input) (domain.TradeSignal, error) {
	if err := t.validate(in); err != nil {
		return domain.TradeSignal{}, err
	}
	if in.TradeDate == "" {
		in.TradeDate = t.now().UTC().Format(time.RFC3339)
	}

	if !t.ledger.Open() {
		sig, fired, err := t.checkEntry(in)
		if err != nil || fired {
			return sig, err
		}
		return t.hold(in, noSignalReason), nil
	}

	sig, fired, err := t.checkExit(in)
	if err != nil || fired {
		return sig, err
	}
	sig, fired, err = t.checkPyramid(in)
	if err != nil || fired {
		return sig, err
	}
	return t.hold(in, noSignalReason), nil
}

// checkEntry looks for a breakout while flat. System 1 is skipped when the
// previous campaign closed profitably; System 2 never is.
func (t *Turtle) checkEntry(in Input) (domain.TradeSignal, bool, error) {
	s1High, err := domain.ChannelHigh(in.System1Entry, t.params.System1EntryPeriod)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}
	s2High, err := domain.ChannelHigh(in.System2Entry, t.params.System2EntryPeriod)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}

	var (
		system  domain.System
		channel float64
	)
	switch {
	case in.Price > s1High && t.ledger.LastTradeProfitable() != domain.OutcomeProfitable:
		system, channel = domain.System1, s1High
	case in.Price > s2High:
		system, channel = domain.System2, s2High
	default:
		return domain.TradeSignal{}, false, nil
	}

	period := t.params.EntryPeriod(system)
	qty, err := t.risk.Quantity(in.Capital, in.Price)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}
	if qty == 0 {
		return t.hold(in, fmt.Sprintf("%d-day breakout (%s) but unit size is zero: %.2f%% of %.2f at %.2f",
			period, system, t.risk.UnitPercent(), in.Capital, in.Price)), true, nil
	}

	if err := t.ledger.setEntrySystem(system); err != nil {
		return domain.TradeSignal{}, false, err
	}
	unit, err := t.addUnit(in, qty)
	if err != nil {
		t.ledger.entrySystem = domain.SystemUnset
		return domain.TradeSignal{}, false, err
	}

	return domain.TradeSignal{
		Action:     domain.ActionBuy,
		Type:       domain.BuyInitial,
		Price:      in.Price,
		Quantity:   qty,
		N:          in.N,
		TradeDate:  in.TradeDate,
		UnitNumber: unit.UnitNumber,
		System:     system,
		Reason:     fmt.Sprintf("%d-day breakout (%s): %.2f > %.2f", period, system, in.Price, channel),
	}, true, nil
}

// checkExit closes the whole campaign on a stop hit (measured from the latest
// unit) or on a close below the active system's exit channel. The stop is
// checked first so it is the reported reason when both hold.
func (t *Turtle) checkExit(in Input) (domain.TradeSignal, bool, error) {
	latest, ok := t.ledger.Latest()
	if !ok {
		return domain.TradeSignal{}, false, domain.Violation("exit check on a flat ledger")
	}
	system := t.ledger.EntrySystem()
	period := t.params.ExitPeriod(system)
	low, err := domain.ChannelLow(in.exitWindow(system), period)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}
	stop := latest.Price - t.params.StopN*in.N

	var reason string
	switch {
	case in.Price < stop:
		reason = fmt.Sprintf("stop loss: %.2f < %.2f (unit #%d at %.2f - %.1fN)",
			in.Price, stop, latest.UnitNumber, latest.Price, t.params.StopN)
	case in.Price < low:
		reason = fmt.Sprintf("%d-day low breakout (%s): %.2f < %.2f", period, system, in.Price, low)
	default:
		return domain.TradeSignal{}, false, nil
	}

	qty := t.ledger.TotalQuantity()
	res, _ := t.ledger.Clear(in.Price)
	t.risk.AdjustUnitSize(res.ProfitRate)

	return domain.TradeSignal{
		Action:     domain.ActionSell,
		Price:      in.Price,
		Quantity:   qty,
		N:          in.N,
		TradeDate:  in.TradeDate,
		System:     system,
		ProfitRate: res.ProfitRate,
		Reason:     reason,
	}, true, nil
}

// checkPyramid adds a unit once price has moved PyramidN×N above the latest
// entry, up to MaxUnits and, when configured, the max position value.
func (t *Turtle) checkPyramid(in Input) (domain.TradeSignal, bool, error) {
	if t.ledger.Len() >= t.params.MaxUnits {
		return domain.TradeSignal{}, false, nil
	}
	if t.params.MaxPositionPercent > 0 &&
		t.ledger.TotalValue() >= in.equity()*t.params.MaxPositionPercent/100 {
		return domain.TradeSignal{}, false, nil
	}
	latest, ok := t.ledger.Latest()
	if !ok {
		return domain.TradeSignal{}, false, domain.Violation("pyramid check on a flat ledger")
	}
	trigger := latest.Price + t.params.PyramidN*in.N
	if in.Price < trigger {
		return domain.TradeSignal{}, false, nil
	}

	system := t.ledger.EntrySystem()
	qty, err := t.risk.Quantity(in.Capital, in.Price)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}
	if qty == 0 {
		return t.hold(in, fmt.Sprintf("pyramid trigger %.2f reached but unit size is zero: %.2f%% of %.2f at %.2f",
			trigger, t.risk.UnitPercent(), in.Capital, in.Price)), true, nil
	}
	unit, err := t.addUnit(in, qty)
	if err != nil {
		return domain.TradeSignal{}, false, err
	}

	return domain.TradeSignal{
		Action:     domain.ActionBuy,
		Type:       domain.BuyPyramid,
		Price:      in.Price,
		Quantity:   qty,
		N:          in.N,
		TradeDate:  in.TradeDate,
		UnitNumber: unit.UnitNumber,
		System:     system,
		Reason: fmt.Sprintf("pyramid unit #%d: %.2f >= %.2f (unit #%d at %.2f + %.1fN)",
			unit.UnitNumber, in.Price, trigger, latest.UnitNumber, latest.Price, t.params.PyramidN),
	}, true, nil
}

// addUnit appends a unit, refusing to grow past MaxUnits.
func (t *Turtle) addUnit(in Input, qty int64) (domain.PositionUnit, error) {
	if t.ledger.Len() >= t.params.MaxUnits {
		return domain.PositionUnit{}, domain.Violation("campaign already holds %d of %d units", t.ledger.Len(), t.params.MaxUnits)
	}
	return t.ledger.AddUnit(in.Price, qty, in.TradeDate)
}

func (t *Turtle) hold(in Input, reason string) domain.TradeSignal {
	return domain.TradeSignal{
		Action:    domain.ActionHold,
		Price:     in.Price,
		N:         in.N,
		TradeDate: in.TradeDate,
		System:    t.ledger.EntrySystem(),
		Reason:    reason,
	}
}

// validate checks every input before any state is read.
func (t *Turtle) validate(in Input) error {
	if !domain.IsPositive(in.Price) {
		return domain.Invalid("price", "must be a positive finite number, got %v", in.Price)
	}
	if !domain.IsNonNegative(in.N) {
		return domain.Invalid("n", "must be a non-negative finite number, got %v", in.N)
	}
	if !domain.IsNonNegative(in.Capital) {
		return domain.Invalid("capital", "must be a non-negative finite number, got %v", in.Capital)
	}
	if !domain.IsNonNegative(in.Equity) {
		return domain.Invalid("equity", "must be a non-negative finite number, got %v", in.Equity)
	}
	windows := []struct {
		name   string
		closes []float64
		period int
	}{
		{"system1_entry", in.System1Entry, t.params.System1EntryPeriod},
		{"system1_exit", in.System1Exit, t.params.System1ExitPeriod},
		{"system2_entry", in.System2Entry, t.params.System2EntryPeriod},
		{"system2_exit", in.System2Exit, t.params.System2ExitPeriod},
	}
	for _, w := range windows {
		if len(w.closes) != w.period {
			return domain.Invalid(w.name, "need exactly %d closes, got %d", w.period, len(w.closes))
		}
		if _, err := domain.Trailing(w.closes, w.period); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot implements Strategy.
func (t *Turtle) Snapshot() domain.StrategySnapshot {
	return domain.StrategySnapshot{
		Units:               t.ledger.Units(),
		LastTradeProfitable: t.ledger.LastTradeProfitable(),
		EntrySystem:         t.ledger.EntrySystem(),
		UnitPercent:         t.risk.UnitPercent(),
	}
}

// Restore implements Strategy. The engine is left untouched when the snapshot
// breaks a campaign invariant.
func (t *Turtle) Restore(snap domain.StrategySnapshot) error {
	var l Ledger
	if err := l.restore(snap.Units, snap.LastTradeProfitable, snap.EntrySystem, t.params.MaxUnits); err != nil {
		return fmt.Errorf("strategy.Restore: %w", err)
	}
	r := *t.risk
	if err := r.restore(snap.UnitPercent); err != nil {
		return fmt.Errorf("strategy.Restore: %w", err)
	}
	t.ledger = l
	*t.risk = r
	return nil
}

// Reset implements Strategy.
func (t *Turtle) Reset() {
	t.ledger.reset()
	t.risk.Reset()
}

// equity es la base del límite de posición: Equity si viene informado, si no Capital.
func (in Input) equity() float64 {
	if in.Equity > 0 {
		return in.Equity
	}
	return in.Capital
}

func (in Input) exitWindow(s domain.System) []float64 {
	if s == domain.System2 {
		return in.System2Exit
	}
	return in.System1Exit
}
