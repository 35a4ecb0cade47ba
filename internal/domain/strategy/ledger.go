package strategy

import (
	"strings"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// Ledger is the ordered, append-only unit sequence of one open campaign,
// together with the memory that outlives it: the outcome of the previous
// campaign and the entry system of the current one.
//
// A Ledger is owned by a single Turtle and is not safe for concurrent use.
type Ledger struct {
	units          []domain.PositionUnit
	lastProfitable domain.Outcome
	entrySystem    domain.System
}

// AddUnit appends a unit numbered len+1. The max-units cap is enforced by the
// engine before calling, not here.
func (l *Ledger) AddUnit(price float64, quantity int64, tradeDate string) (domain.PositionUnit, error) {
	if !(price > 0) {
		return domain.PositionUnit{}, domain.Invalid("price", "must be > 0, got %v", price)
	}
	if quantity <= 0 {
		return domain.PositionUnit{}, domain.Invalid("quantity", "must be > 0, got %d", quantity)
	}
	if strings.TrimSpace(tradeDate) == "" {
		return domain.PositionUnit{}, domain.Invalid("trade_date", "must not be empty")
	}

	unit := domain.PositionUnit{
		UnitNumber: len(l.units) + 1,
		Price:      price,
		Quantity:   quantity,
		TradeDate:  tradeDate,
	}
	l.units = append(l.units, unit)
	return unit, nil
}

// Latest returns the unit with the greatest trade date. On equal dates the
// later-added unit wins.
func (l *Ledger) Latest() (domain.PositionUnit, bool) {
	if len(l.units) == 0 {
		return domain.PositionUnit{}, false
	}
	best := l.units[0]
	for _, u := range l.units[1:] {
		if compareTradeDates(u.TradeDate, best.TradeDate) >= 0 {
			best = u
		}
	}
	return best, true
}

// Earliest returns the unit with the smallest trade date. On equal dates the
// earlier-added unit wins.
func (l *Ledger) Earliest() (domain.PositionUnit, bool) {
	if len(l.units) == 0 {
		return domain.PositionUnit{}, false
	}
	best := l.units[0]
	for _, u := range l.units[1:] {
		if compareTradeDates(u.TradeDate, best.TradeDate) < 0 {
			best = u
		}
	}
	return best, true
}

// TotalQuantity sums unit quantities; 0 when empty.
func (l *Ledger) TotalQuantity() int64 {
	var total int64
	for _, u := range l.units {
		total += u.Quantity
	}
	return total
}

// TotalValue sums price × quantity; 0 when empty.
func (l *Ledger) TotalValue() float64 {
	values := make([]float64, len(l.units))
	for i, u := range l.units {
		values[i] = u.Value()
	}
	return floats.Sum(values)
}

// AveragePrice is the quantity-weighted entry price of the campaign.
func (l *Ledger) AveragePrice() (float64, error) {
	qty := l.TotalQuantity()
	if qty <= 0 {
		return 0, domain.Violation("average entry price of a campaign with zero quantity")
	}
	return l.TotalValue() / float64(qty), nil
}

// Clear closes the campaign at exitPrice. It records whether the campaign was
// net profitable (exit strictly above the average entry), empties the units and
// unsets the entry system.
//
// On an empty ledger Clear does nothing and returns false; the previous
// outcome is left as it was.
func (l *Ledger) Clear(exitPrice float64) (domain.CampaignResult, bool) {
	if len(l.units) == 0 {
		return domain.CampaignResult{}, false
	}

	// len > 0 and every unit has quantity > 0, so the average always exists.
	avg, _ := l.AveragePrice()
	res := domain.CampaignResult{
		AverageEntry: avg,
		ExitPrice:    exitPrice,
		Quantity:     l.TotalQuantity(),
		Units:        len(l.units),
		ProfitRate:   domain.ProfitRate(avg, exitPrice),
		Profitable:   exitPrice > avg,
	}

	if res.Profitable {
		l.lastProfitable = domain.OutcomeProfitable
	} else {
		l.lastProfitable = domain.OutcomeUnprofitable
	}
	l.units = nil
	l.entrySystem = domain.SystemUnset
	return res, true
}

// Units returns a copy of the campaign's units in append order.
func (l *Ledger) Units() []domain.PositionUnit {
	out := make([]domain.PositionUnit, len(l.units))
	copy(out, l.units)
	return out
}

// Len is the number of open units.
func (l *Ledger) Len() int {
	return len(l.units)
}

// Open reports whether a campaign is in progress.
func (l *Ledger) Open() bool {
	return len(l.units) > 0
}

// EntrySystem is the system that opened the current campaign.
func (l *Ledger) EntrySystem() domain.System {
	return l.entrySystem
}

// LastTradeProfitable is the outcome of the most recently cleared campaign.
func (l *Ledger) LastTradeProfitable() domain.Outcome {
	return l.lastProfitable
}

// setEntrySystem fixes the campaign's system. Only valid before the first unit.
func (l *Ledger) setEntrySystem(s domain.System) error {
	if len(l.units) > 0 && l.entrySystem != s {
		return domain.Violation("campaign opened by %s cannot switch to %s", l.entrySystem, s)
	}
	l.entrySystem = s
	return nil
}

// restore replaces the ledger contents after checking campaign invariants.
func (l *Ledger) restore(units []domain.PositionUnit, last domain.Outcome, sys domain.System, maxUnits int) error {
	if len(units) > maxUnits {
		return domain.Violation("snapshot has %d units, max is %d", len(units), maxUnits)
	}
	if len(units) == 0 && sys != domain.SystemUnset {
		return domain.Violation("flat snapshot with entry system %s", sys)
	}
	if len(units) > 0 && sys == domain.SystemUnset {
		return domain.Violation("open snapshot without entry system")
	}
	for i, u := range units {
		if u.UnitNumber != i+1 {
			return domain.Violation("snapshot unit #%d has unit number %d", i+1, u.UnitNumber)
		}
		if !(u.Price > 0) || u.Quantity <= 0 {
			return domain.Violation("snapshot unit #%d has price %v quantity %d", i+1, u.Price, u.Quantity)
		}
	}

	l.units = make([]domain.PositionUnit, len(units))
	copy(l.units, units)
	l.lastProfitable = last
	l.entrySystem = sys
	return nil
}

// reset forgets everything, including the previous outcome.
func (l *Ledger) reset() {
	l.units = nil
	l.lastProfitable = domain.OutcomeUnknown
	l.entrySystem = domain.SystemUnset
}

// compareTradeDates orders two trade dates by instant, so "+09:00" and "Z"
// timestamps compare correctly. Dates that do not parse as RFC 3339 or
// YYYY-MM-DD fall back to byte order.
func compareTradeDates(a, b string) int {
	ta, okA := parseTradeDate(a)
	tb, okB := parseTradeDate(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

func parseTradeDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
