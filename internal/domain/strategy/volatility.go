package strategy

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
)

// NTracker carries Wilder-smoothed N across cycles for one instrument.
//
// Every call receives the same strict window of period+1 bars:
//   - window advanced by exactly one bar: that bar's true range is folded in;
//   - only the newest bar changed (an intraday candle still forming): the fold
//     of the newest bar is redone from the previous N;
//   - nothing changed: the cached N is returned;
//   - anything else (first call, gap, rewritten history): reseed from the window.
type NTracker struct {
	period  int
	n       float64 // N including the newest bar
	base    float64 // N as of the second newest bar
	hasBase bool
	last    domain.PriceBar
	prev    domain.PriceBar
	seeded  bool
}

// NewNTracker builds a tracker for the given N period.
func NewNTracker(period int) (*NTracker, error) {
	if period < 1 {
		return nil, domain.Invalid("n_period", "must be >= 1, got %d", period)
	}
	return &NTracker{period: period}, nil
}

// Observe returns N for the window ending at the newest bar.
func (t *NTracker) Observe(bars []domain.PriceBar) (float64, error) {
	if len(bars) != t.period+1 {
		return 0, domain.Invalid("bars", "need exactly %d bars for period %d, got %d", t.period+1, t.period, len(bars))
	}
	newest, second := bars[len(bars)-1], bars[len(bars)-2]

	switch {
	case t.seeded && sameBar(second, t.prev) && sameBar(newest, t.last):
		return t.n, nil
	case t.seeded && t.hasBase && sameBar(second, t.prev) && newest.Date.Equal(t.last.Date):
		if err := newest.Validate(); err != nil {
			return 0, err
		}
		t.n = domain.SmoothN(t.base, domain.TrueRange(second, newest), t.period)
	case t.seeded && sameBar(second, t.last):
		if err := newest.Validate(); err != nil {
			return 0, err
		}
		t.base, t.hasBase = t.n, true
		t.n = domain.SmoothN(t.n, domain.TrueRange(second, newest), t.period)
	default:
		n, err := domain.WilderN(bars, t.period)
		if err != nil {
			return 0, fmt.Errorf("strategy.NTracker: seed: %w", err)
		}
		t.n, t.seeded, t.hasBase = n, true, false
	}
	t.prev, t.last = second, newest
	return t.n, nil
}

// N is the last computed value; false before the first Observe.
func (t *NTracker) N() (float64, bool) {
	return t.n, t.seeded
}

// Snapshot exports the running state so smoothing survives a restart.
// false before the first Observe.
func (t *NTracker) Snapshot() (domain.VolatilitySnapshot, bool) {
	if !t.seeded {
		return domain.VolatilitySnapshot{}, false
	}
	return domain.VolatilitySnapshot{
		Period:  t.period,
		N:       t.n,
		Base:    t.base,
		HasBase: t.hasBase,
		Prev:    t.prev,
		Last:    t.last,
	}, true
}

// Restore resumes smoothing from a snapshot taken with the same period.
// The tracker is left untouched when the snapshot is rejected.
func (t *NTracker) Restore(snap domain.VolatilitySnapshot) error {
	if snap.Period != t.period {
		return domain.Invalid("period", "snapshot period %d, tracker period %d", snap.Period, t.period)
	}
	if !domain.IsNonNegative(snap.N) {
		return domain.Invalid("n", "must be a non-negative finite number, got %v", snap.N)
	}
	if snap.HasBase && !domain.IsNonNegative(snap.Base) {
		return domain.Invalid("base", "must be a non-negative finite number, got %v", snap.Base)
	}
	for _, b := range []domain.PriceBar{snap.Prev, snap.Last} {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if !snap.Prev.Date.Before(snap.Last.Date) {
		return domain.Invalid("bars", "previous bar %s not before last bar %s",
			snap.Prev.Date.Format(time.DateOnly), snap.Last.Date.Format(time.DateOnly))
	}
	*t = NTracker{
		period:  t.period,
		n:       snap.N,
		base:    snap.Base,
		hasBase: snap.HasBase,
		prev:    snap.Prev,
		last:    snap.Last,
		seeded:  true,
	}
	return nil
}

// Reset forces the next Observe to reseed.
func (t *NTracker) Reset() {
	*t = NTracker{period: t.period}
}

func sameBar(a, b domain.PriceBar) bool {
	return a.Date.Equal(b.Date) && a.High == b.High && a.Low == b.Low && a.Close == b.Close
}
