package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/alejandrodnm/turtlebot/internal/domain/strategy"
)

// barPeriod es la duración de una vela diaria. Una vela cuyo periodo aún no ha
// terminado se descarta: las ventanas y N solo usan barras cerradas.
const barPeriod = 24 * time.Hour

// evaluate ejecuta un ciclo para un mercado y nunca devuelve error: cualquier
// fallo queda en el informe.
func (t *Trader) evaluate(ctx context.Context, inst *instrument) domain.CycleReport {
	start := t.now()
	report, err := t.cycle(ctx, inst)
	report.Market = inst.market
	report.At = start
	report.Units = inst.turtle.Ledger().Len()
	report.UnitPercent = inst.turtle.UnitPercent()
	if err != nil {
		report.Err = err
	}
	t.metrics.observeCycle(inst.market, report, time.Since(start))
	t.metrics.observeState(inst.market, inst.turtle)
	return report
}

func (t *Trader) cycle(ctx context.Context, inst *instrument) (domain.CycleReport, error) {
	var report domain.CycleReport
	params := inst.turtle.Params()

	bars, err := t.closedBars(ctx, inst.market, params.HistoryBars())
	if err != nil {
		return report, err
	}

	n, err := inst.n.Observe(bars[len(bars)-(params.NPeriod+1):])
	if err != nil {
		return report, fmt.Errorf("trader.cycle: %s: volatility: %w", inst.market, err)
	}
	windows, err := params.Windows(domain.Closes(bars))
	if err != nil {
		return report, fmt.Errorf("trader.cycle: %s: windows: %w", inst.market, err)
	}

	price, err := t.data.CurrentPrice(ctx, inst.market)
	if err != nil {
		return report, fmt.Errorf("trader.cycle: %s: price: %w", inst.market, err)
	}
	capital, err := t.account.Balance(ctx, t.cfg.Quote)
	if err != nil {
		return report, fmt.Errorf("trader.cycle: %s: balance: %w", inst.market, err)
	}
	report.Capital = capital

	before := inst.turtle.Snapshot()
	sig, err := inst.turtle.Evaluate(strategy.Input{
		Price:     price,
		N:         n,
		Capital:   capital,
		Equity:    capital + float64(inst.turtle.Ledger().TotalQuantity())*price,
		TradeDate: t.now().UTC().Format(time.RFC3339),
		Windows:   windows,
	})
	if err != nil {
		return report, fmt.Errorf("trader.cycle: %s: evaluate: %w", inst.market, err)
	}
	report.Signal = sig

	if sig.IsTrade() {
		fill, err := t.exec.Execute(ctx, inst.market, sig)
		if err != nil {
			// La orden no llegó a ejecutarse: el motor vuelve al estado previo
			// para que el siguiente ciclo reevalúe la misma situación.
			if rerr := inst.turtle.Restore(before); rerr != nil {
				return report, fmt.Errorf("trader.cycle: %s: rollback: %w", inst.market, rerr)
			}
			report.Signal = domain.TradeSignal{}
			err = fmt.Errorf("trader.cycle: %s: execute %s: %w", inst.market, sig.Label(), err)
			return report, errors.Join(err, t.saveState(ctx, inst))
		}
		report.Fill = &fill

		if t.journal != nil {
			rec := domain.SignalRecord{
				ID:        fill.ID,
				Market:    inst.market,
				Signal:    sig,
				Fill:      &fill,
				CreatedAt: fill.ExecutedAt,
			}
			if err := t.journal.SaveSignal(ctx, rec); err != nil {
				// La orden ya se llenó: el estado tiene que persistirse igualmente.
				err = fmt.Errorf("trader.cycle: %s: save signal: %w", inst.market, err)
				return report, errors.Join(err, t.saveState(ctx, inst))
			}
		}
	}

	return report, t.saveState(ctx, inst)
}

func (t *Trader) saveState(ctx context.Context, inst *instrument) error {
	if t.journal == nil {
		return nil
	}
	if err := t.journal.SaveState(ctx, inst.market, inst.turtle.Snapshot()); err != nil {
		return fmt.Errorf("trader.cycle: %s: save state: %w", inst.market, err)
	}
	if vol, ok := inst.n.Snapshot(); ok {
		if err := t.journal.SaveVolatility(ctx, inst.market, vol); err != nil {
			return fmt.Errorf("trader.cycle: %s: save volatility: %w", inst.market, err)
		}
	}
	return nil
}

// closedBars pide want+1 velas, descarta la más reciente si todavía se está
// formando y devuelve exactamente las want barras cerradas más recientes.
func (t *Trader) closedBars(ctx context.Context, market string, want int) ([]domain.PriceBar, error) {
	bars, err := t.data.Candles(ctx, market, want+1)
	if err != nil {
		return nil, fmt.Errorf("trader.cycle: %s: candles: %w", market, err)
	}
	if n := len(bars); n > 0 && bars[n-1].Date.Add(barPeriod).After(t.now()) {
		bars = bars[:n-1]
	}
	if len(bars) < want {
		return nil, fmt.Errorf("trader.cycle: %s: %w", market,
			domain.Invalid("bars", "need %d closed bars, got %d", want, len(bars)))
	}
	return bars[len(bars)-want:], nil
}
