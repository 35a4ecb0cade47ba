package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/alejandrodnm/turtlebot/internal/domain/strategy"
	"github.com/alejandrodnm/turtlebot/internal/ports"
)

// Config contiene la configuración del trader.
type Config struct {
	Markets  []string      // p.ej. "KRW-BTC"; un motor por mercado
	Quote    string        // moneda de cotización usada como capital
	Interval time.Duration // periodo del loop de Run
	Workers  int           // goroutines por ciclo (0 = uno por mercado)
	Params   strategy.Params
}

// instrument es el estado propio de un mercado. Solo lo toca un worker por ciclo.
type instrument struct {
	market string
	turtle *strategy.Turtle
	n      *strategy.NTracker
}

// Trader es el orquestador: en cada ciclo evalúa todos los mercados,
// ejecuta las señales y persiste el estado resultante.
type Trader struct {
	cfg         Config
	data        ports.MarketData
	account     ports.Account
	exec        ports.OrderExecutor
	journal     ports.Journal
	notifier    ports.Notifier
	metrics     *Metrics
	instruments []*instrument
	byMarket    map[string]*instrument
	now         func() time.Time
}

// New crea un Trader con todas las dependencias inyectadas y restaura el
// estado de cada mercado desde el journal. journal, notifier y metrics
// pueden ser nil.
func New(
	ctx context.Context,
	cfg Config,
	data ports.MarketData,
	account ports.Account,
	exec ports.OrderExecutor,
	journal ports.Journal,
	notifier ports.Notifier,
	metrics *Metrics,
) (*Trader, error) {
	if data == nil || account == nil || exec == nil {
		return nil, errors.New("trader.New: market data, account and executor are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("trader.New: %w", err)
	}

	t := &Trader{
		cfg:      cfg,
		data:     data,
		account:  account,
		exec:     exec,
		journal:  journal,
		notifier: notifier,
		metrics:  metrics,
		byMarket: make(map[string]*instrument, len(cfg.Markets)),
		now:      time.Now,
	}

	for _, market := range cfg.Markets {
		inst, err := t.newInstrument(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("trader.New: %w", err)
		}
		t.instruments = append(t.instruments, inst)
		t.byMarket[market] = inst
	}
	return t, nil
}

func (t *Trader) newInstrument(ctx context.Context, market string) (*instrument, error) {
	turtle, err := strategy.NewTurtle(t.cfg.Params)
	if err != nil {
		return nil, err
	}
	n, err := strategy.NewNTracker(t.cfg.Params.NPeriod)
	if err != nil {
		return nil, err
	}
	inst := &instrument{market: market, turtle: turtle, n: n}

	if t.journal == nil {
		return inst, nil
	}
	snap, ok, err := t.journal.LoadState(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", market, err)
	}
	if ok {
		if err := turtle.Restore(snap); err != nil {
			return nil, fmt.Errorf("restore %s: %w", market, err)
		}
		slog.Info("state restored",
			"market", market,
			"units", len(snap.Units),
			"system", snap.EntrySystem,
			"last_trade", snap.LastTradeProfitable,
			"unit_percent", turtle.UnitPercent(),
		)
	}

	// N es una caché del mercado: un estado que no encaja se descarta y se resiembra.
	vol, ok, err := t.journal.LoadVolatility(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("load volatility %s: %w", market, err)
	}
	if ok {
		if err := n.Restore(vol); err != nil {
			slog.Warn("volatility state discarded", "market", market, "err", err)
		} else {
			slog.Debug("volatility restored", "market", market, "n", vol.N, "last_bar", vol.Last.Date)
		}
	}

	t.metrics.observeState(market, turtle)
	return inst, nil
}

// Snapshot devuelve el estado actual de market.
func (t *Trader) Snapshot(market string) (domain.StrategySnapshot, bool) {
	inst, ok := t.byMarket[market]
	if !ok {
		return domain.StrategySnapshot{}, false
	}
	return inst.turtle.Snapshot(), true
}

// Run ejecuta el loop de trading hasta que el contexto se cancele.
// El primer ciclo se lanza inmediatamente.
func (t *Trader) Run(ctx context.Context) error {
	slog.Info("trader starting",
		"markets", t.cfg.Markets,
		"interval", t.cfg.Interval,
		"workers", t.cfg.Workers,
	)

	t.runCycle(ctx)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trader stopped")
			return nil
		case <-ticker.C:
			t.runCycle(ctx)
		}
	}
}

// RunOnce ejecuta exactamente un ciclo sobre todos los mercados y devuelve
// un informe por mercado, en el orden configurado. Los errores de un mercado
// van en su informe; solo se devuelve error si el contexto se canceló.
func (t *Trader) RunOnce(ctx context.Context) ([]domain.CycleReport, error) {
	reports := evaluateConcurrent(ctx, t.instruments, t.cfg.Workers, t.evaluate)
	if err := ctx.Err(); err != nil {
		return reports, fmt.Errorf("trader.RunOnce: %w", err)
	}
	return reports, nil
}

// Reset borra la campaña y la memoria de market y persiste el estado vacío.
// No toca el executor: las posiciones reales, si las hay, quedan como estén.
func (t *Trader) Reset(ctx context.Context, market string) error {
	inst, ok := t.byMarket[market]
	if !ok {
		return fmt.Errorf("trader.Reset: %w", domain.Invalid("market", "%q is not configured", market))
	}
	inst.turtle.Reset()
	inst.n.Reset()
	t.metrics.observeState(market, inst.turtle)

	if err := t.saveState(ctx, inst); err != nil {
		return fmt.Errorf("trader.Reset: %w", err)
	}
	slog.Info("state reset", "market", market)
	return nil
}

// runCycle ejecuta un ciclo completo, notifica y deja constancia en el log.
func (t *Trader) runCycle(ctx context.Context) {
	start := t.now()

	reports, err := t.RunOnce(ctx)
	if err != nil {
		slog.Warn("trade cycle interrupted", "err", err)
		return
	}

	if t.notifier != nil {
		if err := t.notifier.Notify(ctx, reports); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	trades, failed := 0, 0
	for _, r := range reports {
		switch {
		case r.Err != nil:
			failed++
		case r.Signal.IsTrade():
			trades++
		}
	}
	slog.Info("trade cycle complete",
		"markets", len(reports),
		"trades", trades,
		"errors", failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (c Config) validate() error {
	if len(c.Markets) == 0 {
		return domain.Invalid("markets", "at least one market is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if strings.TrimSpace(m) == "" {
			return domain.Invalid("markets", "empty market name")
		}
		if seen[m] {
			return domain.Invalid("markets", "%s listed twice", m)
		}
		seen[m] = true
	}
	if strings.TrimSpace(c.Quote) == "" {
		return domain.Invalid("quote", "must not be empty")
	}
	if c.Interval <= 0 {
		return domain.Invalid("interval", "must be > 0, got %s", c.Interval)
	}
	if c.Workers < 0 {
		return domain.Invalid("workers", "must be >= 0, got %d", c.Workers)
	}
	return c.Params.Validate()
}
