package trader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/alejandrodnm/turtlebot/internal/domain/strategy"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeData struct {
	mu        sync.Mutex
	bars      []domain.PriceBar
	prices    map[string]float64
	priceErrs map[string]error
	counts    []int
}

func (f *fakeData) Candles(_ context.Context, _ string, count int) ([]domain.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	out := make([]domain.PriceBar, len(f.bars))
	copy(out, f.bars)
	return out, nil
}

func (f *fakeData) CurrentPrice(_ context.Context, market string) (float64, error) {
	if err := f.priceErrs[market]; err != nil {
		return 0, err
	}
	return f.prices[market], nil
}

type fakeAccount struct{ cash float64 }

func (f fakeAccount) Balance(context.Context, string) (float64, error) { return f.cash, nil }

type fakeExec struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeExec) Execute(_ context.Context, market string, sig domain.TradeSignal) (domain.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Fill{}, f.err
	}
	return domain.Fill{
		ID:         "fill-" + market,
		Market:     market,
		Action:     sig.Action,
		Price:      sig.Price,
		Quantity:   sig.Quantity,
		ExecutedAt: testNow,
	}, nil
}

type fakeJournal struct {
	mu        sync.Mutex
	signalErr error
	signals   []domain.SignalRecord
	states    map[string]domain.StrategySnapshot
	vols      map[string]domain.VolatilitySnapshot
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		states: make(map[string]domain.StrategySnapshot),
		vols:   make(map[string]domain.VolatilitySnapshot),
	}
}

func (f *fakeJournal) SaveSignal(_ context.Context, rec domain.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signalErr != nil {
		return f.signalErr
	}
	f.signals = append(f.signals, rec)
	return nil
}

func (f *fakeJournal) SaveVolatility(_ context.Context, market string, snap domain.VolatilitySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vols[market] = snap
	return nil
}

func (f *fakeJournal) LoadVolatility(_ context.Context, market string) (domain.VolatilitySnapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.vols[market]
	return snap, ok, nil
}

func (f *fakeJournal) GetSignals(context.Context, string, time.Time, time.Time) ([]domain.SignalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SignalRecord(nil), f.signals...), nil
}

func (f *fakeJournal) SaveState(_ context.Context, market string, snap domain.StrategySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[market] = snap
	return nil
}

func (f *fakeJournal) LoadState(_ context.Context, market string) (domain.StrategySnapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.states[market]
	return snap, ok, nil
}

func (f *fakeJournal) Close() error { return nil }

type fakeNotifier struct {
	reports [][]domain.CycleReport
}

func (f *fakeNotifier) Notify(_ context.Context, reports []domain.CycleReport) error {
	f.reports = append(f.reports, reports)
	return nil
}

// --- helpers ---

func testParams() strategy.Params {
	return strategy.Params{
		System1EntryPeriod: 5,
		System1ExitPeriod:  5,
		System2EntryPeriod: 8,
		System2ExitPeriod:  5,
		NPeriod:            3,
		MaxUnits:           4,
		BaseUnitPercent:    2,
		PyramidN:           1,
		StopN:              2,
	}
}

func testConfig(markets ...string) Config {
	return Config{
		Markets:  markets,
		Quote:    "KRW",
		Interval: time.Minute,
		Workers:  2,
		Params:   testParams(),
	}
}

// closedBars devuelve n barras planas (close 100, TR 2) que terminan ayer.
func closedBars(n int) []domain.PriceBar {
	today := testNow.Truncate(24 * time.Hour)
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Date:  today.AddDate(0, 0, i-n),
			High:  101,
			Low:   99,
			Close: 100,
		}
	}
	return bars
}

type fixture struct {
	data    *fakeData
	exec    *fakeExec
	journal *fakeJournal
	notify  *fakeNotifier
}

func newFixture(price float64, markets ...string) *fixture {
	prices := make(map[string]float64, len(markets))
	for _, m := range markets {
		prices[m] = price
	}
	return &fixture{
		data:    &fakeData{bars: closedBars(9), prices: prices},
		exec:    &fakeExec{},
		journal: newFakeJournal(),
		notify:  &fakeNotifier{},
	}
}

func (f *fixture) trader(t *testing.T, cfg Config, m *Metrics) *Trader {
	t.Helper()
	tr, err := New(context.Background(), cfg, f.data, fakeAccount{cash: 1_000_000}, f.exec, f.journal, f.notify, m)
	require.NoError(t, err)
	tr.now = func() time.Time { return testNow }
	return tr
}

func openSnapshot() domain.StrategySnapshot {
	return domain.StrategySnapshot{
		Units:       []domain.PositionUnit{{UnitNumber: 1, Price: 100, Quantity: 10, TradeDate: "2025-03-01T00:00:00Z"}},
		EntrySystem: domain.System1,
		UnitPercent: 2,
	}
}

// --- tests ---

func TestRunOnce_BreakoutBuysAndPersists(t *testing.T) {
	f := newFixture(101, "KRW-BTC")
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	require.NoError(t, r.Err)
	assert.Equal(t, "KRW-BTC", r.Market)
	assert.Equal(t, "BUY/INITIAL", r.Signal.Label())
	assert.Equal(t, domain.System1, r.Signal.System)
	assert.Equal(t, int64(198), r.Signal.Quantity)
	assert.InDelta(t, 2.0, r.Signal.N, 1e-9)
	assert.Equal(t, "2025-03-10T12:00:00Z", r.Signal.TradeDate)
	assert.Equal(t, 1, r.Units)
	assert.Equal(t, 1_000_000.0, r.Capital)
	require.NotNil(t, r.Fill)

	assert.Equal(t, []int{9}, f.data.counts, "history bars plus one")
	require.Len(t, f.journal.signals, 1)
	assert.Equal(t, "fill-KRW-BTC", f.journal.signals[0].ID)
	assert.Len(t, f.journal.states["KRW-BTC"].Units, 1)
}

func TestRunOnce_DropsFormingBar(t *testing.T) {
	f := newFixture(101, "KRW-BTC")
	forming := domain.PriceBar{Date: testNow.Truncate(24 * time.Hour), High: 201, Low: 199, Close: 200}
	f.data.bars = append(closedBars(8), forming)
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, reports[0].Err)
	assert.Equal(t, domain.ActionBuy, reports[0].Signal.Action, "today's candle must not raise the channel")
}

func TestRunOnce_NotEnoughClosedBars(t *testing.T) {
	f := newFixture(101, "KRW-BTC")
	f.data.bars = closedBars(5)
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, reports[0].Err, domain.ErrValidation)
	assert.Zero(t, f.exec.calls)
}

func TestRunOnce_HoldSkipsExecution(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, reports[0].Signal.Action)
	assert.Nil(t, reports[0].Fill)
	assert.Zero(t, f.exec.calls)
	assert.Empty(t, f.journal.signals)

	_, saved := f.journal.states["KRW-BTC"]
	assert.True(t, saved, "state is persisted every cycle")
}

func TestRunOnce_ExecutionFailureRollsBack(t *testing.T) {
	f := newFixture(101, "KRW-BTC")
	f.exec.err = errors.New("exchange down")
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)

	r := reports[0]
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "exchange down")
	assert.Equal(t, 0, r.Units)
	assert.Empty(t, f.journal.signals)

	snap, ok := tr.Snapshot("KRW-BTC")
	require.True(t, ok)
	assert.Empty(t, snap.Units)
	assert.Equal(t, domain.SystemUnset, snap.EntrySystem)

	// el siguiente ciclo vuelve a ver la misma ruptura
	f.exec.err = nil
	reports, err = tr.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BUY/INITIAL", reports[0].Signal.Label())
}

func TestRunOnce_SignalJournalFailureStillPersistsState(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(101, "KRW-BTC")
	f.journal.signalErr = errors.New("disk full")
	tr := f.trader(t, testConfig("KRW-BTC"), NewMetrics(reg))

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)

	r := reports[0]
	assert.ErrorContains(t, r.Err, "disk full")
	require.NotNil(t, r.Fill, "the order was filled")
	assert.Equal(t, 1, f.exec.calls)
	assert.Equal(t, 1, r.Units)

	// el estado persistido refleja la unidad ya comprada
	assert.Len(t, f.journal.states["KRW-BTC"].Units, 1)

	assert.Equal(t, 1.0, metricValue(t, reg, "turtle_signals_total", map[string]string{"market": "KRW-BTC", "signal": "BUY/INITIAL"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "turtle_cycle_errors_total", map[string]string{"market": "KRW-BTC"}))
}

func TestRunOnce_PositionCapUsesEquity(t *testing.T) {
	f := newFixture(102, "KRW-BTC")
	f.journal.states["KRW-BTC"] = openSnapshot() // 10 × 100 = 1,000
	cfg := testConfig("KRW-BTC")
	// 0.1% del efectivo (1,000) ya estaría lleno; del patrimonio (1,001,020) no
	cfg.Params.MaxPositionPercent = 0.1
	tr := f.trader(t, cfg, nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, reports[0].Err)
	assert.Equal(t, "BUY/PYRAMID", reports[0].Signal.Label())
	assert.Equal(t, 2, reports[0].Units)
}

func TestNew_RestoresVolatility(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	bars := closedBars(9)
	// N guardada de 5 hasta la penúltima barra cerrada; la última tiene TR 2
	f.journal.vols["KRW-BTC"] = domain.VolatilitySnapshot{Period: 3, N: 5, Prev: bars[6], Last: bars[7]}
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, reports[0].Err)

	// (2×5 + 2) / 3; resembrar daría 2
	assert.InDelta(t, 4.0, reports[0].Signal.N, 1e-9)
	assert.InDelta(t, 4.0, f.journal.vols["KRW-BTC"].N, 1e-9)
	assert.True(t, bars[8].Date.Equal(f.journal.vols["KRW-BTC"].Last.Date))
}

func TestNew_DiscardsMismatchedVolatility(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	bars := closedBars(9)
	f.journal.vols["KRW-BTC"] = domain.VolatilitySnapshot{Period: 20, N: 5, Prev: bars[6], Last: bars[7]}
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, reports[0].Err)
	assert.InDelta(t, 2.0, reports[0].Signal.N, 1e-9)
}

func TestRunOnce_ReportsInMarketOrder(t *testing.T) {
	markets := []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}
	f := newFixture(101, markets...)
	f.data.priceErrs = map[string]error{"KRW-ETH": errors.New("ticker unavailable")}
	tr := f.trader(t, testConfig(markets...), nil)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 3)

	for i, m := range markets {
		assert.Equal(t, m, reports[i].Market)
	}
	assert.NoError(t, reports[0].Err)
	assert.ErrorContains(t, reports[1].Err, "ticker unavailable")
	assert.NoError(t, reports[2].Err)
	assert.Equal(t, 2, f.exec.calls)
}

func TestNew_RestoresStateAndStops(t *testing.T) {
	f := newFixture(95, "KRW-BTC")
	f.journal.states["KRW-BTC"] = openSnapshot()
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	snap, ok := tr.Snapshot("KRW-BTC")
	require.True(t, ok)
	require.Len(t, snap.Units, 1)

	reports, err := tr.RunOnce(context.Background())
	require.NoError(t, err)

	r := reports[0]
	require.NoError(t, r.Err)
	assert.Equal(t, domain.ActionSell, r.Signal.Action)
	assert.Equal(t, int64(10), r.Signal.Quantity)
	assert.Contains(t, r.Signal.Reason, "stop loss")
	assert.InDelta(t, -5.0, r.Signal.ProfitRate, 1e-9)
	assert.Equal(t, 0, r.Units)
	assert.Empty(t, f.journal.states["KRW-BTC"].Units)
	assert.Equal(t, domain.OutcomeUnprofitable, f.journal.states["KRW-BTC"].LastTradeProfitable)
}

func TestNew_RejectsBrokenSnapshot(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	snap := openSnapshot()
	snap.EntrySystem = domain.SystemUnset
	f.journal.states["KRW-BTC"] = snap

	_, err := New(context.Background(), testConfig("KRW-BTC"), f.data, fakeAccount{}, f.exec, f.journal, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvariant)
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	ctx := context.Background()

	_, err := New(ctx, testConfig("KRW-BTC"), nil, fakeAccount{}, f.exec, nil, nil, nil)
	assert.Error(t, err)

	cases := map[string]func(*Config){
		"no markets":     func(c *Config) { c.Markets = nil },
		"duplicate":      func(c *Config) { c.Markets = []string{"KRW-BTC", "KRW-BTC"} },
		"blank market":   func(c *Config) { c.Markets = []string{" "} },
		"no quote":       func(c *Config) { c.Quote = "" },
		"zero interval":  func(c *Config) { c.Interval = 0 },
		"neg workers":    func(c *Config) { c.Workers = -1 },
		"invalid params": func(c *Config) { c.Params.NPeriod = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig("KRW-BTC")
			mutate(&cfg)
			_, err := New(ctx, cfg, f.data, fakeAccount{}, f.exec, nil, nil, nil)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestReset(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	f.journal.states["KRW-BTC"] = openSnapshot()
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	require.NoError(t, tr.Reset(context.Background(), "KRW-BTC"))

	snap, _ := tr.Snapshot("KRW-BTC")
	assert.Empty(t, snap.Units)
	assert.Empty(t, f.journal.states["KRW-BTC"].Units)
	assert.Equal(t, domain.SystemUnset, f.journal.states["KRW-BTC"].EntrySystem)

	err := tr.Reset(context.Background(), "KRW-DOGE")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRunCycle_Notifies(t *testing.T) {
	f := newFixture(100, "KRW-BTC", "KRW-ETH")
	tr := f.trader(t, testConfig("KRW-BTC", "KRW-ETH"), nil)

	tr.runCycle(context.Background())

	require.Len(t, f.notify.reports, 1)
	assert.Len(t, f.notify.reports[0], 2)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(100, "KRW-BTC")
	tr := f.trader(t, testConfig("KRW-BTC"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, tr.Run(ctx))
	assert.Empty(t, f.notify.reports, "an interrupted cycle is not notified")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(101, "KRW-BTC")
	tr := f.trader(t, testConfig("KRW-BTC"), NewMetrics(reg))

	_, err := tr.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, metricValue(t, reg, "turtle_cycles_total", map[string]string{"market": "KRW-BTC"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "turtle_signals_total", map[string]string{"market": "KRW-BTC", "signal": "BUY/INITIAL"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "turtle_open_units", map[string]string{"market": "KRW-BTC"}))
	assert.Equal(t, 2.0, metricValue(t, reg, "turtle_unit_percent", map[string]string{"market": "KRW-BTC"}))
	assert.InDelta(t, 2.0, metricValue(t, reg, "turtle_volatility_n", map[string]string{"market": "KRW-BTC"}), 1e-9)
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
