package trader

// metrics.go: métricas Prometheus del trader.
//
//   turtle_cycles_total{market}          ciclos evaluados
//   turtle_signals_total{market,signal}  señales ejecutadas (BUY/INITIAL, BUY/PYRAMID, SELL)
//   turtle_cycle_errors_total{market}    ciclos que terminaron con error
//   turtle_open_units{market}            unidades abiertas de la campaña
//   turtle_unit_percent{market}          % de capital por unidad en vigor
//   turtle_volatility_n{market}          última N observada
//   turtle_campaign_profit_rate          % realizado al cerrar cada campaña
//   turtle_cycle_duration_seconds        latencia de un ciclo por mercado

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/turtlebot/internal/domain"
	"github.com/alejandrodnm/turtlebot/internal/domain/strategy"
)

// Metrics agrupa los colectores del trader. Un *Metrics nil es válido y no
// registra nada.
type Metrics struct {
	cycles      *prometheus.CounterVec
	signals     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	openUnits   *prometheus.GaugeVec
	unitPercent *prometheus.GaugeVec
	volatility  *prometheus.GaugeVec
	profitRate  prometheus.Histogram
	duration    prometheus.Histogram
}

// NewMetrics crea los colectores y los registra en reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turtle_cycles_total",
			Help: "Trading cycles evaluated per market.",
		}, []string{"market"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turtle_signals_total",
			Help: "Executed signals per market and kind.",
		}, []string{"market", "signal"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turtle_cycle_errors_total",
			Help: "Cycles that ended with an error.",
		}, []string{"market"}),
		openUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "turtle_open_units",
			Help: "Units held in the open campaign.",
		}, []string{"market"}),
		unitPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "turtle_unit_percent",
			Help: "Percent of capital allocated per unit.",
		}, []string{"market"}),
		volatility: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "turtle_volatility_n",
			Help: "Last observed N (Wilder ATR).",
		}, []string{"market"}),
		profitRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "turtle_campaign_profit_rate",
			Help:    "Realized profit rate of closed campaigns, in percent.",
			Buckets: []float64{-20, -10, -5, -2, 0, 2, 5, 10, 20, 50},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "turtle_cycle_duration_seconds",
			Help:    "Duration of one market cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.cycles, m.signals, m.errors,
		m.openUnits, m.unitPercent, m.volatility,
		m.profitRate, m.duration,
	)
	return m
}

func (m *Metrics) observeCycle(market string, r domain.CycleReport, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(market).Inc()
	m.duration.Observe(d.Seconds())
	if r.Err != nil {
		m.errors.WithLabelValues(market).Inc()
	}
	if r.Signal.N > 0 {
		m.volatility.WithLabelValues(market).Set(r.Signal.N)
	}
	// Un fill cuenta aunque el ciclo acabe con error al persistir.
	if r.Fill == nil {
		return
	}
	m.signals.WithLabelValues(market, r.Signal.Label()).Inc()
	if r.Signal.Action == domain.ActionSell {
		m.profitRate.Observe(r.Signal.ProfitRate)
	}
}

func (m *Metrics) observeState(market string, t *strategy.Turtle) {
	if m == nil {
		return
	}
	m.openUnits.WithLabelValues(market).Set(float64(t.Ledger().Len()))
	m.unitPercent.WithLabelValues(market).Set(t.UnitPercent())
}
