package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/turtlebot/internal/domain/strategy"
)

// Config es la configuración completa del bot.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Trader   TraderConfig   `yaml:"trader"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig son los parámetros del motor Turtle.
type StrategyConfig struct {
	System1EntryPeriod int     `yaml:"system1_entry_period"`
	System1ExitPeriod  int     `yaml:"system1_exit_period"`
	System2EntryPeriod int     `yaml:"system2_entry_period"`
	System2ExitPeriod  int     `yaml:"system2_exit_period"`
	NPeriod            int     `yaml:"n_period"`
	MaxUnits           int     `yaml:"max_units"`
	BaseUnitPercent    float64 `yaml:"base_unit_percent"`
	PyramidN           float64 `yaml:"pyramid_n"`
	StopN              float64 `yaml:"stop_n"`
	MaxPositionPercent float64 `yaml:"max_position_percent"` // 0 = sin límite
}

// TraderConfig controla el loop de trading y el broker de papel.
type TraderConfig struct {
	Markets         []string `yaml:"markets"`
	Quote           string   `yaml:"quote"`
	IntervalSeconds int      `yaml:"interval_seconds"`
	Workers         int      `yaml:"workers"` // 0 = un worker por mercado
	InitialCapital  float64  `yaml:"initial_capital"`
	FeeRate         float64  `yaml:"fee_rate"` // fracción del nocional, p.ej. 0.0025
}

// ExchangeConfig contiene el base URL de la API pública.
type ExchangeConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el listener de Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // p.ej. ":9090"; vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica un documento YAML y aplica entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.StrategyParams().Validate(); err != nil {
		return nil, fmt.Errorf("config.Parse: strategy: %w", err)
	}
	return &cfg, nil
}

// StrategyParams convierte la sección strategy en parámetros del motor.
func (c *Config) StrategyParams() strategy.Params {
	s := c.Strategy
	return strategy.Params{
		System1EntryPeriod: s.System1EntryPeriod,
		System1ExitPeriod:  s.System1ExitPeriod,
		System2EntryPeriod: s.System2EntryPeriod,
		System2ExitPeriod:  s.System2ExitPeriod,
		NPeriod:            s.NPeriod,
		MaxUnits:           s.MaxUnits,
		BaseUnitPercent:    s.BaseUnitPercent,
		PyramidN:           s.PyramidN,
		StopN:              s.StopN,
		MaxPositionPercent: s.MaxPositionPercent,
	}
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Trader.IntervalSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TURTLE_MARKETS"); v != "" {
		cfg.Trader.Markets = splitList(v)
	}
	if v := os.Getenv("TURTLE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("TURTLE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los periodos a cero toman los valores clásicos de la estrategia.
func setDefaults(cfg *Config) {
	def := strategy.DefaultParams()
	s := &cfg.Strategy
	if s.System1EntryPeriod <= 0 {
		s.System1EntryPeriod = def.System1EntryPeriod
	}
	if s.System1ExitPeriod <= 0 {
		s.System1ExitPeriod = def.System1ExitPeriod
	}
	if s.System2EntryPeriod <= 0 {
		s.System2EntryPeriod = def.System2EntryPeriod
	}
	if s.System2ExitPeriod <= 0 {
		s.System2ExitPeriod = def.System2ExitPeriod
	}
	if s.NPeriod <= 0 {
		s.NPeriod = def.NPeriod
	}
	if s.MaxUnits <= 0 {
		s.MaxUnits = def.MaxUnits
	}
	if s.BaseUnitPercent <= 0 {
		s.BaseUnitPercent = def.BaseUnitPercent
	}
	if s.PyramidN <= 0 {
		s.PyramidN = def.PyramidN
	}
	if s.StopN <= 0 {
		s.StopN = def.StopN
	}

	if len(cfg.Trader.Markets) == 0 {
		cfg.Trader.Markets = []string{"KRW-BTC"}
	}
	if cfg.Trader.Quote == "" {
		cfg.Trader.Quote = "KRW"
	}
	if cfg.Trader.IntervalSeconds <= 0 {
		cfg.Trader.IntervalSeconds = 60
	}
	if cfg.Trader.InitialCapital <= 0 {
		cfg.Trader.InitialCapital = 10_000_000
	}
	if cfg.Trader.FeeRate < 0 {
		cfg.Trader.FeeRate = 0
	}
	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://api.bithumb.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "turtlebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
