package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Config es la configuración completa de swingbot.
type Config struct {
	Strategy  StrategyConfig  `yaml:"strategy"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Run       RunConfig       `yaml:"run"`
	Data      DataConfig      `yaml:"data"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// StrategyConfig contiene las reglas de señales y salidas.
type StrategyConfig struct {
	RegimeSMAWindow      int                `yaml:"regime_sma_window"`
	TrendFastSMA         int                `yaml:"trend_fast_sma"`
	TrendSlowSMA         int                `yaml:"trend_slow_sma"`
	EMAPeriod            int                `yaml:"ema_period"`
	RSIPeriod            int                `yaml:"rsi_period"`
	PullbackRSIThreshold float64            `yaml:"pullback_rsi_threshold"`
	PullbackLookbackDays int                `yaml:"pullback_lookback_days"`
	EntryRSIThreshold    float64            `yaml:"entry_rsi_threshold"`
	SetupExpiryDays      int                `yaml:"setup_expiry_days"` // 0 = el setup solo vive mientras el pullback esté activo
	HardStopPct          float64            `yaml:"hard_stop_pct"`
	TimeStopDays         int                `yaml:"time_stop_days"`
	RankingMetric        string             `yaml:"ranking_metric"` // ROC_<n>
	ProfitTarget         ProfitTargetConfig `yaml:"profit_target"`
}

// ProfitTargetConfig controla la salida opcional por objetivo de beneficio.
type ProfitTargetConfig struct {
	Enabled bool    `yaml:"enabled"`
	Pct     float64 `yaml:"pct"`
}

// PortfolioConfig controla capital, capacidad y fricción.
type PortfolioConfig struct {
	StartingCash float64          `yaml:"starting_cash"`
	MaxPositions int              `yaml:"max_positions"`
	SlippageBps  float64          `yaml:"slippage_bps"`
	Commission   CommissionConfig `yaml:"commission"`
}

// CommissionConfig es el modelo de comisión: none | flat | per_share.
type CommissionConfig struct {
	Model  string  `yaml:"model"`
	Amount float64 `yaml:"amount"`
}

// RunConfig define qué y cuándo se simula.
type RunConfig struct {
	Benchmark          string         `yaml:"benchmark"`
	Universe           UniverseConfig `yaml:"universe"`
	Start              string         `yaml:"start"`       // YYYY-MM-DD, vacío = primer día con datos
	End                string         `yaml:"end"`         // YYYY-MM-DD, vacío = último día con datos
	WarmupDays         int            `yaml:"warmup_days"` // días naturales de historia antes de start
	Workers            int            `yaml:"workers"`     // 0 = NumCPU
	ForceCloseAtEnd    bool           `yaml:"force_close_at_end"`
	HardStopOnEntryDay bool           `yaml:"hard_stop_on_entry_day"`
}

// UniverseConfig apunta a los archivos de tickers.
type UniverseConfig struct {
	TickersFile        string `yaml:"tickers_file"`
	IncludeFile        string `yaml:"include_file"`
	ExcludeFile        string `yaml:"exclude_file"`
	ResolvedOutputFile string `yaml:"resolved_output_file"`
}

// DataConfig controla de dónde salen las barras.
type DataConfig struct {
	Source       string       `yaml:"source"` // parquet | alpaca
	DataDir      string       `yaml:"data_dir"`
	FetchStart   string       `yaml:"fetch_start"` // YYYY-MM-DD para `swingbot fetch`
	FetchWorkers int          `yaml:"fetch_workers"`
	Alpaca       AlpacaConfig `yaml:"alpaca"`
}

// AlpacaConfig contiene credenciales y ritmo de la market-data API.
type AlpacaConfig struct {
	APIKey            string `yaml:"api_key"`    // o APCA_API_KEY_ID en .env
	APISecret         string `yaml:"api_secret"` // o APCA_API_SECRET_KEY en .env
	BaseURL           string `yaml:"base_url"`
	Feed              string `yaml:"feed"` // iex | sip
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	BatchSize         int    `yaml:"batch_size"`
}

// StorageConfig controla dónde se persisten los runs.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el textfile de Prometheus.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // vacío = desactivado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las claves ausentes del YAML conservan los defaults documentados.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default devuelve la configuración con los defaults del core.
func Default() *Config {
	bt := backtest.DefaultConfig()
	cfg := &Config{
		Strategy: StrategyConfig{
			RegimeSMAWindow:      bt.RegimeSMAWindow,
			TrendFastSMA:         bt.TrendFastSMA,
			TrendSlowSMA:         bt.TrendSlowSMA,
			EMAPeriod:            bt.EMAPeriod,
			RSIPeriod:            bt.RSIPeriod,
			PullbackRSIThreshold: bt.PullbackRSIThreshold,
			PullbackLookbackDays: bt.PullbackLookbackDays,
			EntryRSIThreshold:    bt.EntryRSIThreshold,
			SetupExpiryDays:      bt.SetupExpiryDays,
			HardStopPct:          bt.HardStopPct,
			TimeStopDays:         bt.TimeStopDays,
			RankingMetric:        bt.RankingMetric,
			ProfitTarget:         ProfitTargetConfig{Enabled: bt.ProfitTargetEnabled, Pct: bt.ProfitTargetPct},
		},
		Portfolio: PortfolioConfig{
			StartingCash: bt.StartingCash,
			MaxPositions: bt.MaxPositions,
			SlippageBps:  bt.SlippageBps,
			Commission:   CommissionConfig{Model: string(bt.CommissionModel), Amount: bt.CommissionAmount},
		},
		Run: RunConfig{
			ForceCloseAtEnd:    bt.ForceCloseAtEnd,
			HardStopOnEntryDay: bt.HardStopOnEntryDay,
		},
	}
	setDefaults(cfg)
	return cfg
}

// BacktestConfig traduce la configuración del archivo al Config del core.
// No valida reglas: eso lo hace backtest.Config.Validate.
func (c *Config) BacktestConfig() (backtest.Config, error) {
	start, err := c.StartDate()
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := c.EndDate()
	if err != nil {
		return backtest.Config{}, err
	}

	s, p := c.Strategy, c.Portfolio
	return backtest.Config{
		RegimeSMAWindow:      s.RegimeSMAWindow,
		TrendFastSMA:         s.TrendFastSMA,
		TrendSlowSMA:         s.TrendSlowSMA,
		EMAPeriod:            s.EMAPeriod,
		RSIPeriod:            s.RSIPeriod,
		PullbackRSIThreshold: s.PullbackRSIThreshold,
		PullbackLookbackDays: s.PullbackLookbackDays,
		EntryRSIThreshold:    s.EntryRSIThreshold,
		SetupExpiryDays:      s.SetupExpiryDays,
		MaxPositions:         p.MaxPositions,
		HardStopPct:          s.HardStopPct,
		HardStopOnEntryDay:   c.Run.HardStopOnEntryDay,
		TimeStopDays:         s.TimeStopDays,
		ProfitTargetPct:      s.ProfitTarget.Pct,
		ProfitTargetEnabled:  s.ProfitTarget.Enabled,
		RankingMetric:        s.RankingMetric,
		SlippageBps:          p.SlippageBps,
		CommissionModel:      domain.CommissionModel(p.Commission.Model),
		CommissionAmount:     p.Commission.Amount,
		StartingCash:         p.StartingCash,
		ForceCloseAtEnd:      c.Run.ForceCloseAtEnd,
		Start:                start,
		End:                  end,
	}, nil
}

// StartDate devuelve run.start, o cero si está vacío.
func (c *Config) StartDate() (time.Time, error) {
	return parseDate("start", c.Run.Start)
}

// EndDate devuelve run.end, o cero si está vacío.
func (c *Config) EndDate() (time.Time, error) {
	return parseDate("end", c.Run.End)
}

// HistoryStart es el primer día de barras a cargar: start menos el warmup.
// Cero si start está vacío (se carga toda la historia).
func (c *Config) HistoryStart() (time.Time, error) {
	start, err := c.StartDate()
	if err != nil || start.IsZero() {
		return start, err
	}
	return start.AddDate(0, 0, -c.Run.WarmupDays), nil
}

// FetchStartDate devuelve data.fetch_start.
func (c *Config) FetchStartDate() (time.Time, error) {
	return parseDate("fetch_start", c.Data.FetchStart)
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDay(s)
	if err != nil {
		return time.Time{}, &domain.ConfigFault{Field: field, Reason: err.Error()}
	}
	return t, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Data.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Data.Alpaca.APISecret = v
	}
	if v := os.Getenv("SWINGBOT_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SWINGBOT_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Run.Benchmark == "" {
		cfg.Run.Benchmark = "SPY"
	}
	cfg.Run.Benchmark = domain.NormalizeSymbol(cfg.Run.Benchmark)
	if cfg.Run.WarmupDays <= 0 {
		cfg.Run.WarmupDays = 400 // ~275 sesiones: cubre SMA200 + ROC63
	}
	if cfg.Portfolio.Commission.Model == "" {
		cfg.Portfolio.Commission.Model = string(domain.CommissionNone)
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = "parquet"
	}
	if cfg.Data.DataDir == "" {
		cfg.Data.DataDir = "data"
	}
	if cfg.Data.FetchWorkers <= 0 {
		cfg.Data.FetchWorkers = 4
	}
	if cfg.Data.Alpaca.Feed == "" {
		cfg.Data.Alpaca.Feed = "iex"
	}
	if cfg.Data.Alpaca.RequestsPerMinute <= 0 {
		cfg.Data.Alpaca.RequestsPerMinute = 180 // 90% del límite free tier (200/min)
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "swingbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
