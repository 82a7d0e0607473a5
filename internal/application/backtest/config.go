package backtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/indicator"
	"github.com/alejandrodnm/swingbot/internal/signal"
)

// Config contiene todos los parámetros del core de backtest.
type Config struct {
	RegimeSMAWindow      int     `json:"regime_sma_window"`
	TrendFastSMA         int     `json:"trend_fast_sma"`
	TrendSlowSMA         int     `json:"trend_slow_sma"`
	EMAPeriod            int     `json:"ema_period"`
	RSIPeriod            int     `json:"rsi_period"`
	PullbackRSIThreshold float64 `json:"pullback_rsi_threshold"`
	PullbackLookbackDays int     `json:"pullback_lookback_days"`
	EntryRSIThreshold    float64 `json:"entry_rsi_threshold"`
	SetupExpiryDays      int     `json:"setup_expiry_days"`

	MaxPositions        int     `json:"max_positions"`
	HardStopPct         float64 `json:"hard_stop_pct"`
	HardStopOnEntryDay  bool    `json:"hard_stop_on_entry_day"`
	TimeStopDays        int     `json:"time_stop_days"`
	ProfitTargetPct     float64 `json:"profit_target_pct"`
	ProfitTargetEnabled bool    `json:"profit_target_enabled"`
	RankingMetric       string  `json:"ranking_metric"` // ROC_<n>

	SlippageBps      float64                `json:"slippage_bps"`
	CommissionModel  domain.CommissionModel `json:"commission_model"`
	CommissionAmount float64                `json:"commission_amount"`
	StartingCash     float64                `json:"starting_cash"`
	ForceCloseAtEnd  bool                   `json:"force_close_at_end"`

	// Ventana opcional sobre el calendario del benchmark. Los indicadores
	// hacen warm-up con las barras anteriores a Start.
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// DefaultConfig devuelve los defaults documentados.
func DefaultConfig() Config {
	return Config{
		RegimeSMAWindow:      200,
		TrendFastSMA:         50,
		TrendSlowSMA:         200,
		EMAPeriod:            20,
		RSIPeriod:            14,
		PullbackRSIThreshold: 35,
		PullbackLookbackDays: 5,
		EntryRSIThreshold:    45,
		SetupExpiryDays:      10,
		MaxPositions:         10,
		HardStopPct:          0.07,
		TimeStopDays:         20,
		ProfitTargetPct:      0.10,
		RankingMetric:        "ROC_63",
		SlippageBps:          2,
		CommissionModel:      domain.CommissionNone,
		StartingCash:         100_000,
	}
}

// Validate devuelve un *domain.ConfigFault con el primer parámetro inválido.
func (c Config) Validate() error {
	positive := []struct {
		field string
		v     int
	}{
		{"regime_sma_window", c.RegimeSMAWindow},
		{"trend_fast_sma", c.TrendFastSMA},
		{"trend_slow_sma", c.TrendSlowSMA},
		{"ema_period", c.EMAPeriod},
		{"rsi_period", c.RSIPeriod},
		{"pullback_lookback_days", c.PullbackLookbackDays},
		{"max_positions", c.MaxPositions},
		{"time_stop_days", c.TimeStopDays},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return &domain.ConfigFault{Field: p.field, Reason: fmt.Sprintf("must be > 0, got %d", p.v)}
		}
	}
	if c.SetupExpiryDays < 0 {
		return &domain.ConfigFault{Field: "setup_expiry_days", Reason: "must be >= 0"}
	}
	thresholds := []struct {
		field string
		v     float64
	}{
		{"pullback_rsi_threshold", c.PullbackRSIThreshold},
		{"entry_rsi_threshold", c.EntryRSIThreshold},
	}
	for _, t := range thresholds {
		if t.v < 0 || t.v > 100 {
			return &domain.ConfigFault{Field: t.field, Reason: fmt.Sprintf("must be within [0, 100], got %g", t.v)}
		}
	}
	if c.HardStopPct <= 0 || c.HardStopPct >= 1 {
		return &domain.ConfigFault{Field: "hard_stop_pct", Reason: fmt.Sprintf("must be within (0, 1), got %g", c.HardStopPct)}
	}
	if c.ProfitTargetEnabled && c.ProfitTargetPct <= 0 {
		return &domain.ConfigFault{Field: "profit_target_pct", Reason: "must be > 0 when the profit target is enabled"}
	}
	if _, err := c.RankingLookback(); err != nil {
		return &domain.ConfigFault{Field: "ranking_metric", Reason: err.Error()}
	}
	if c.SlippageBps < 0 {
		return &domain.ConfigFault{Field: "slippage_bps", Reason: "must be >= 0"}
	}
	if _, err := domain.ParseCommissionModel(string(c.CommissionModel)); err != nil {
		return &domain.ConfigFault{Field: "commission_model", Reason: err.Error()}
	}
	if c.CommissionAmount < 0 {
		return &domain.ConfigFault{Field: "commission_amount", Reason: "must be >= 0"}
	}
	if c.StartingCash <= 0 {
		return &domain.ConfigFault{Field: "starting_cash", Reason: "must be > 0"}
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return &domain.ConfigFault{Field: "end", Reason: "before start"}
	}
	return nil
}

// RankingLookback parsea RankingMetric ("ROC_63") a su lookback.
func (c Config) RankingLookback() (int, error) {
	n, ok := strings.CutPrefix(c.RankingMetric, "ROC_")
	if !ok {
		return 0, fmt.Errorf("unknown ranking metric %q", c.RankingMetric)
	}
	v, err := strconv.Atoi(n)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid lookback in %q", c.RankingMetric)
	}
	return v, nil
}

// Friction devuelve el modelo de slippage y comisión del ledger.
func (c Config) Friction() domain.Friction {
	return domain.Friction{
		SlippageBps:     c.SlippageBps,
		Commission:      c.CommissionModel,
		CommissionValue: c.CommissionAmount,
	}
}

// SymbolPeriods devuelve los lookbacks de los símbolos operables.
func (c Config) SymbolPeriods() indicator.Periods {
	p := indicator.DefaultPeriods()
	p.SMASlow = c.TrendSlowSMA
	p.SMAFast = c.TrendFastSMA
	p.EMA = c.EMAPeriod
	p.RSI = c.RSIPeriod
	p.ROC, _ = c.RankingLookback()
	return p
}

// BenchmarkPeriods devuelve los lookbacks del benchmark; su SMASlow es la
// ventana de régimen.
func (c Config) BenchmarkPeriods() indicator.Periods {
	p := c.SymbolPeriods()
	p.SMASlow = c.RegimeSMAWindow
	return p
}

// SignalParams devuelve los umbrales del motor de señales.
func (c Config) SignalParams() signal.Params {
	return signal.Params{
		PullbackRSI:      c.PullbackRSIThreshold,
		PullbackLookback: c.PullbackLookbackDays,
		EntryRSI:         c.EntryRSIThreshold,
		SetupExpiryDays:  c.SetupExpiryDays,
	}
}

// ExitRules devuelve los umbrales de salida.
func (c Config) ExitRules() ExitRules {
	return ExitRules{
		HardStopPct:         c.HardStopPct,
		HardStopOnEntryDay:  c.HardStopOnEntryDay,
		TimeStopDays:        c.TimeStopDays,
		ProfitTargetPct:     c.ProfitTargetPct,
		ProfitTargetEnabled: c.ProfitTargetEnabled,
	}
}
