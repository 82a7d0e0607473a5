package telemetry

// prometheus.go — métricas del último run para el textfile collector de
// node_exporter. No hay servidor HTTP: el proceso es batch y escribe el
// archivo al terminar cada run.

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

var _ ports.MetricsRecorder = (*Recorder)(nil)

// Recorder guarda las métricas del run en un registry propio.
type Recorder struct {
	registry *prometheus.Registry
	path     string

	Runs        prometheus.Counter
	Trades      *prometheus.CounterVec
	Signals     *prometheus.GaugeVec
	FinalEquity prometheus.Gauge
	TotalReturn prometheus.Gauge
	MaxDrawdown prometheus.Gauge
	Sharpe      prometheus.Gauge
	Excluded    prometheus.Gauge
	OpenAtEnd   prometheus.Gauge
	Duration    prometheus.Gauge
}

// NewRecorder crea un Recorder. Si path está vacío, Record no escribe archivo.
func NewRecorder(path string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		path:     path,

		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swingbot_runs_total",
			Help: "Backtest runs recorded by this process",
		}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swingbot_trades_total",
			Help: "Closed trades by exit reason",
		}, []string{"reason"}),
		Signals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swingbot_signals",
			Help: "Entry signal outcomes of the last run",
		}, []string{"outcome"}),
		FinalEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_final_equity_dollars",
			Help: "Equity at the last simulated close",
		}),
		TotalReturn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_total_return_ratio",
			Help: "Total return of the last run",
		}),
		MaxDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_max_drawdown_ratio",
			Help: "Maximum peak-to-trough drawdown of the last run",
		}),
		Sharpe: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_sharpe_ratio",
			Help: "Annualized Sharpe ratio of the last run",
		}),
		Excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_excluded_symbols",
			Help: "Symbols excluded for data faults in the last run",
		}),
		OpenAtEnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_open_positions",
			Help: "Positions still open at the end of the last run",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swingbot_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
	}
	r.registry.MustRegister(
		r.Runs, r.Trades, r.Signals,
		r.FinalEquity, r.TotalReturn, r.MaxDrawdown, r.Sharpe,
		r.Excluded, r.OpenAtEnd, r.Duration,
	)
	return r
}

// Registry expone el registry (tests y handlers externos).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Record actualiza las métricas con run y, si hay path, escribe el textfile.
func (r *Recorder) Record(run *domain.RunResult) error {
	r.Runs.Inc()
	for _, reason := range domain.ExitReasons {
		r.Trades.WithLabelValues(string(reason)).Add(0)
	}
	for _, t := range run.Trades {
		r.Trades.WithLabelValues(string(t.ExitReason)).Inc()
	}

	c := run.Counters
	for outcome, n := range map[string]int{
		"trigger":        c.Triggers,
		"admitted":       c.Admitted,
		"rejected":       c.Rejected,
		"dropped_no_bar": c.DroppedNoBar,
		"dropped_held":   c.DroppedHeld,
		"deferred":       c.Deferred,
		"unfunded":       c.Unfunded,
	} {
		r.Signals.WithLabelValues(outcome).Set(float64(n))
	}

	r.FinalEquity.Set(run.Summary.FinalEquity)
	r.TotalReturn.Set(run.Summary.TotalReturn)
	r.MaxDrawdown.Set(run.Summary.MaxDrawdown)
	r.Sharpe.Set(run.Summary.Sharpe)
	r.Excluded.Set(float64(len(run.Faults)))
	r.OpenAtEnd.Set(float64(len(run.Open)))
	r.Duration.Set(run.Duration.Seconds())

	if r.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("telemetry.Record: write %s: %w", r.path, err)
	}
	return nil
}
