package domain

import "time"

// PortfolioState es el snapshot diario del portfolio tras el mark-to-market.
type PortfolioState struct {
	Date      time.Time
	Cash      float64
	Positions int
	Equity    float64 // cash + posiciones abiertas al close del día
}

// SignalCounters cuenta qué pasó con los triggers de entrada durante el run.
type SignalCounters struct {
	Triggers     int `json:"triggers"`       // triggers observados en días del calendario
	Admitted     int `json:"admitted"`       // pasaron el ranking, en cola para el open siguiente
	Rejected     int `json:"rejected"`       // descartados por capacidad
	DroppedNoBar int `json:"dropped_no_bar"` // en cola pero sin barra el día del fill
	DroppedHeld  int `json:"dropped_held"`   // trigger de un símbolo ya en cartera
	Deferred     int `json:"deferred"`       // trigger del último día, nunca se llena
	Unfunded     int `json:"unfunded"`       // cero acciones: cash o asignación insuficiente
}

// Summary contiene las métricas agregadas de un run.
type Summary struct {
	StartingCash   float64
	FinalEquity    float64
	TotalReturn    float64
	CAGR           float64
	MaxDrawdown    float64 // fracción positiva del pico
	Sharpe         float64
	WinRate        float64
	ProfitFactor   float64
	AvgHoldingDays float64
	TradesPerYear  float64
	Exposure       float64 // fracción de días con al menos una posición abierta
	TradeCount     int
	TradingDays    int
}

// RunResult es todo lo que produce un backtest. Las métricas se derivan de
// Curve y Trades sin re-simular.
type RunResult struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Benchmark  string
	ConfigJSON string // snapshot de los parámetros efectivos
	Start      time.Time
	End        time.Time
	Symbols    []string // símbolos que entraron en la simulación
	Faults     []DataFault
	Curve      []PortfolioState
	Trades     []Trade
	Open       []Position // posiciones abiertas tras el último día
	Counters   SignalCounters
	Summary    Summary
}

// FinalEquity devuelve el último equity de la curva, o 0.
func (r *RunResult) FinalEquity() float64 {
	if len(r.Curve) == 0 {
		return 0
	}
	return r.Curve[len(r.Curve)-1].Equity
}
