package domain

import "time"

// ExitReason identifica la regla de salida que cerró una posición.
type ExitReason string

const (
	ExitHardStop     ExitReason = "hard_stop"
	ExitTrendBreak   ExitReason = "trend_break"
	ExitTimeStop     ExitReason = "time_stop"
	ExitProfitTarget ExitReason = "profit_target"
	ExitEndOfData    ExitReason = "end_of_data"
)

// ExitReasons lista las razones en orden de precedencia, end_of_data al final.
var ExitReasons = []ExitReason{
	ExitHardStop,
	ExitTrendBreak,
	ExitTimeStop,
	ExitProfitTarget,
	ExitEndOfData,
}

// Position es una posición abierta, propiedad del ledger.
type Position struct {
	Symbol     string
	EntryDate  time.Time
	EntryPrice float64 // precio de fill con slippage
	Shares     int64
	EntryCost  float64 // shares * precio de entrada + comisión
	HighWater  float64 // close más alto desde la entrada
	DaysHeld   int     // barras del símbolo tras el día de entrada
	LastClose  float64 // último close crudo conocido, para el mark-to-market
}

// MarketValue valora las acciones al último close conocido.
func (p Position) MarketValue() float64 {
	return float64(p.Shares) * p.LastClose
}

// Trade es el registro inmutable de una posición cerrada.
type Trade struct {
	Symbol      string
	EntryDate   time.Time
	EntryPrice  float64
	ExitDate    time.Time
	ExitPrice   float64
	Shares      int64
	ExitReason  ExitReason
	GrossPnL    float64 // (exit - entry) * shares, con slippage
	NetPnL      float64 // gross menos comisiones de entrada y salida
	HoldingDays int
	Commission  float64
}

// ReturnPct devuelve el PnL neto sobre el coste de entrada.
func (t Trade) ReturnPct() float64 {
	cost := t.EntryPrice * float64(t.Shares)
	if cost == 0 {
		return 0
	}
	return t.NetPnL / cost
}
