// Package performance deriva las métricas de resumen de una curva de equity y
// un ledger de trades.
package performance

import (
	"math"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// TradingDaysPerYear anualiza las cifras diarias.
const TradingDaysPerYear = 252

// Summarize calcula las métricas del run a partir de curve y trades, sin
// re-simular.
//
// ProfitFactor es +Inf con ganadores y sin perdedores, y 0 sin trades.
func Summarize(curve []domain.PortfolioState, trades []domain.Trade, startingCash float64) domain.Summary {
	s := domain.Summary{
		StartingCash: startingCash,
		FinalEquity:  startingCash,
		TradeCount:   len(trades),
		TradingDays:  len(curve),
	}
	if len(curve) > 0 {
		s.FinalEquity = curve[len(curve)-1].Equity
	}
	if startingCash > 0 {
		s.TotalReturn = s.FinalEquity/startingCash - 1
	}

	years := float64(len(curve)) / TradingDaysPerYear
	if years > 0 && startingCash > 0 && s.FinalEquity > 0 {
		s.CAGR = math.Pow(s.FinalEquity/startingCash, 1/years) - 1
	}
	if years > 0 {
		s.TradesPerYear = float64(len(trades)) / years
	}

	s.MaxDrawdown = MaxDrawdown(curve, startingCash)
	s.Sharpe = Sharpe(DailyReturns(curve, startingCash))
	s.Exposure = exposure(curve)
	s.WinRate, s.ProfitFactor, s.AvgHoldingDays = tradeStats(trades)
	return s
}

// DailyReturns devuelve equity[i]/equity[i-1] - 1; el primer día se mide
// contra startingCash.
func DailyReturns(curve []domain.PortfolioState, startingCash float64) []float64 {
	out := make([]float64, 0, len(curve))
	prev := startingCash
	for _, p := range curve {
		if prev > 0 {
			out = append(out, p.Equity/prev-1)
		} else {
			out = append(out, 0)
		}
		prev = p.Equity
	}
	return out
}

// MaxDrawdown devuelve la mayor caída pico-valle como fracción positiva del
// pico.
func MaxDrawdown(curve []domain.PortfolioState, startingCash float64) float64 {
	peak := startingCash
	worst := 0.0
	for _, p := range curve {
		peak = max(peak, p.Equity)
		if peak > 0 {
			worst = max(worst, (peak-p.Equity)/peak)
		}
	}
	return worst
}

// Sharpe es el ratio de Sharpe anualizado de los retornos diarios, con tasa
// libre de riesgo 0 y desviación muestral. Es 0 con menos de dos retornos o
// sin varianza.
func Sharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

func exposure(curve []domain.PortfolioState) float64 {
	if len(curve) == 0 {
		return 0
	}
	invested := 0
	for _, p := range curve {
		if p.Positions > 0 {
			invested++
		}
	}
	return float64(invested) / float64(len(curve))
}

func tradeStats(trades []domain.Trade) (winRate, profitFactor, avgHolding float64) {
	if len(trades) == 0 {
		return 0, 0, 0
	}
	var wins int
	var won, lost float64
	var held int
	for _, t := range trades {
		held += t.HoldingDays
		switch {
		case t.NetPnL > 0:
			wins++
			won += t.NetPnL
		case t.NetPnL < 0:
			lost -= t.NetPnL
		}
	}
	winRate = float64(wins) / float64(len(trades))
	avgHolding = float64(held) / float64(len(trades))
	switch {
	case lost > 0:
		profitFactor = won / lost
	case won > 0:
		profitFactor = math.Inf(1)
	}
	return winRate, profitFactor, avgHolding
}
