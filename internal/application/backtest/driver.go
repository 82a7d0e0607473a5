package backtest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Run simula el universo preparado sobre su calendario. Para cada día T:
//
//	a) llena al open de T las entradas en cola desde T-1
//	b) evalúa y aplica las salidas de las posiciones abiertas
//	c) junta los triggers de T, los rankea contra la capacidad libre y deja
//	   en cola los admitidos para T+1
//	d) marca el portfolio al close de T
//
// Las entradas en cola el último día se descartan. El loop es secuencial y
// solo aquí se toca el ledger. El resultado lleva curva, trades y contadores;
// ID, tiempos y summary los completa quien llama.
func Run(prep *Prepared, cfg Config) (*domain.RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(prep.Calendar) == 0 {
		return nil, fmt.Errorf("backtest.Run: %w", domain.ErrBenchmarkMissing)
	}

	log := slog.Default().With("component", "backtest")
	ledger := NewLedger(cfg.StartingCash, cfg.MaxPositions, cfg.Friction())
	rules := cfg.ExitRules()
	last := len(prep.Calendar) - 1

	var (
		counters domain.SignalCounters
		staged   []Candidate
	)

	for d, date := range prep.Calendar {
		// a) fills al open de hoy
		if len(staged) > 0 {
			orders := make([]EntryOrder, 0, len(staged))
			for _, c := range staged {
				s, _ := prep.Lookup(c.Symbol)
				i, ok := s.At(date)
				if !ok {
					counters.DroppedNoBar++
					log.Debug("entry dropped, no bar on fill day", "symbol", c.Symbol, "date", date.Format(domain.DateLayout))
					continue
				}
				orders = append(orders, EntryOrder{Symbol: c.Symbol, Open: s.Frames[i].Open})
			}
			_, unfunded, err := ledger.ApplyEntries(date, orders)
			if err != nil {
				return nil, fmt.Errorf("backtest.Run: entries: %w", err)
			}
			counters.Unfunded += unfunded
			staged = nil
		}

		// b) salidas
		var exits []ExitDecision
		for _, sym := range ledger.HeldSymbols() {
			s, _ := prep.Lookup(sym)
			i, ok := s.At(date)
			if !ok {
				continue
			}
			pos, _ := ledger.Position(sym)
			if date.After(pos.EntryDate) {
				ledger.AgePosition(sym)
				pos, _ = ledger.Position(sym)
			}
			if dec, ok := rules.EvaluateExit(pos, s.Frames[i]); ok {
				exits = append(exits, dec)
			}
		}
		if d == last && cfg.ForceCloseAtEnd {
			exits = append(exits, forceClose(prep, ledger, exits, date)...)
		}
		if err := ledger.ApplyExits(date, exits); err != nil {
			return nil, fmt.Errorf("backtest.Run: exits: %w", err)
		}
		for _, e := range exits {
			log.Debug("exit", "symbol", e.Symbol, "date", date.Format(domain.DateLayout), "reason", e.Reason, "price", e.Price)
		}

		// c) triggers para mañana
		var cands []Candidate
		for _, s := range prep.Series {
			i, ok := s.At(date)
			if !ok || !s.Signals[i].EntryTrigger {
				continue
			}
			counters.Triggers++
			switch {
			case ledger.Holds(s.Symbol):
				counters.DroppedHeld++
			case d == last:
				counters.Deferred++
			default:
				cands = append(cands, Candidate{Symbol: s.Symbol, Score: s.Signals[i].ROC})
			}
		}
		if len(cands) > 0 {
			admitted, rejected := Admit(cands, ledger.OpenCount(), cfg.MaxPositions)
			counters.Admitted += len(admitted)
			counters.Rejected += len(rejected)
			staged = admitted
			log.Debug("entries staged",
				"date", date.Format(domain.DateLayout),
				"candidates", len(cands),
				"admitted", len(admitted),
				"rejected", len(rejected),
			)
		}

		// d) mark-to-market
		closes := make(map[string]float64, ledger.OpenCount())
		for _, sym := range ledger.HeldSymbols() {
			s, _ := prep.Lookup(sym)
			if i, ok := s.At(date); ok {
				closes[sym] = s.Frames[i].Close
			}
		}
		if err := ledger.MarkToMarket(date, closes); err != nil {
			return nil, fmt.Errorf("backtest.Run: mark: %w", err)
		}
	}

	res := &domain.RunResult{
		Benchmark: prep.Benchmark,
		Start:     prep.Calendar[0],
		End:       prep.Calendar[last],
		Symbols:   prep.Symbols(),
		Faults:    prep.Faults,
		Curve:     ledger.Curve(),
		Trades:    ledger.Trades(),
		Open:      ledger.OpenPositions(),
		Counters:  counters,
	}
	log.Info("backtest complete",
		"start", res.Start.Format(domain.DateLayout),
		"end", res.End.Format(domain.DateLayout),
		"symbols", len(res.Symbols),
		"trades", len(res.Trades),
		"open", len(res.Open),
		"final_equity", fmt.Sprintf("%.2f", res.FinalEquity()),
	)
	return res, nil
}

// forceClose cierra las posiciones que no salen ya, al close del día o al
// último close conocido si el símbolo no tiene barra ese día.
func forceClose(prep *Prepared, ledger *Ledger, exiting []ExitDecision, date time.Time) []ExitDecision {
	skip := make(map[string]bool, len(exiting))
	for _, e := range exiting {
		skip[e.Symbol] = true
	}
	var out []ExitDecision
	for _, sym := range ledger.HeldSymbols() {
		if skip[sym] {
			continue
		}
		pos, _ := ledger.Position(sym)
		price := pos.LastClose
		if s, ok := prep.Lookup(sym); ok {
			if i, ok := s.At(date); ok {
				price = s.Frames[i].Close
			}
		}
		out = append(out, ExitDecision{Symbol: sym, Reason: domain.ExitEndOfData, Price: price})
	}
	return out
}
