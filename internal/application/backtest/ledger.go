package backtest

import (
	"fmt"
	"slices"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// EntryOrder es una entrada admitida que se llena a Open (nominal, sin
// slippage).
type EntryOrder struct {
	Symbol string
	Open   float64
}

// Ledger es dueño del cash, las posiciones, los trades cerrados y la curva.
// Solo el driver lo muta; cada mutación comprueba los invariantes y reporta
// una violación como *domain.StateFault.
type Ledger struct {
	capacity     int
	friction     domain.Friction
	startingCash float64
	cash         float64
	positions    map[string]*domain.Position
	trades       []domain.Trade
	curve        []domain.PortfolioState
}

// NewLedger crea un ledger con el cash inicial y sin posiciones.
func NewLedger(startingCash float64, capacity int, friction domain.Friction) *Ledger {
	return &Ledger{
		capacity:     capacity,
		friction:     friction,
		startingCash: startingCash,
		cash:         startingCash,
		positions:    make(map[string]*domain.Position),
	}
}

// Cash devuelve el cash disponible.
func (l *Ledger) Cash() float64 { return l.cash }

// OpenCount devuelve el número de posiciones abiertas.
func (l *Ledger) OpenCount() int { return len(l.positions) }

// Holds indica si symbol tiene posición abierta.
func (l *Ledger) Holds(symbol string) bool {
	_, ok := l.positions[symbol]
	return ok
}

// Equity devuelve el último equity marcado, o el cash inicial antes del
// primer mark.
func (l *Ledger) Equity() float64 {
	if len(l.curve) == 0 {
		return l.startingCash
	}
	return l.curve[len(l.curve)-1].Equity
}

// HeldSymbols devuelve los símbolos abiertos en orden ascendente.
func (l *Ledger) HeldSymbols() []string {
	syms := make([]string, 0, len(l.positions))
	for s := range l.positions {
		syms = append(syms, s)
	}
	slices.Sort(syms)
	return syms
}

// Position devuelve una copia de la posición abierta de symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// OpenPositions devuelve copias de las posiciones abiertas ordenadas por símbolo.
func (l *Ledger) OpenPositions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, s := range l.HeldSymbols() {
		out = append(out, *l.positions[s])
	}
	return out
}

// Trades devuelve los trades cerrados en orden de cierre.
func (l *Ledger) Trades() []domain.Trade { return slices.Clone(l.trades) }

// Curve devuelve los estados diarios del portfolio.
func (l *Ledger) Curve() []domain.PortfolioState { return slices.Clone(l.curve) }

// AgePosition suma una barra más a la posición de symbol.
func (l *Ledger) AgePosition(symbol string) {
	if p, ok := l.positions[symbol]; ok {
		p.DaysHeld++
	}
}

// ApplyEntries llena las órdenes a su open con slippage de compra. Cada
// posición apunta a equity/capacity, limitado al cash restante: el tamaño no
// depende del orden salvo que falte cash. Las órdenes que no llegan a una
// acción se saltan y cuentan en unfunded.
func (l *Ledger) ApplyEntries(date time.Time, orders []EntryOrder) (filled, unfunded int, err error) {
	target := l.Equity() / float64(l.capacity)
	for _, o := range orders {
		if l.Holds(o.Symbol) {
			return filled, unfunded, &domain.StateFault{Date: date, Reason: fmt.Sprintf("entry for held symbol %s", o.Symbol)}
		}
		if len(l.positions) >= l.capacity {
			return filled, unfunded, &domain.StateFault{Date: date, Reason: fmt.Sprintf("entry for %s exceeds capacity %d", o.Symbol, l.capacity)}
		}

		price := l.friction.BuyPrice(o.Open)
		shares := l.friction.SharesFor(min(target, l.cash), price)
		if shares == 0 {
			unfunded++
			continue
		}
		cost := float64(shares)*price + l.friction.CommissionFor(shares)
		l.cash -= cost
		if l.cash < 0 {
			return filled, unfunded, &domain.StateFault{Date: date, Reason: fmt.Sprintf("negative cash %.2f after buying %s", l.cash, o.Symbol)}
		}
		l.positions[o.Symbol] = &domain.Position{
			Symbol:     o.Symbol,
			EntryDate:  date,
			EntryPrice: price,
			Shares:     shares,
			EntryCost:  cost,
			HighWater:  o.Open,
			LastClose:  o.Open,
		}
		filled++
	}
	return filled, unfunded, nil
}

// ApplyExits cierra posiciones a su precio de decisión con slippage de venta
// y añade un Trade por cada una.
func (l *Ledger) ApplyExits(date time.Time, decisions []ExitDecision) error {
	seen := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		if seen[d.Symbol] {
			return &domain.StateFault{Date: date, Reason: fmt.Sprintf("duplicate exit for %s", d.Symbol)}
		}
		seen[d.Symbol] = true

		p, ok := l.positions[d.Symbol]
		if !ok {
			return &domain.StateFault{Date: date, Reason: fmt.Sprintf("exit for %s without an open position", d.Symbol)}
		}

		price := l.friction.SellPrice(d.Price)
		exitComm := l.friction.CommissionFor(p.Shares)
		entryComm := p.EntryCost - float64(p.Shares)*p.EntryPrice
		gross := (price - p.EntryPrice) * float64(p.Shares)

		l.cash += float64(p.Shares)*price - exitComm
		if l.cash < 0 {
			return &domain.StateFault{Date: date, Reason: fmt.Sprintf("negative cash %.2f after selling %s", l.cash, d.Symbol)}
		}
		l.trades = append(l.trades, domain.Trade{
			Symbol:      p.Symbol,
			EntryDate:   p.EntryDate,
			EntryPrice:  p.EntryPrice,
			ExitDate:    date,
			ExitPrice:   price,
			Shares:      p.Shares,
			ExitReason:  d.Reason,
			GrossPnL:    gross,
			NetPnL:      gross - entryComm - exitComm,
			HoldingDays: p.DaysHeld,
			Commission:  entryComm + exitComm,
		})
		delete(l.positions, d.Symbol)
	}
	return nil
}

// MarkToMarket valora las posiciones a closes (sin barra se usa el último
// close conocido) y añade el día a la curva.
func (l *Ledger) MarkToMarket(date time.Time, closes map[string]float64) error {
	if l.cash < 0 {
		return &domain.StateFault{Date: date, Reason: fmt.Sprintf("negative cash %.2f", l.cash)}
	}
	if len(l.positions) > l.capacity {
		return &domain.StateFault{Date: date, Reason: fmt.Sprintf("%d open positions exceed capacity %d", len(l.positions), l.capacity)}
	}

	equity := l.cash
	for _, s := range l.HeldSymbols() {
		p := l.positions[s]
		if c, ok := closes[s]; ok {
			p.LastClose = c
			p.HighWater = max(p.HighWater, c)
		}
		equity += p.MarketValue()
	}
	l.curve = append(l.curve, domain.PortfolioState{
		Date:      date,
		Cash:      l.cash,
		Positions: len(l.positions),
		Equity:    equity,
	})
	return nil
}
