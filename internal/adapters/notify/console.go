package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Format del reporte de consola.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var _ ports.Notifier = (*Console)(nil)

// Console implementa ports.Notifier.
type Console struct {
	out       io.Writer
	format    Format
	maxTrades int // 0 = todos
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(format Format, maxTrades int) *Console {
	return NewConsoleWriter(os.Stdout, format, maxTrades)
}

// NewConsoleWriter crea un notificador sobre w (tests).
func NewConsoleWriter(w io.Writer, format Format, maxTrades int) *Console {
	if format == "" {
		format = FormatText
	}
	return &Console{out: w, format: format, maxTrades: maxTrades}
}

// Notify imprime el run en el formato configurado.
func (c *Console) Notify(_ context.Context, run *domain.RunResult) error {
	if c.format == FormatJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newReport(run)); err != nil {
			return fmt.Errorf("notify.Notify: encode json: %w", err)
		}
		return nil
	}

	c.printHeader(run)
	c.printSummary(run.Summary)
	c.printCounters(run.Counters)
	c.printTrades(run.Trades)
	c.printOpen(run.Open)
	c.printFaults(run.Faults)
	return nil
}

func (c *Console) printHeader(run *domain.RunResult) {
	fmt.Fprintf(c.out, "\n=== BACKTEST %s ===\n", run.ID)
	fmt.Fprintf(c.out, "  %s → %s | benchmark %s | %d symbols | %d excluded",
		day(run.Start), day(run.End), run.Benchmark, len(run.Symbols), len(run.Faults))
	if run.Duration > 0 {
		fmt.Fprintf(c.out, " | %s", run.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printSummary(s domain.Summary) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	rows := [][2]string{
		{"Starting cash", fmt.Sprintf("$%.2f", s.StartingCash)},
		{"Final equity", fmt.Sprintf("$%.2f", s.FinalEquity)},
		{"Total return", pct(s.TotalReturn)},
		{"CAGR", pct(s.CAGR)},
		{"Max drawdown", pct(s.MaxDrawdown)},
		{"Sharpe", fmt.Sprintf("%.2f", s.Sharpe)},
		{"Trades", fmt.Sprintf("%d", s.TradeCount)},
		{"Win rate", pct(s.WinRate)},
		{"Profit factor", profitFactor(s.ProfitFactor)},
		{"Avg holding days", fmt.Sprintf("%.1f", s.AvgHoldingDays)},
		{"Trades / year", fmt.Sprintf("%.1f", s.TradesPerYear)},
		{"Exposure", pct(s.Exposure)},
		{"Trading days", fmt.Sprintf("%d", s.TradingDays)},
	}
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	table.Render()
}

func (c *Console) printCounters(k domain.SignalCounters) {
	fmt.Fprintf(c.out, "  signals: triggers=%d admitted=%d rejected=%d held=%d no_bar=%d deferred=%d unfunded=%d\n",
		k.Triggers, k.Admitted, k.Rejected, k.DroppedHeld, k.DroppedNoBar, k.Deferred, k.Unfunded)
}

func (c *Console) printTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintf(c.out, "\n  No trades\n")
		return
	}
	shown := trades
	if c.maxTrades > 0 && len(shown) > c.maxTrades {
		shown = shown[len(shown)-c.maxTrades:]
	}

	fmt.Fprintf(c.out, "\n=== TRADES (%d of %d) ===\n", len(shown), len(trades))
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Entry", "Exit", "Shares", "Entry$", "Exit$", "Net P&L", "Return", "Days", "Reason")
	for _, t := range shown {
		table.Append(
			t.Symbol,
			day(t.EntryDate),
			day(t.ExitDate),
			fmt.Sprintf("%d", t.Shares),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%+.2f", t.NetPnL),
			pct(t.ReturnPct()),
			fmt.Sprintf("%d", t.HoldingDays),
			string(t.ExitReason),
		)
	}
	table.Render()

	byReason := make(map[domain.ExitReason]int)
	for _, t := range trades {
		byReason[t.ExitReason]++
	}
	var parts []string
	for _, r := range domain.ExitReasons {
		if n := byReason[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	fmt.Fprintf(c.out, "  exits: %s\n", strings.Join(parts, " "))
}

func (c *Console) printOpen(open []domain.Position) {
	if len(open) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== OPEN POSITIONS (%d) ===\n", len(open))
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Entry", "Shares", "Entry$", "Last", "Value", "Days")
	for _, p := range open {
		table.Append(
			p.Symbol,
			day(p.EntryDate),
			fmt.Sprintf("%d", p.Shares),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.LastClose),
			fmt.Sprintf("$%.2f", p.MarketValue()),
			fmt.Sprintf("%d", p.DaysHeld),
		)
	}
	table.Render()
}

func (c *Console) printFaults(faults []domain.DataFault) {
	if len(faults) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== EXCLUDED SYMBOLS (%d) ===\n", len(faults))
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Date", "Reason")
	for _, f := range faults {
		table.Append(f.Symbol, day(f.Date), f.Reason)
	}
	table.Render()
}

// PrintRuns imprime la lista de runs persistidos.
func (c *Console) PrintRuns(runs []domain.RunResult) {
	if len(runs) == 0 {
		fmt.Fprintf(c.out, "No runs stored\n")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Window", "Symbols", "Trades", "Final equity", "Return", "Max DD", "Sharpe")
	for _, r := range runs {
		table.Append(
			r.ID,
			day(r.Start)+" → "+day(r.End),
			fmt.Sprintf("%d", len(r.Symbols)),
			fmt.Sprintf("%d", r.Summary.TradeCount),
			fmt.Sprintf("$%.2f", r.Summary.FinalEquity),
			pct(r.Summary.TotalReturn),
			pct(r.Summary.MaxDrawdown),
			fmt.Sprintf("%.2f", r.Summary.Sharpe),
		)
	}
	table.Render()
}

// --- JSON ---

// report es la vista JSON del run. ProfitFactor es null cuando es infinito.
type report struct {
	ID        string                `json:"id"`
	Benchmark string                `json:"benchmark"`
	Start     string                `json:"start"`
	End       string                `json:"end"`
	Symbols   int                   `json:"symbols"`
	Summary   summaryView           `json:"summary"`
	Counters  domain.SignalCounters `json:"counters"`
	Trades    []tradeView           `json:"trades"`
	Faults    []faultView           `json:"faults,omitempty"`
}

type summaryView struct {
	StartingCash   float64  `json:"starting_cash"`
	FinalEquity    float64  `json:"final_equity"`
	TotalReturn    float64  `json:"total_return"`
	CAGR           float64  `json:"cagr"`
	MaxDrawdown    float64  `json:"max_drawdown"`
	Sharpe         float64  `json:"sharpe"`
	WinRate        float64  `json:"win_rate"`
	ProfitFactor   *float64 `json:"profit_factor"`
	AvgHoldingDays float64  `json:"avg_holding_days"`
	TradesPerYear  float64  `json:"trades_per_year"`
	Exposure       float64  `json:"exposure"`
	TradeCount     int      `json:"trade_count"`
}

type tradeView struct {
	Symbol      string  `json:"symbol"`
	EntryDate   string  `json:"entry_date"`
	ExitDate    string  `json:"exit_date"`
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	Shares      int64   `json:"shares"`
	NetPnL      float64 `json:"net_pnl"`
	HoldingDays int     `json:"holding_days"`
	ExitReason  string  `json:"exit_reason"`
}

type faultView struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date,omitempty"`
	Reason string `json:"reason"`
}

func newReport(run *domain.RunResult) report {
	s := run.Summary
	r := report{
		ID:        run.ID,
		Benchmark: run.Benchmark,
		Start:     day(run.Start),
		End:       day(run.End),
		Symbols:   len(run.Symbols),
		Counters:  run.Counters,
		Summary: summaryView{
			StartingCash:   s.StartingCash,
			FinalEquity:    s.FinalEquity,
			TotalReturn:    s.TotalReturn,
			CAGR:           s.CAGR,
			MaxDrawdown:    s.MaxDrawdown,
			Sharpe:         s.Sharpe,
			WinRate:        s.WinRate,
			AvgHoldingDays: s.AvgHoldingDays,
			TradesPerYear:  s.TradesPerYear,
			Exposure:       s.Exposure,
			TradeCount:     s.TradeCount,
		},
		Trades: make([]tradeView, 0, len(run.Trades)),
	}
	if !math.IsInf(s.ProfitFactor, 0) && !math.IsNaN(s.ProfitFactor) {
		pf := s.ProfitFactor
		r.Summary.ProfitFactor = &pf
	}
	for _, t := range run.Trades {
		r.Trades = append(r.Trades, tradeView{
			Symbol:      t.Symbol,
			EntryDate:   day(t.EntryDate),
			ExitDate:    day(t.ExitDate),
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			Shares:      t.Shares,
			NetPnL:      t.NetPnL,
			HoldingDays: t.HoldingDays,
			ExitReason:  string(t.ExitReason),
		})
	}
	for _, f := range run.Faults {
		r.Faults = append(r.Faults, faultView{Symbol: f.Symbol, Date: day(f.Date), Reason: f.Reason})
	}
	return r
}

// --- helpers internos ---

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func profitFactor(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", v)
}
