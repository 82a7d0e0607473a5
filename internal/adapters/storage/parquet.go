package storage

// parquet.go — cache local de barras diarias.
//
// Layout: <dir>/us/daily/<SYMBOL>/<YYYY>.parquet, un archivo por símbolo y
// año. Escribir fusiona con lo existente y deduplica por fecha (gana lo nuevo).

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

var (
	_ ports.BarSource = (*ParquetBars)(nil)
	_ ports.BarSink   = (*ParquetBars)(nil)
)

// BarRecord es el schema en disco de una barra diaria.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, medianoche UTC
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	AdjClose  float64 `parquet:"adj_close"`
	Volume    int64   `parquet:"volume"`
}

// ParquetBars lee y escribe barras en archivos Parquet bajo DataDir.
type ParquetBars struct {
	DataDir string
	Market  string
}

// NewParquetBars crea un ParquetBars para el mercado "us".
func NewParquetBars(dataDir string) *ParquetBars {
	return &ParquetBars{DataDir: dataDir, Market: "us"}
}

// WriteBars fusiona bars en los archivos anuales del símbolo.
func (p *ParquetBars) WriteBars(_ context.Context, symbol string, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = domain.NormalizeSymbol(symbol)

	byYear := make(map[int][]BarRecord)
	for _, b := range bars {
		d := domain.Day(b.Date)
		byYear[d.Year()] = append(byYear[d.Year()], BarRecord{
			Symbol:    symbol,
			Timestamp: d.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			AdjClose:  b.AdjClose,
			Volume:    b.Volume,
		})
	}

	for year, records := range byYear {
		path := p.barPath(symbol, year)
		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage.WriteBars: read %s/%d: %w", symbol, year, err)
		}
		if err := writeParquetFile(path, mergeBarRecords(existing, records)); err != nil {
			return fmt.Errorf("storage.WriteBars: write %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadBars devuelve las barras de symbol en [start, end], ordenadas por fecha.
// Un start o end cero no acota ese extremo.
func (p *ParquetBars) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	symbol = domain.NormalizeSymbol(symbol)
	years, err := p.years(symbol)
	if err != nil {
		return nil, fmt.Errorf("storage.ReadBars: %s: %w", symbol, err)
	}

	var bars []domain.PriceBar
	for _, year := range years {
		if !start.IsZero() && year < start.Year() {
			continue
		}
		if !end.IsZero() && year > end.Year() {
			continue
		}
		records, err := readParquetFile[BarRecord](p.barPath(symbol, year))
		if err != nil {
			return nil, fmt.Errorf("storage.ReadBars: %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			d := time.UnixMilli(r.Timestamp).UTC()
			if !start.IsZero() && d.Before(domain.Day(start)) {
				continue
			}
			if !end.IsZero() && d.After(domain.Day(end)) {
				continue
			}
			bars = append(bars, domain.PriceBar{
				Symbol:   symbol,
				Date:     d,
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				AdjClose: r.AdjClose,
				Volume:   r.Volume,
			})
		}
	}
	return bars, nil
}

// FetchBars implementa ports.BarSource leyendo la cache. Los símbolos sin
// archivos no aparecen en el resultado.
func (p *ParquetBars) FetchBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, error) {
	out := make(map[string][]domain.PriceBar, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := p.ReadBars(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			out[domain.NormalizeSymbol(sym)] = bars
		}
	}
	return out, nil
}

// ListSymbols devuelve los símbolos con datos en la cache, ordenados.
func (p *ParquetBars) ListSymbols() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.DataDir, p.Market, "daily"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.ListSymbols: %w", err)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	slices.Sort(symbols)
	return symbols, nil
}

// --- helpers internos ---

func (p *ParquetBars) barPath(symbol string, year int) string {
	return filepath.Join(p.DataDir, p.Market, "daily", symbol, fmt.Sprintf("%d.parquet", year))
}

// years lista los años con archivo para symbol, ascendente.
func (p *ParquetBars) years(symbol string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(p.DataDir, p.Market, "daily", symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var years []int
	for _, e := range entries {
		var y int
		if _, err := fmt.Sscanf(e.Name(), "%d.parquet", &y); err == nil {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplica por timestamp, prefiriendo incoming.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}
	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	slices.SortFunc(merged, func(a, b BarRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return merged
}
