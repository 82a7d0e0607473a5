package alpaca

// bars.go — barras diarias desde la market-data API de Alpaca.
//
// Cada lote se pide dos veces: precios raw (open/high/low/close/volume) y
// precios ajustados por splits y dividendos (de donde sale adj_close). Las
// dos series se unen por fecha.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

const (
	defaultBatchSize = 200
	defaultFeed      = "iex"

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

var _ ports.BarSource = (*BarSource)(nil)

// barsClient es el subconjunto de marketdata.Client que usamos.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Options configura el BarSource.
type Options struct {
	APIKey            string
	APISecret         string
	BaseURL           string // vacío = producción
	Feed              string // iex | sip
	RequestsPerMinute int
	BatchSize         int
}

// BarSource implementa ports.BarSource sobre Alpaca con rate limiting y retries.
type BarSource struct {
	client    barsClient
	limiter   *rate.Limiter
	feed      string
	batchSize int
	log       *slog.Logger
}

// NewBarSource crea un BarSource con un marketdata.Client.
func NewBarSource(opts Options) *BarSource {
	return newBarSource(marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	}), opts)
}

func newBarSource(client barsClient, opts Options) *BarSource {
	if opts.Feed == "" {
		opts.Feed = defaultFeed
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &BarSource{
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		feed:      opts.Feed,
		batchSize: opts.BatchSize,
		log:       slog.Default().With("component", "alpaca"),
	}
}

// FetchBars descarga las barras diarias de [start, end] para symbols.
// Los símbolos sin datos no aparecen en el resultado.
func (s *BarSource) FetchBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, error) {
	out := make(map[string][]domain.PriceBar, len(symbols))
	for batch := range slices.Chunk(symbols, s.batchSize) {
		raw, err := s.fetch(ctx, batch, start, end, marketdata.Raw)
		if err != nil {
			return nil, fmt.Errorf("alpaca.FetchBars: raw: %w", err)
		}
		adj, err := s.fetch(ctx, batch, start, end, marketdata.All)
		if err != nil {
			return nil, fmt.Errorf("alpaca.FetchBars: adjusted: %w", err)
		}
		for sym, bars := range raw {
			sym = domain.NormalizeSymbol(sym)
			merged := joinAdjusted(sym, bars, adj[sym], end)
			if len(merged) > 0 {
				out[sym] = merged
			}
		}
		s.log.Debug("batch fetched", "symbols", len(batch), "with_data", len(raw))
	}
	return out, nil
}

// fetch pide un lote con rate limiting y backoff exponencial.
func (s *BarSource) fetch(
	ctx context.Context,
	symbols []string,
	start, end time.Time,
	adjustment marketdata.Adjustment,
) (map[string][]marketdata.Bar, error) {
	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: adjustment,
		Start:      start,
		Feed:       s.feed,
	}
	if !end.IsZero() {
		// las barras diarias llevan timestamp de medianoche ET: incluir el día entero
		req.End = domain.Day(end).Add(24 * time.Hour)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		bars, err := s.client.GetMultiBars(symbols, req)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		s.log.Warn("GetMultiBars failed", "attempt", attempt+1, "symbols", len(symbols), "err", err)
		if attempt < maxRetries {
			sleep(ctx, attempt)
		}
	}
	return nil, fmt.Errorf("GetMultiBars failed after %d retries: %w", maxRetries, lastErr)
}

// joinAdjusted convierte las barras raw a PriceBar tomando adj_close de la
// serie ajustada del mismo día. Sin barra ajustada, adj_close = close.
func joinAdjusted(symbol string, raw, adjusted []marketdata.Bar, end time.Time) []domain.PriceBar {
	adjClose := make(map[time.Time]float64, len(adjusted))
	for _, b := range adjusted {
		adjClose[domain.Day(b.Timestamp)] = b.Close
	}

	out := make([]domain.PriceBar, 0, len(raw))
	for _, b := range raw {
		d := domain.Day(b.Timestamp)
		if !end.IsZero() && d.After(domain.Day(end)) {
			continue
		}
		ac, ok := adjClose[d]
		if !ok {
			ac = b.Close
		}
		out = append(out, domain.PriceBar{
			Symbol:   symbol,
			Date:     d,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: ac,
			Volume:   int64(b.Volume),
		})
	}
	return out
}

// sleep espera con backoff exponencial, respetando el contexto.
func sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
