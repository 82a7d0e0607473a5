package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// BarSource obtiene barras diarias ordenadas por fecha para cada símbolo.
type BarSource interface {
	// FetchBars devuelve las barras de [start, end] por símbolo. Un símbolo
	// sin datos no aparece en el mapa.
	FetchBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, error)
}

// BarSink persiste barras diarias (la cache local de fetch).
type BarSink interface {
	WriteBars(ctx context.Context, symbol string, bars []domain.PriceBar) error
}
