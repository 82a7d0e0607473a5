package ports

import (
	"context"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// RunStorage persiste los runs de backtest.
type RunStorage interface {
	// SaveRun persiste el run completo: resumen, trades, curva de equity,
	// posiciones abiertas y símbolos excluidos.
	SaveRun(ctx context.Context, run *domain.RunResult) error

	// ListRuns devuelve los runs más recientes primero. Solo cabecera y
	// resumen: Curve, Trades, Open y Faults quedan vacíos.
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)

	// GetRun devuelve un run completo por ID.
	GetRun(ctx context.Context, id string) (*domain.RunResult, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
