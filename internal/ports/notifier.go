package ports

import (
	"context"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Notifier presenta el resultado de un run al usuario.
type Notifier interface {
	// Notify muestra el resumen, los trades y los símbolos excluidos.
	// En la implementación de consola, imprime tablas formateadas.
	Notify(ctx context.Context, run *domain.RunResult) error
}

// MetricsRecorder exporta las métricas de un run terminado.
type MetricsRecorder interface {
	Record(run *domain.RunResult) error
}
