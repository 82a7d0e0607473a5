package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrBenchmarkMissing: falta la serie del benchmark o está vacía. Sin ella
// no hay régimen y el run se aborta.
var ErrBenchmarkMissing = errors.New("benchmark series missing")

// DataFault reporta barras mal formadas o desordenadas de un símbolo.
// El símbolo queda fuera del run; el run continúa.
type DataFault struct {
	Symbol string
	Date   time.Time // cero si el fallo no es de una barra concreta
	Reason string
}

func (f *DataFault) Error() string {
	if f.Date.IsZero() {
		return fmt.Sprintf("data fault: %s: %s", f.Symbol, f.Reason)
	}
	return fmt.Sprintf("data fault: %s @ %s: %s", f.Symbol, f.Date.Format(DateLayout), f.Reason)
}

// ConfigFault reporta un parámetro inválido, antes de empezar la simulación.
type ConfigFault struct {
	Field  string
	Reason string
}

func (f *ConfigFault) Error() string {
	return fmt.Sprintf("config fault: %s: %s", f.Field, f.Reason)
}

// StateFault reporta un invariante interno roto. Siempre fatal.
type StateFault struct {
	Date   time.Time
	Reason string
}

func (f *StateFault) Error() string {
	return fmt.Sprintf("state fault @ %s: %s", f.Date.Format(DateLayout), f.Reason)
}
