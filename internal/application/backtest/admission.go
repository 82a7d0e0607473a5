package backtest

import (
	"math"
	"slices"
	"strings"

	"github.com/alejandrodnm/swingbot/internal/indicator"
)

// Candidate es un símbolo cuyo trigger de entrada disparó el día de señal.
type Candidate struct {
	Symbol string
	Score  indicator.Value // métrica de ranking al día de señal
}

func (c Candidate) score() float64 {
	if !c.Score.Valid {
		return math.Inf(-1)
	}
	return c.Score.V
}

// rankCandidates ordena por score descendente y luego por símbolo. Un score
// indefinido va al final.
func rankCandidates(cands []Candidate) {
	slices.SortFunc(cands, func(a, b Candidate) int {
		sa, sb := a.score(), b.score()
		switch {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
}

// Admit elige los candidatos que caben en la capacidad libre. Ambas listas
// salen en orden de ranking y no comparten memoria con la entrada: el
// resultado no depende del orden de cands.
func Admit(cands []Candidate, openCount, capacity int) (admitted, rejected []Candidate) {
	ranked := slices.Clone(cands)
	rankCandidates(ranked)

	free := max(capacity-openCount, 0)
	if len(ranked) <= free {
		return ranked, nil
	}
	return ranked[:free:free], ranked[free:]
}
