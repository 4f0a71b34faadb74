package alert

import (
	"context"

	"hyperliquid-alert-bot/internal/database"
	"hyperliquid-alert-bot/internal/types"
)

// DefaultBandEpsilon is the half-width of the price match band as a
// fraction of the mark price.
const DefaultBandEpsilon = 0.05

// Evaluator matches incoming mark prices against stored price alerts.
// An alert matches when its target price falls within ±epsilon of the
// mark price, so a noisy tick cannot miss a trigger by a few ticks of
// jitter. Suppressed alerts never match; the cooldown sweeper unsuppresses
// them once their window has passed.
type Evaluator struct {
	store   *database.Store
	epsilon float64
}

func NewEvaluator(store *database.Store, epsilon float64) *Evaluator {
	if epsilon <= 0 {
		epsilon = DefaultBandEpsilon
	}
	return &Evaluator{store: store, epsilon: epsilon}
}

// Evaluate returns all unsuppressed alerts whose target price lies within
// the band around markPrice. No ordering is guaranteed.
func (e *Evaluator) Evaluate(ctx context.Context, markPrice float64) ([]types.PriceAlert, error) {
	lower := markPrice * (1 - e.epsilon)
	upper := markPrice * (1 + e.epsilon)
	return e.store.FindMatching(ctx, lower, upper)
}
