package autotrade

import (
	"context"

	"tradepulse_backend/models"
	"tradepulse_backend/services/marketdata"
)

// Evaluator tests automated trade rules. Unlike alerts there is no
// historical backfill: a rule is checked against the latest 1-minute candle
// on every poll tick, current price only.
type Evaluator struct {
	store marketdata.CandleStore
}

func NewEvaluator(store marketdata.CandleStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate returns the triggering candle, or nil when the rule's condition
// is not met by the latest candle.
func (e *Evaluator) Evaluate(ctx context.Context, rule *models.AutoTradeRule) (*models.Candle, error) {
	latest, err := e.store.Latest(ctx, rule.Platform, rule.Symbol, models.Timeframe1m)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	if rule.Condition.Matches(rule.Threshold, *latest) {
		return latest, nil
	}
	return nil, nil
}
