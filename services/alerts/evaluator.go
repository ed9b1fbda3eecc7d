package alerts

import (
	"context"
	"time"

	"tradepulse_backend/models"
	"tradepulse_backend/services/marketdata"
)

// Evaluator detects whether a price alert triggered inside a time window.
//
// Scanning 1-minute candles from an alert's creation to now would be
// unbounded work growing with alert age. The evaluator instead scans the
// finest timeframe over the window and, when the scan exhausts the window
// with its last candle sitting exactly on the next coarser bucket boundary,
// climbs the ladder (1m, 5m, 15m, 1h, 4h, 1d) from that boundary onward.
// Total work is bounded by boundary transitions, not elapsed minutes, and no
// minute-level trigger inside the still-open finest window can be skipped.
//
// The evaluator only detects. Deleting the one-shot alert after a trigger is
// the caller's job.
type Evaluator struct {
	store marketdata.CandleStore
}

func NewEvaluator(store marketdata.CandleStore) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate returns the first candle in [from, to] that satisfies the alert's
// condition, or nil when nothing triggered.
//
// The second result is the scan watermark: one minute past the last finest
// candle actually observed, or the truncated from when the window held no
// candles. Callers resume the next scan there rather than at wall-clock
// time, so a candle ingested late never falls behind the watermark unseen.
//
// The ladder climb is an explicit loop rather than recursion; stack depth
// stays constant no matter how many timeframes exist.
func (e *Evaluator) Evaluate(ctx context.Context, alert *models.PriceAlert, from, to time.Time) (*models.Candle, time.Time, error) {
	tf := models.Timeframe1m
	cursor := from.UTC().Truncate(time.Minute)
	to = to.UTC()
	watermark := cursor

	for {
		candles, err := e.store.Range(ctx, alert.Platform, alert.Symbol, tf, cursor, to)
		if err != nil {
			return nil, watermark, err
		}
		if tf == models.Timeframe1m && len(candles) > 0 {
			watermark = candles[len(candles)-1].Timestamp.UTC().Add(time.Minute)
		}
		for i := range candles {
			if alert.Condition.Matches(alert.Threshold, candles[i]) {
				return &candles[i], watermark, nil
			}
		}
		if len(candles) == 0 {
			return nil, watermark, nil
		}

		coarser, ok := tf.NextCoarser()
		if !ok {
			return nil, watermark, nil
		}

		// Escalate only when the last scanned candle starts exactly on the
		// coarser bucket boundary. Boundary arithmetic is timezone-naive UTC.
		last := candles[len(candles)-1].Timestamp
		if !last.Truncate(coarser.Duration()).Equal(last) {
			return nil, watermark, nil
		}
		tf = coarser
		cursor = last
	}
}
