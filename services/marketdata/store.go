package marketdata

import (
	"context"
	"time"

	"tradepulse_backend/models"
)

// CandleStore is the price-candle time-series store the evaluators read from.
// Candle production and persistence are owned elsewhere; this package only
// consumes the data. A missing candle is reported as (nil, nil), not an error.
type CandleStore interface {
	// Latest returns the single most recent candle for the series, or nil.
	Latest(ctx context.Context, platform, symbol string, tf models.Timeframe) (*models.Candle, error)

	// At returns the candle whose bucket starts exactly at ts, or nil.
	At(ctx context.Context, platform, symbol string, tf models.Timeframe, ts time.Time) (*models.Candle, error)

	// Range returns candles with from <= timestamp <= to in ascending time order.
	Range(ctx context.Context, platform, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error)
}
