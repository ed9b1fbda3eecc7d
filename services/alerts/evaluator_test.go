package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepulse_backend/models"
)

type scan struct {
	tf   models.Timeframe
	from time.Time
}

type fakeRangeStore struct {
	scans []scan
	data  map[models.Timeframe][]models.Candle
}

func (f *fakeRangeStore) Latest(ctx context.Context, platform, symbol string, tf models.Timeframe) (*models.Candle, error) {
	return nil, nil
}

func (f *fakeRangeStore) At(ctx context.Context, platform, symbol string, tf models.Timeframe, ts time.Time) (*models.Candle, error) {
	return nil, nil
}

func (f *fakeRangeStore) Range(ctx context.Context, platform, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	f.scans = append(f.scans, scan{tf: tf, from: from})
	var out []models.Candle
	for _, c := range f.data[tf] {
		if !c.Timestamp.Before(from) && !c.Timestamp.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func minuteCandle(ts time.Time, high, low float64, tf models.Timeframe) models.Candle {
	return models.Candle{
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: tf,
		Timestamp: ts,
		Open:      low + 1,
		High:      high,
		Low:       low,
		Close:     low + 2,
		Volume:    10,
	}
}

func testAlert(cond models.AlertCondition, threshold float64) *models.PriceAlert {
	return &models.PriceAlert{
		ID:        1,
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: cond,
		Threshold: decimal.NewFromFloat(threshold),
	}
}

func TestEvaluateMinuteTrigger(t *testing.T) {
	base := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{
		models.Timeframe1m: {
			minuteCandle(base, 49000, 48900, models.Timeframe1m),
			minuteCandle(base.Add(time.Minute), 50500, 49800, models.Timeframe1m),
			minuteCandle(base.Add(2*time.Minute), 50600, 50000, models.Timeframe1m),
		},
	}}

	alert := testAlert(models.ConditionPriceAbove, 50000)
	got, _, err := NewEvaluator(store).Evaluate(context.Background(), alert, base, base.Add(10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)

	// First match wins, and the trigger price is the candle's high.
	assert.Equal(t, base.Add(time.Minute), got.Timestamp)
	assert.Equal(t, 50500.0, alert.Condition.TriggerPrice(*got))
}

func TestEvaluatePriceBelowUsesLow(t *testing.T) {
	base := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{
		models.Timeframe1m: {
			minuteCandle(base, 49000, 47900, models.Timeframe1m),
		},
	}}

	alert := testAlert(models.ConditionPriceBelow, 48000)
	got, _, err := NewEvaluator(store).Evaluate(context.Background(), alert, base, base.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 47900.0, alert.Condition.TriggerPrice(*got))
}

func TestEvaluateEscalatesToCoarserTimeframes(t *testing.T) {
	created := time.Date(2026, 8, 30, 11, 1, 0, 0, time.UTC)
	hourBoundary := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	// Quiet minute candles up to the hour boundary, quiet intermediate
	// timeframes at the boundary, then an hourly candle that triggers.
	var minutes []models.Candle
	for ts := created; !ts.After(hourBoundary); ts = ts.Add(time.Minute) {
		minutes = append(minutes, minuteCandle(ts, 49000, 48800, models.Timeframe1m))
	}
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{
		models.Timeframe1m: minutes,
		models.Timeframe5m: {
			minuteCandle(hourBoundary, 49100, 48800, models.Timeframe5m),
		},
		models.Timeframe15m: {
			minuteCandle(hourBoundary, 49100, 48800, models.Timeframe15m),
		},
		models.Timeframe1h: {
			minuteCandle(hourBoundary, 49200, 48800, models.Timeframe1h),
			minuteCandle(hourBoundary.Add(time.Hour), 50900, 49000, models.Timeframe1h),
		},
	}}

	alert := testAlert(models.ConditionPriceAbove, 50000)
	got, _, err := NewEvaluator(store).Evaluate(context.Background(), alert, created, to)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, hourBoundary.Add(time.Hour), got.Timestamp)
	assert.Equal(t, models.Timeframe1h, got.Timeframe)

	// The minute series was scanned exactly once, from the alert's creation;
	// the rest resumed from the boundary instead of rescanning minutes.
	require.NotEmpty(t, store.scans)
	assert.Equal(t, scan{tf: models.Timeframe1m, from: created}, store.scans[0])
	assert.Contains(t, store.scans, scan{tf: models.Timeframe1h, from: hourBoundary})
	for _, s := range store.scans[1:] {
		assert.NotEqual(t, models.Timeframe1m, s.tf)
	}
}

func TestEvaluateStopsWithoutBoundaryAlignment(t *testing.T) {
	created := time.Date(2026, 8, 30, 11, 1, 0, 0, time.UTC)
	last := time.Date(2026, 8, 30, 11, 58, 0, 0, time.UTC)

	var minutes []models.Candle
	for ts := created; !ts.After(last); ts = ts.Add(time.Minute) {
		minutes = append(minutes, minuteCandle(ts, 49000, 48800, models.Timeframe1m))
	}
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{
		models.Timeframe1m: minutes,
	}}

	got, _, err := NewEvaluator(store).Evaluate(context.Background(), testAlert(models.ConditionPriceAbove, 50000), created, last)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Len(t, store.scans, 1)
}

func TestEvaluateEmptyWindow(t *testing.T) {
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{}}
	from := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	got, watermark, err := NewEvaluator(store).Evaluate(context.Background(), testAlert(models.ConditionPriceAbove, 50000), from, from.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
	// Nothing observed: the watermark stays at the window start.
	assert.Equal(t, from, watermark)
}

func TestEvaluateWatermarkFollowsObservedCandles(t *testing.T) {
	base := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	store := &fakeRangeStore{data: map[models.Timeframe][]models.Candle{
		models.Timeframe1m: {
			minuteCandle(base, 49000, 48800, models.Timeframe1m),
			minuteCandle(base.Add(time.Minute), 49100, 48800, models.Timeframe1m),
		},
	}}

	// No trigger: the watermark sits one minute past the last candle seen,
	// not at the window end.
	now := base.Add(10 * time.Minute)
	got, watermark, err := NewEvaluator(store).Evaluate(context.Background(), testAlert(models.ConditionPriceAbove, 50000), base, now)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, base.Add(2*time.Minute), watermark)

	// A trigger reports the same frontier.
	store.scans = nil
	got, watermark, err = NewEvaluator(store).Evaluate(context.Background(), testAlert(models.ConditionPriceAbove, 49050), base, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, base.Add(2*time.Minute), watermark)
}
