package candlewatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepulse_backend/models"
	"tradepulse_backend/services/subscriptions"
)

type fakeStore struct {
	latest  *models.Candle
	at      map[time.Time]*models.Candle
	latestE error
}

func (f *fakeStore) Latest(ctx context.Context, platform, symbol string, tf models.Timeframe) (*models.Candle, error) {
	return f.latest, f.latestE
}

func (f *fakeStore) At(ctx context.Context, platform, symbol string, tf models.Timeframe, ts time.Time) (*models.Candle, error) {
	return f.at[ts.UTC()], nil
}

func (f *fakeStore) Range(ctx context.Context, platform, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	return nil, nil
}

func candleAt(ts time.Time, close float64) models.Candle {
	return models.Candle{
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: models.Timeframe1m,
		Timestamp: ts,
		Open:      close - 10,
		High:      close + 5,
		Low:       close - 15,
		Close:     close,
		Volume:    100,
	}
}

func newSub() *subscriptions.CandleSubscription {
	return subscriptions.NewCandleSubscription("conn-1", 1, "binance", "BTCUSDT", models.Timeframe1m)
}

func TestDetectNoCandle(t *testing.T) {
	det := NewDetector(&fakeStore{})
	changes, err := det.Detect(context.Background(), newSub())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDetectInitialCandle(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := candleAt(now, 50000)
	det := NewDetector(&fakeStore{latest: &latest})

	changes, err := det.Detect(context.Background(), newSub())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeInit, changes[0].Kind)
	assert.Equal(t, latest, changes[0].Candle)
}

func TestDetectUnchanged(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := candleAt(now, 50000)
	det := NewDetector(&fakeStore{latest: &latest})

	sub := newSub()
	snap := latest
	sub.Snapshot = &snap

	changes, err := det.Detect(context.Background(), sub)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDetectSamePeriodModified(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := candleAt(now, 50100)
	det := NewDetector(&fakeStore{latest: &latest})

	sub := newSub()
	snap := candleAt(now, 50000)
	sub.Snapshot = &snap

	changes, err := det.Detect(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUpdate, changes[0].Kind)
	assert.Equal(t, 50100.0, changes[0].Candle.Close)
}

func TestDetectNewPeriod(t *testing.T) {
	prevTS := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	newTS := prevTS.Add(time.Minute)

	prev := candleAt(prevTS, 50000)
	latest := candleAt(newTS, 50200)
	det := NewDetector(&fakeStore{
		latest: &latest,
		at:     map[time.Time]*models.Candle{prevTS: &prev},
	})

	sub := newSub()
	snap := prev
	sub.Snapshot = &snap

	changes, err := det.Detect(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeNew, changes[0].Kind)
	assert.Equal(t, newTS, changes[0].Candle.Timestamp)
}

func TestDetectNewPeriodWithRevisedPrevious(t *testing.T) {
	prevTS := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	newTS := prevTS.Add(time.Minute)

	snap := candleAt(prevTS, 50000)
	revised := snap
	revised.Volume = 150 // late settlement bumped the closed candle's volume
	latest := candleAt(newTS, 50200)

	det := NewDetector(&fakeStore{
		latest: &latest,
		at:     map[time.Time]*models.Candle{prevTS: &revised},
	})

	sub := newSub()
	sub.Snapshot = &snap

	changes, err := det.Detect(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeUpdate, changes[0].Kind)
	assert.Equal(t, prevTS, changes[0].Candle.Timestamp)
	assert.Equal(t, 150.0, changes[0].Candle.Volume)
	assert.Equal(t, ChangeNew, changes[1].Kind)
	assert.Equal(t, newTS, changes[1].Candle.Timestamp)
}
