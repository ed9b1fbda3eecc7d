package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradepulse_backend/models"
	"tradepulse_backend/services/alerts"
	"tradepulse_backend/services/autotrade"
	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/candlewatch"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

type published struct {
	destination string
	payload     interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
}

func (f *fakePublisher) Publish(destination string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{destination: destination, payload: payload})
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.sent...)
}

type fakeSessions struct {
	invalid map[uint]bool
}

func (f *fakeSessions) HasValidSession(ctx context.Context, userID uint) bool {
	return !f.invalid[userID]
}

var _ session.Checker = (*fakeSessions)(nil)

type fakeCandleStore struct {
	mu      sync.Mutex
	latest  *models.Candle
	at      map[time.Time]*models.Candle
	candles []models.Candle
	delay   time.Duration
	calls   int
}

func (f *fakeCandleStore) Latest(ctx context.Context, platform, symbol string, tf models.Timeframe) (*models.Candle, error) {
	f.mu.Lock()
	f.calls++
	latest := f.latest
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return latest, nil
}

func (f *fakeCandleStore) At(ctx context.Context, platform, symbol string, tf models.Timeframe, ts time.Time) (*models.Candle, error) {
	return f.at[ts.UTC()], nil
}

func (f *fakeCandleStore) Range(ctx context.Context, platform, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range f.candles {
		if c.Timeframe == tf && !c.Timestamp.Before(from) && !c.Timestamp.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCandleStore) latestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pollerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigrateAlertModels(db))
	require.NoError(t, models.MigrateTradingModels(db))
	return db
}

func btcCandle(ts time.Time, high, low float64) models.Candle {
	return models.Candle{
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Timeframe: models.Timeframe1m,
		Timestamp: ts,
		Open:      low + 1,
		High:      high,
		Low:       low,
		Close:     low + 2,
		Volume:    10,
	}
}

func TestCandlePollerInitialTick(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := btcCandle(now, 50100, 50000)
	store := &fakeCandleStore{latest: &latest}

	reg := subscriptions.NewRegistry[*subscriptions.CandleSubscription]()
	sub := subscriptions.NewCandleSubscription("conn-1", 1, "binance", "BTCUSDT", models.Timeframe1m)
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewCandlePoller(reg, candlewatch.NewDetector(store), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	sent := pub.all()
	require.Len(t, sent, 1)
	assert.Equal(t, sub.Channel, sent[0].destination)
	event := sent[0].payload.(CandleEvent)
	assert.Equal(t, "init", event.Type)
	require.NotNil(t, event.Candle)
	assert.Equal(t, latest, *event.Candle)

	// The snapshot now holds the sent candle's fields.
	require.NotNil(t, sub.Snapshot)
	assert.Equal(t, latest, *sub.Snapshot)
}

func TestCandlePollerHeartbeatWhenUnchanged(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := btcCandle(now, 50100, 50000)
	store := &fakeCandleStore{latest: &latest}

	reg := subscriptions.NewRegistry[*subscriptions.CandleSubscription]()
	sub := subscriptions.NewCandleSubscription("conn-1", 1, "binance", "BTCUSDT", models.Timeframe1m)
	snap := latest
	sub.Snapshot = &snap
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewCandlePoller(reg, candlewatch.NewDetector(store), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	sent := pub.all()
	require.Len(t, sent, 1)
	event := sent[0].payload.(CandleEvent)
	assert.Equal(t, "heartbeat", event.Type)
	assert.Nil(t, event.Candle)
}

func TestCandlePollerSweepsLapsedSessions(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := btcCandle(now, 50100, 50000)
	store := &fakeCandleStore{latest: &latest}

	reg := subscriptions.NewRegistry[*subscriptions.CandleSubscription]()
	sub := subscriptions.NewCandleSubscription("conn-1", 7, "binance", "BTCUSDT", models.Timeframe1m)
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewCandlePoller(reg, candlewatch.NewDetector(store), pub, &fakeSessions{invalid: map[uint]bool{7: true}}, audit.LogOnly{})
	p.RunTick(context.Background())

	// Removed silently: no notification to a presumably gone client.
	assert.Empty(t, pub.all())
	assert.Equal(t, 0, reg.Len())
	assert.ErrorIs(t, reg.Remove(sub.ID), subscriptions.ErrNotFound)
}

func TestCandlePollerTicksDoNotOverlap(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	latest := btcCandle(now, 50100, 50000)
	store := &fakeCandleStore{latest: &latest, delay: 150 * time.Millisecond}

	reg := subscriptions.NewRegistry[*subscriptions.CandleSubscription]()
	reg.Add(subscriptions.NewCandleSubscription("conn-1", 1, "binance", "BTCUSDT", models.Timeframe1m))

	pub := &fakePublisher{}
	p := NewCandlePoller(reg, candlewatch.NewDetector(store), pub, &fakeSessions{}, audit.LogOnly{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RunTick(context.Background())
		}()
	}
	wg.Wait()

	// The second tick found the first still running and skipped.
	assert.Equal(t, 1, store.latestCalls())
}

func TestAlertPollerTriggersAndConsumesAlert(t *testing.T) {
	db := pollerTestDB(t)
	now := time.Now().UTC().Truncate(time.Minute)

	alert := models.PriceAlert{
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: models.ConditionPriceAbove,
		Threshold: decimal.NewFromInt(50000),
		CreatedAt: now.Add(-5 * time.Minute),
	}
	require.NoError(t, db.Create(&alert).Error)

	store := &fakeCandleStore{candles: []models.Candle{
		btcCandle(now.Add(-2*time.Minute), 50500, 49900),
	}}

	reg := subscriptions.NewRegistry[*subscriptions.AlertSubscription]()
	sub := subscriptions.NewAlertSubscription("conn-1", 1)
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewAlertPoller(db, reg, alerts.NewEvaluator(store), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	sent := pub.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "alerts.1", sent[0].destination)
	event := sent[0].payload.(AlertEvent)
	assert.Equal(t, "alert_triggered", event.Type)
	assert.Equal(t, alert.ID, event.AlertID)
	// Trigger price is the candle's high, not its close.
	assert.Equal(t, 50500.0, event.TriggerPrice)

	// One-shot: the alert is gone from the store.
	var count int64
	require.NoError(t, db.Model(&models.PriceAlert{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	assert.True(t, sub.InitialCheckDone)
	assert.False(t, sub.LastChecked.IsZero())

	// Re-running over the same window reports nothing.
	p.RunTick(context.Background())
	assert.Len(t, pub.all(), 1)
}

func TestAlertPollerNoTriggerAdvancesWatermark(t *testing.T) {
	db := pollerTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.PriceAlert{
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: models.ConditionPriceAbove,
		Threshold: decimal.NewFromInt(90000),
		CreatedAt: now.Add(-time.Minute),
	}).Error)

	store := &fakeCandleStore{candles: []models.Candle{
		btcCandle(now.Truncate(time.Minute), 50500, 49900),
	}}

	reg := subscriptions.NewRegistry[*subscriptions.AlertSubscription]()
	sub := subscriptions.NewAlertSubscription("conn-1", 1)
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewAlertPoller(db, reg, alerts.NewEvaluator(store), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	assert.Empty(t, pub.all())
	assert.True(t, sub.InitialCheckDone)
	assert.Equal(t, 0, int(sub.LastChecked.Second()))

	var count int64
	require.NoError(t, db.Model(&models.PriceAlert{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAlertPollerEvaluatesCandleIngestedLate(t *testing.T) {
	db := pollerTestDB(t)
	now := time.Now().UTC().Truncate(time.Minute)

	alert := models.PriceAlert{
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: models.ConditionPriceAbove,
		Threshold: decimal.NewFromInt(50000),
		CreatedAt: now.Add(-10 * time.Minute),
	}
	require.NoError(t, db.Create(&alert).Error)

	// At the first tick only a quiet candle exists; the ingestion pipeline
	// is running behind.
	store := &fakeCandleStore{candles: []models.Candle{
		btcCandle(now.Add(-5*time.Minute), 49000, 48800),
	}}

	reg := subscriptions.NewRegistry[*subscriptions.AlertSubscription]()
	sub := subscriptions.NewAlertSubscription("conn-1", 1)
	reg.Add(sub)

	pub := &fakePublisher{}
	p := NewAlertPoller(db, reg, alerts.NewEvaluator(store), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	assert.Empty(t, pub.all())
	// The watermark stopped at the last candle observed, not at the tick's
	// wall-clock minute.
	assert.Equal(t, now.Add(-4*time.Minute), sub.LastChecked)

	// A candle with a timestamp behind the tick arrives afterwards.
	store.candles = append(store.candles, btcCandle(now.Add(-4*time.Minute), 50500, 49900))

	p.RunTick(context.Background())
	sent := pub.all()
	require.Len(t, sent, 1)
	event := sent[0].payload.(AlertEvent)
	assert.Equal(t, "alert_triggered", event.Type)
	assert.Equal(t, 50500.0, event.TriggerPrice)

	var count int64
	require.NoError(t, db.Model(&models.PriceAlert{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

type recordingBroker struct {
	resp   map[string]interface{}
	placed int
}

func (b *recordingBroker) PlaceMarketOrder(ctx context.Context, creds models.BrokerCredential, symbol, side string, quantity decimal.Decimal) (map[string]interface{}, error) {
	b.placed++
	return b.resp, nil
}

func TestTradePollerExecutesAndConsumesRule(t *testing.T) {
	db := pollerTestDB(t)
	now := time.Now().UTC().Truncate(time.Minute)

	rule := models.AutoTradeRule{
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: models.ConditionPriceAbove,
		Threshold: decimal.NewFromInt(50000),
		Side:      models.SideBuy,
		Quantity:  decimal.NewFromFloat(0.25),
	}
	require.NoError(t, db.Create(&rule).Error)
	require.NoError(t, db.Create(&models.BrokerCredential{
		UserID: 1, Venue: "binance", APIKey: "k", APISecret: "s",
	}).Error)

	latest := btcCandle(now, 50500, 49900)
	store := &fakeCandleStore{latest: &latest}
	b := &recordingBroker{resp: map[string]interface{}{
		"status":      "FILLED",
		"executedQty": "0.25",
		"avgPrice":    "50450",
	}}

	reg := subscriptions.NewRegistry[*subscriptions.AutoTradeSubscription]()
	reg.Add(subscriptions.NewAutoTradeSubscription("conn-1", 1))

	pub := &fakePublisher{}
	p := NewTradePoller(db, reg, autotrade.NewEvaluator(store), autotrade.NewExecutor(db, b), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	sent := pub.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "trades.1", sent[0].destination)
	event := sent[0].payload.(TradeEvent)
	assert.True(t, event.Success)
	assert.Equal(t, models.ExecStatusCompleted, event.Status)
	assert.Equal(t, 50500.0, event.TriggerPrice)

	// One-shot: rule consumed, transaction recorded.
	var rules int64
	require.NoError(t, db.Model(&models.AutoTradeRule{}).Count(&rules).Error)
	assert.EqualValues(t, 0, rules)
	var txs int64
	require.NoError(t, db.Model(&models.TradeTransaction{}).Count(&txs).Error)
	assert.EqualValues(t, 1, txs)

	// A second tick finds no rule; the venue is not called again.
	p.RunTick(context.Background())
	assert.Equal(t, 1, b.placed)
	assert.Len(t, pub.all(), 1)
}

func TestTradePollerFailedSubmissionStillConsumesRule(t *testing.T) {
	db := pollerTestDB(t)
	now := time.Now().UTC().Truncate(time.Minute)

	require.NoError(t, db.Create(&models.AutoTradeRule{
		UserID:    1,
		Platform:  "binance",
		Symbol:    "BTCUSDT",
		Condition: models.ConditionPriceAbove,
		Threshold: decimal.NewFromInt(50000),
		Side:      models.SideBuy,
		Quantity:  decimal.NewFromFloat(0.25),
	}).Error)
	// No credentials stored: submission fails before reaching the venue.

	latest := btcCandle(now, 50500, 49900)
	store := &fakeCandleStore{latest: &latest}

	reg := subscriptions.NewRegistry[*subscriptions.AutoTradeSubscription]()
	reg.Add(subscriptions.NewAutoTradeSubscription("conn-1", 1))

	pub := &fakePublisher{}
	p := NewTradePoller(db, reg, autotrade.NewEvaluator(store), autotrade.NewExecutor(db, &recordingBroker{}), pub, &fakeSessions{}, audit.LogOnly{})
	p.RunTick(context.Background())

	sent := pub.all()
	require.Len(t, sent, 1)
	event := sent[0].payload.(TradeEvent)
	assert.False(t, event.Success)
	assert.Equal(t, models.ExecStatusFailed, event.Status)

	// The failed rule is consumed too; it must not re-fire next tick.
	var rules int64
	require.NoError(t, db.Model(&models.AutoTradeRule{}).Count(&rules).Error)
	assert.EqualValues(t, 0, rules)

	var tx models.TradeTransaction
	require.NoError(t, db.First(&tx).Error)
	assert.True(t, tx.FilledQuantity.IsZero())
	assert.Equal(t, models.ExecStatusFailed, tx.Status)
}
