package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"tradepulse_backend/models"
)

// Entry is what a Registry stores: anything owned by a connection and a user.
type Entry interface {
	SubscriptionID() string
	Connection() string
	Owner() uint
}

// Base carries the identity fields shared by every runtime subscription.
type Base struct {
	ID           string
	ConnectionID string
	UserID       uint
	CreatedAt    time.Time
}

func (b Base) SubscriptionID() string { return b.ID }
func (b Base) Connection() string     { return b.ConnectionID }
func (b Base) Owner() uint            { return b.UserID }

// CandleSubscription streams candle changes for one instrument/timeframe to
// one connection. Snapshot holds the most recently sent candle's values and
// is written only by the candle poll loop (single writer); ticks of that loop
// never overlap, so no lock is needed on it.
type CandleSubscription struct {
	Base
	Platform  string
	Symbol    string
	Timeframe models.Timeframe
	Channel   string
	Snapshot  *models.Candle
}

// NewCandleSubscription creates a candle subscription with a fresh ID and a
// broadcast channel unique to it.
func NewCandleSubscription(connectionID string, userID uint, platform, symbol string, tf models.Timeframe) *CandleSubscription {
	id := uuid.NewString()
	return &CandleSubscription{
		Base: Base{
			ID:           id,
			ConnectionID: connectionID,
			UserID:       userID,
			CreatedAt:    time.Now().UTC(),
		},
		Platform:  platform,
		Symbol:    symbol,
		Timeframe: tf,
		Channel:   "candles." + id,
	}
}

// AlertSubscription registers a connection to receive trigger events for all
// of its owner's price alerts. LastChecked is the minute watermark the alert
// poll loop resumes scanning from; it is written only by that loop.
type AlertSubscription struct {
	Base
	LastChecked      time.Time
	InitialCheckDone bool
}

func NewAlertSubscription(connectionID string, userID uint) *AlertSubscription {
	return &AlertSubscription{
		Base: Base{
			ID:           uuid.NewString(),
			ConnectionID: connectionID,
			UserID:       userID,
			CreatedAt:    time.Now().UTC(),
		},
	}
}

// AutoTradeSubscription registers a connection to receive execution results
// for all of its owner's automated trade rules. Rules are checked against the
// latest candle on every tick, so no scan watermark is kept.
type AutoTradeSubscription struct {
	Base
}

func NewAutoTradeSubscription(connectionID string, userID uint) *AutoTradeSubscription {
	return &AutoTradeSubscription{
		Base: Base{
			ID:           uuid.NewString(),
			ConnectionID: connectionID,
			UserID:       userID,
			CreatedAt:    time.Now().UTC(),
		},
	}
}
