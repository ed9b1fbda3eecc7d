package poller

import (
	"context"
	"log"
	"time"

	"tradepulse_backend/models"
	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

// Poll intervals per concern. Candle streaming runs tight; alert and trade
// evaluation work in whole minutes.
const (
	CandlePollInterval = 10 * time.Second
	AlertPollInterval  = 60 * time.Second
	TradePollInterval  = 60 * time.Second
)

// CandleEvent is the payload pushed on a candle subscription's channel.
// Type mirrors the detector's change kinds plus "heartbeat", which confirms
// the stream is alive when nothing changed.
type CandleEvent struct {
	Type           string         `json:"type"`
	SubscriptionID string         `json:"subscription_id"`
	Platform       string         `json:"platform"`
	Symbol         string         `json:"symbol"`
	Timeframe      string         `json:"timeframe"`
	Candle         *models.Candle `json:"candle,omitempty"`
}

// AlertEvent is the payload pushed to a user's alert channel on trigger.
type AlertEvent struct {
	Type         string        `json:"type"`
	AlertID      uint          `json:"alert_id"`
	Platform     string        `json:"platform"`
	Symbol       string        `json:"symbol"`
	Condition    string        `json:"condition"`
	Threshold    string        `json:"threshold"`
	TriggerPrice float64       `json:"trigger_price"`
	Candle       models.Candle `json:"candle"`
}

// TradeEvent is the payload pushed to a user's trade channel after an
// execution attempt, successful or not.
type TradeEvent struct {
	Type           string  `json:"type"`
	RuleID         uint    `json:"rule_id"`
	Platform       string  `json:"platform"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Success        bool    `json:"success"`
	Status         string  `json:"status"`
	FilledQuantity string  `json:"filled_quantity"`
	AveragePrice   string  `json:"average_price"`
	TriggerPrice   float64 `json:"trigger_price"`
}

// sweepLapsed removes every subscription whose owner no longer holds a valid
// session and returns the survivors. This is the sole cleanup path for
// connections that vanished without an unsubscribe or a disconnect event.
// No notification is sent; the owner is presumed gone.
func sweepLapsed[T subscriptions.Entry](ctx context.Context, reg *subscriptions.Registry[T], checker session.Checker, auditor audit.Logger) []T {
	live := reg.ListActive()

	valid := make(map[uint]bool, len(live))
	removedConns := make(map[string]bool)
	kept := make([]T, 0, len(live))

	for _, sub := range live {
		conn := sub.Connection()
		if removedConns[conn] {
			continue
		}
		ok, checked := valid[sub.Owner()]
		if !checked {
			ok = checker.HasValidSession(ctx, sub.Owner())
			valid[sub.Owner()] = ok
		}
		if !ok {
			count := reg.RemoveAllForConnection(conn)
			removedConns[conn] = true
			log.Printf("Session lapsed for user %d, removed %d subscription(s) on connection %s", sub.Owner(), count, conn)
			auditor.Record(ctx, "session_sweep", map[string]interface{}{
				"user_id":       sub.Owner(),
				"connection_id": conn,
				"removed":       count,
			})
			continue
		}
		kept = append(kept, sub)
	}
	return kept
}

// guard logs a panic out of a single subscription's evaluation so one bad
// symbol or store response cannot halt the tick for every other subscriber.
func guard(subID string) {
	if r := recover(); r != nil {
		log.Printf("Recovered evaluating subscription %s: %v", subID, r)
	}
}
