package poller

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"tradepulse_backend/models"
	"tradepulse_backend/services/alerts"
	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

// AlertPoller drives the price-alert concern. Each alert subscription stands
// for one connection watching all of its owner's alerts; triggered alerts
// are pushed to the owner's alert channel and deleted in the same pass.
type AlertPoller struct {
	db        *gorm.DB
	registry  *subscriptions.Registry[*subscriptions.AlertSubscription]
	evaluator *alerts.Evaluator
	publisher realtime.Publisher
	sessions  session.Checker
	audit     audit.Logger

	ticking int32
}

func NewAlertPoller(
	db *gorm.DB,
	registry *subscriptions.Registry[*subscriptions.AlertSubscription],
	evaluator *alerts.Evaluator,
	publisher realtime.Publisher,
	sessions session.Checker,
	auditor audit.Logger,
) *AlertPoller {
	return &AlertPoller{
		db:        db,
		registry:  registry,
		evaluator: evaluator,
		publisher: publisher,
		sessions:  sessions,
		audit:     auditor,
	}
}

func (p *AlertPoller) RunTick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.ticking, 0, 1) {
		log.Println("Alert tick still running, skipping")
		return
	}
	defer atomic.StoreInt32(&p.ticking, 0)

	now := time.Now().UTC()
	subs := sweepLapsed(ctx, p.registry, p.sessions, p.audit)
	for _, sub := range subs {
		p.evalOne(ctx, sub, now)
	}
}

func (p *AlertPoller) evalOne(ctx context.Context, sub *subscriptions.AlertSubscription, now time.Time) {
	defer guard(sub.ID)

	var userAlerts []models.PriceAlert
	if err := p.db.WithContext(ctx).Where("user_id = ?", sub.UserID).Find(&userAlerts).Error; err != nil {
		log.Printf("Alert subscription %s: loading alerts for user %d: %v", sub.ID, sub.UserID, err)
		return
	}

	// The watermark advances to the oldest scan frontier across the user's
	// alerts, never past the tick's own minute. Tying it to candles actually
	// observed instead of wall-clock time means a candle ingested late, with
	// a timestamp behind the tick, is still picked up by the next scan.
	watermark := now.Truncate(time.Minute)
	for i := range userAlerts {
		alert := &userAlerts[i]

		// The first check after subscribing scans from the alert's creation;
		// afterwards the minute watermark bounds the window. An alert created
		// after the watermark still starts at its own creation time.
		from := alert.CreatedAt
		if sub.InitialCheckDone && sub.LastChecked.After(from) {
			from = sub.LastChecked
		}

		trigger, scanned, err := p.evaluator.Evaluate(ctx, alert, from, now)
		if err != nil {
			log.Printf("Alert %d (%s %s): %v", alert.ID, alert.Platform, alert.Symbol, err)
			if from.Before(watermark) {
				watermark = from
			}
			continue
		}
		if scanned.Before(watermark) {
			watermark = scanned
		}
		if trigger == nil {
			continue
		}
		p.fire(ctx, sub, alert, trigger)
	}

	sub.LastChecked = watermark
	sub.InitialCheckDone = true
}

// fire notifies the owner and consumes the one-shot alert. Deletion happens
// in the same pass as dispatch; a crash between the two is the only window
// in which a duplicate notification is possible.
func (p *AlertPoller) fire(ctx context.Context, sub *subscriptions.AlertSubscription, alert *models.PriceAlert, trigger *models.Candle) {
	p.publisher.Publish(realtime.UserAlertChannel(sub.UserID), AlertEvent{
		Type:         "alert_triggered",
		AlertID:      alert.ID,
		Platform:     alert.Platform,
		Symbol:       alert.Symbol,
		Condition:    string(alert.Condition),
		Threshold:    alert.Threshold.String(),
		TriggerPrice: alert.Condition.TriggerPrice(*trigger),
		Candle:       *trigger,
	})

	if err := p.db.WithContext(ctx).Delete(&models.PriceAlert{}, alert.ID).Error; err != nil {
		log.Printf("Alert %d: delete after trigger failed: %v", alert.ID, err)
	}

	p.audit.Record(ctx, "alert_triggered", map[string]interface{}{
		"alert_id":      alert.ID,
		"user_id":       alert.UserID,
		"platform":      alert.Platform,
		"symbol":        alert.Symbol,
		"trigger_price": alert.Condition.TriggerPrice(*trigger),
	})
}
