package poller

import (
	"context"
	"log"
	"sync/atomic"

	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/candlewatch"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

// CandlePoller drives the candle streaming concern: every tick it sweeps
// lapsed sessions, runs change detection for each live subscription and
// pushes the resulting batch (or a heartbeat) to the subscription's channel.
type CandlePoller struct {
	registry  *subscriptions.Registry[*subscriptions.CandleSubscription]
	detector  *candlewatch.Detector
	publisher realtime.Publisher
	sessions  session.Checker
	audit     audit.Logger

	ticking int32
}

func NewCandlePoller(
	registry *subscriptions.Registry[*subscriptions.CandleSubscription],
	detector *candlewatch.Detector,
	publisher realtime.Publisher,
	sessions session.Checker,
	auditor audit.Logger,
) *CandlePoller {
	return &CandlePoller{
		registry:  registry,
		detector:  detector,
		publisher: publisher,
		sessions:  sessions,
		audit:     auditor,
	}
}

// RunTick performs one poll cycle. Ticks are serialized: the scheduler never
// overlaps them, and the atomic guard makes a stray concurrent call a no-op
// instead of a double evaluation.
func (p *CandlePoller) RunTick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.ticking, 0, 1) {
		log.Println("Candle tick still running, skipping")
		return
	}
	defer atomic.StoreInt32(&p.ticking, 0)

	subs := sweepLapsed(ctx, p.registry, p.sessions, p.audit)
	for _, sub := range subs {
		p.evalOne(ctx, sub)
	}
}

func (p *CandlePoller) evalOne(ctx context.Context, sub *subscriptions.CandleSubscription) {
	defer guard(sub.ID)

	changes, err := p.detector.Detect(ctx, sub)
	if err != nil {
		// Transient store errors leave the subscription active; the next
		// tick is an independent attempt.
		log.Printf("Candle subscription %s (%s %s %s): %v", sub.ID, sub.Platform, sub.Symbol, sub.Timeframe, err)
		return
	}

	if len(changes) == 0 {
		p.publisher.Publish(sub.Channel, CandleEvent{
			Type:           "heartbeat",
			SubscriptionID: sub.ID,
			Platform:       sub.Platform,
			Symbol:         sub.Symbol,
			Timeframe:      string(sub.Timeframe),
		})
		return
	}

	for _, change := range changes {
		candle := change.Candle
		p.publisher.Publish(sub.Channel, CandleEvent{
			Type:           string(change.Kind),
			SubscriptionID: sub.ID,
			Platform:       sub.Platform,
			Symbol:         sub.Symbol,
			Timeframe:      string(sub.Timeframe),
			Candle:         &candle,
		})
	}

	// The batch always ends with the most recent candle; it becomes the
	// snapshot the next tick diffs against.
	last := changes[len(changes)-1].Candle
	sub.Snapshot = &last
}
