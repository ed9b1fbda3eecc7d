package candlewatch

import (
	"context"

	"tradepulse_backend/models"
	"tradepulse_backend/services/marketdata"
	"tradepulse_backend/services/subscriptions"
)

// ChangeKind tags what a detected change means to the subscriber.
type ChangeKind string

const (
	// ChangeInit is the first candle ever sent on a subscription.
	ChangeInit ChangeKind = "init"
	// ChangeNew is a candle for a period the subscriber has not seen.
	ChangeNew ChangeKind = "new"
	// ChangeUpdate is a revision of a period already sent.
	ChangeUpdate ChangeKind = "update"
)

// Change is one candle to push, in batch order.
type Change struct {
	Kind   ChangeKind    `json:"kind"`
	Candle models.Candle `json:"candle"`
}

// Detector compares the latest stored candle against a subscription's last
// sent snapshot. An empty result means unchanged.
type Detector struct {
	store marketdata.CandleStore
}

func NewDetector(store marketdata.CandleStore) *Detector {
	return &Detector{store: store}
}

// Detect fetches the latest candle for the subscription's series and reports
// what, if anything, must be pushed. When a period boundary has been crossed
// it also re-fetches the previous period at the snapshot's timestamp: venues
// revise the just-closed candle on late trade settlement, and naive
// "new timestamp means send" logic would silently drop that revision. A
// revised previous candle is reported in the same batch, ordered before the
// new one.
func (d *Detector) Detect(ctx context.Context, sub *subscriptions.CandleSubscription) ([]Change, error) {
	latest, err := d.store.Latest(ctx, sub.Platform, sub.Symbol, sub.Timeframe)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	snap := sub.Snapshot
	if snap == nil {
		return []Change{{Kind: ChangeInit, Candle: *latest}}, nil
	}

	if latest.Timestamp.Equal(snap.Timestamp) {
		// Same open period: push only if a numeric field moved.
		if latest.SameValues(*snap) {
			return nil, nil
		}
		return []Change{{Kind: ChangeUpdate, Candle: *latest}}, nil
	}

	changes := make([]Change, 0, 2)
	prev, err := d.store.At(ctx, sub.Platform, sub.Symbol, sub.Timeframe, snap.Timestamp)
	if err != nil {
		return nil, err
	}
	if prev != nil && !prev.SameValues(*snap) {
		changes = append(changes, Change{Kind: ChangeUpdate, Candle: *prev})
	}
	changes = append(changes, Change{Kind: ChangeNew, Candle: *latest})
	return changes, nil
}
