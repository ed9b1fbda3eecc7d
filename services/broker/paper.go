package broker

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradepulse_backend/models"
	"tradepulse_backend/services/marketdata"
)

// PaperBroker fills market orders against the latest stored 1m candle close
// instead of routing them to a live venue. It answers in the venue's raw
// vocabulary so the status mapping sees the same shapes a real adapter
// would produce.
type PaperBroker struct {
	store marketdata.CandleStore
}

// NewPaperBroker creates a simulated venue backed by stored candle data.
func NewPaperBroker(store marketdata.CandleStore) *PaperBroker {
	return &PaperBroker{store: store}
}

// PlaceMarketOrder fills the order at the latest close for the credential's
// venue. An instrument with no candle data is rejected.
func (b *PaperBroker) PlaceMarketOrder(ctx context.Context, creds models.BrokerCredential, symbol, side string, quantity decimal.Decimal) (map[string]interface{}, error) {
	candle, err := b.store.Latest(ctx, creds.Venue, symbol, models.Timeframe1m)
	if err != nil {
		return nil, fmt.Errorf("paper fill lookup for %s/%s: %w", creds.Venue, symbol, err)
	}
	if candle == nil {
		return map[string]interface{}{
			"orderId": uuid.NewString(),
			"status":  "REJECTED",
		}, nil
	}

	orderID := uuid.NewString()
	log.Printf("Paper %s order filled: %s %s %s at %.8f", side, creds.Venue, symbol, quantity.String(), candle.Close)

	return map[string]interface{}{
		"orderId":     orderID,
		"status":      "FILLED",
		"executedQty": quantity.InexactFloat64(),
		"avgPrice":    candle.Close,
	}, nil
}
