package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"tradepulse_backend/models"
)

// Broker submits orders to an external trading venue. Implementations live
// outside this codebase; the executor only consumes the capability.
//
// The response is the venue's raw payload. Venues disagree on vocabulary
// ("FILLED" vs "filled", "executedQty" vs "filled_size"), so interpretation
// is left to the caller's status mapping.
type Broker interface {
	PlaceMarketOrder(ctx context.Context, creds models.BrokerCredential, symbol, side string, quantity decimal.Decimal) (map[string]interface{}, error)
}
