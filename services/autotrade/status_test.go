package autotrade

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradepulse_backend/models"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		venue string
		raw   string
		want  string
	}{
		{"binance", "FILLED", models.ExecStatusCompleted},
		{"binance", "filled", models.ExecStatusCompleted},
		{"binance", "REJECTED", models.ExecStatusFailed},
		{"binance", "EXPIRED", models.ExecStatusFailed},
		{"binance", "CANCELED", models.ExecStatusFailed},
		{"binance", "NEW", models.ExecStatusPending},
		{"binance", "PARTIALLY_FILLED", models.ExecStatusPending},
		{"binance", "", models.ExecStatusPending},
		{"binance", "SOMETHING_ELSE", models.ExecStatusPending},
		{"coinbase", "done", models.ExecStatusCompleted},
		{"coinbase", "cancelled", models.ExecStatusFailed},
		{"unknown-venue", "FILLED", models.ExecStatusCompleted},
		{"unknown-venue", "weird", models.ExecStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.venue+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStatus(tt.venue, tt.raw))
		})
	}
}
