package autotrade

import (
	"strings"

	"tradepulse_backend/models"
)

// Venue order-state vocabularies mapped onto the three-state execution
// status. Lookup is case-insensitive; anything unlisted, including an absent
// status, stays pending until the venue says otherwise.
var defaultStatusTable = map[string]string{
	"filled":   models.ExecStatusCompleted,
	"rejected": models.ExecStatusFailed,
	"expired":  models.ExecStatusFailed,
	"canceled": models.ExecStatusFailed,
}

var venueStatusTables = map[string]map[string]string{
	"binance": {
		"filled":           models.ExecStatusCompleted,
		"rejected":         models.ExecStatusFailed,
		"expired":          models.ExecStatusFailed,
		"canceled":         models.ExecStatusFailed,
		"pending_cancel":   models.ExecStatusFailed,
		"new":              models.ExecStatusPending,
		"partially_filled": models.ExecStatusPending,
	},
	"coinbase": {
		"filled":    models.ExecStatusCompleted,
		"done":      models.ExecStatusCompleted,
		"rejected":  models.ExecStatusFailed,
		"cancelled": models.ExecStatusFailed,
		"canceled":  models.ExecStatusFailed,
		"expired":   models.ExecStatusFailed,
	},
}

// MapStatus translates a venue's raw order status into pending, completed or
// failed.
func MapStatus(venue, raw string) string {
	if raw == "" {
		return models.ExecStatusPending
	}
	table, ok := venueStatusTables[strings.ToLower(venue)]
	if !ok {
		table = defaultStatusTable
	}
	if mapped, ok := table[strings.ToLower(raw)]; ok {
		return mapped
	}
	return models.ExecStatusPending
}
