package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Timeframe is the bucket width of a candle series.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// timeframeLadder is ordered finest to coarsest. Escalation walks it upward.
var timeframeLadder = []Timeframe{
	Timeframe1m,
	Timeframe5m,
	Timeframe15m,
	Timeframe1h,
	Timeframe4h,
	Timeframe1d,
}

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string from a client request.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the bucket width of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// NextCoarser returns the next timeframe up the ladder, or false at the top.
func (tf Timeframe) NextCoarser() (Timeframe, bool) {
	for i, t := range timeframeLadder {
		if t == tf && i+1 < len(timeframeLadder) {
			return timeframeLadder[i+1], true
		}
	}
	return "", false
}

// Venues candle series are tracked for.
var supportedPlatforms = map[string]bool{
	"binance":  true,
	"coinbase": true,
	"kraken":   true,
}

// ValidPlatform reports whether the platform is a known venue.
func ValidPlatform(p string) bool {
	return supportedPlatforms[p]
}

// Instruments tracked per venue, in each venue's own symbol notation.
var supportedSymbols = map[string]map[string]bool{
	"binance": {
		"BTCUSDT": true,
		"ETHUSDT": true,
		"SOLUSDT": true,
		"BNBUSDT": true,
		"XRPUSDT": true,
	},
	"coinbase": {
		"BTC-USD": true,
		"ETH-USD": true,
		"SOL-USD": true,
	},
	"kraken": {
		"XBTUSD": true,
		"ETHUSD": true,
		"SOLUSD": true,
	},
}

// ValidInstrument reports whether the symbol is tracked on the platform.
// Subscriptions and rules on untracked instruments would only ever see empty
// candle series, so they are rejected up front.
func ValidInstrument(platform, symbol string) bool {
	return supportedSymbols[platform][symbol]
}

// Candle is an OHLCV summary for one instrument over one fixed time bucket.
// This is the runtime shape handed to evaluators and notification payloads.
type Candle struct {
	Platform  string    `json:"platform"`
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// SameValues reports whether the five numeric fields match. Exchanges revise
// the currently forming candle and sometimes the just-closed one, so equality
// of the timestamp alone is not enough to call a candle unchanged.
func (c Candle) SameValues(other Candle) bool {
	return c.Open == other.Open &&
		c.High == other.High &&
		c.Low == other.Low &&
		c.Close == other.Close &&
		c.Volume == other.Volume
}

// CandleRecord is the persisted candle row backing the default candle store.
type CandleRecord struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Platform  string          `gorm:"index:idx_candle_key;not null" json:"platform"`
	Symbol    string          `gorm:"index:idx_candle_key;not null" json:"symbol"`
	Timeframe string          `gorm:"index:idx_candle_key;not null" json:"timeframe"`
	Timestamp time.Time       `gorm:"index:idx_candle_key;not null" json:"timestamp"`
	Open      decimal.Decimal `gorm:"type:decimal(20,8)" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(20,8)" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(20,8)" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(20,8)" json:"close"`
	Volume    decimal.Decimal `gorm:"type:decimal(30,8)" json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToCandle converts a persisted row into the runtime shape.
func (r CandleRecord) ToCandle() Candle {
	return Candle{
		Platform:  r.Platform,
		Symbol:    r.Symbol,
		Timeframe: Timeframe(r.Timeframe),
		Timestamp: r.Timestamp.UTC(),
		Open:      r.Open.InexactFloat64(),
		High:      r.High.InexactFloat64(),
		Low:       r.Low.InexactFloat64(),
		Close:     r.Close.InexactFloat64(),
		Volume:    r.Volume.InexactFloat64(),
	}
}

// MigrateCandleModels runs database migrations for candle storage.
func MigrateCandleModels(db *gorm.DB) error {
	return db.AutoMigrate(&CandleRecord{})
}
