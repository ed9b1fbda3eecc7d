package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("15m")
	require.NoError(t, err)
	assert.Equal(t, Timeframe15m, tf)
	assert.Equal(t, 15*time.Minute, tf.Duration())

	_, err = ParseTimeframe("2m")
	assert.Error(t, err)
	_, err = ParseTimeframe("")
	assert.Error(t, err)
}

func TestNextCoarserWalksTheLadder(t *testing.T) {
	order := []Timeframe{Timeframe1m}
	tf := Timeframe1m
	for {
		next, ok := tf.NextCoarser()
		if !ok {
			break
		}
		order = append(order, next)
		tf = next
	}
	assert.Equal(t, []Timeframe{
		Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d,
	}, order)

	_, ok := Timeframe1d.NextCoarser()
	assert.False(t, ok)
}

func TestCandleSameValues(t *testing.T) {
	a := Candle{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}
	b := a
	assert.True(t, a.SameValues(b))

	b.Volume = 120
	assert.False(t, a.SameValues(b))

	// Timestamp is identity, not content
	c := a
	c.Timestamp = time.Now()
	assert.True(t, a.SameValues(c))
}

func TestValidPlatform(t *testing.T) {
	assert.True(t, ValidPlatform("binance"))
	assert.True(t, ValidPlatform("kraken"))
	assert.False(t, ValidPlatform("Binance"))
	assert.False(t, ValidPlatform("nasdaq"))
}

func TestValidInstrument(t *testing.T) {
	assert.True(t, ValidInstrument("binance", "BTCUSDT"))
	assert.True(t, ValidInstrument("coinbase", "BTC-USD"))
	assert.True(t, ValidInstrument("kraken", "XBTUSD"))

	// Symbol formats do not cross venues
	assert.False(t, ValidInstrument("binance", "BTC-USD"))
	assert.False(t, ValidInstrument("kraken", "BTCUSDT"))
	assert.False(t, ValidInstrument("binance", "NOSUCHPAIR"))
	assert.False(t, ValidInstrument("nasdaq", "BTCUSDT"))
}
