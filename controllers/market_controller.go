package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradepulse_backend/models"
	"tradepulse_backend/services/marketdata"
)

// MarketController serves stored candle data
type MarketController struct {
	store marketdata.CandleStore
}

// NewMarketController creates a new market controller
func NewMarketController(store marketdata.CandleStore) *MarketController {
	return &MarketController{store: store}
}

// GetLatestCandle returns the most recent candle for an instrument
// GET /api/market/:platform/:symbol/latest
func (mc *MarketController) GetLatestCandle(c *gin.Context) {
	platform := strings.ToLower(c.Param("platform"))
	symbol := strings.ToUpper(c.Param("symbol"))

	if !models.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown platform: " + platform})
		return
	}
	tf, err := models.ParseTimeframe(c.DefaultQuery("timeframe", "1m"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candle, err := mc.store.Latest(c.Request.Context(), platform, symbol, tf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch candle"})
		return
	}
	if candle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No candle data for " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": candle})
}

// GetCandles returns candles for an instrument over a time window
// GET /api/market/:platform/:symbol/candles
func (mc *MarketController) GetCandles(c *gin.Context) {
	platform := strings.ToLower(c.Param("platform"))
	symbol := strings.ToUpper(c.Param("symbol"))

	if !models.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown platform: " + platform})
		return
	}
	tf, err := models.ParseTimeframe(c.DefaultQuery("timeframe", "1m"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to timestamp"})
			return
		}
	}
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from timestamp"})
			return
		}
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}

	candles, err := mc.store.Range(c.Request.Context(), platform, symbol, tf, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch candles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": candles, "count": len(candles)})
}
