package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradepulse_backend/middleware"
	"tradepulse_backend/models"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/subscriptions"
)

// streamHub is the connection surface the controller needs from the
// realtime hub.
type streamHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID uint)
	HasConnection(connectionID string) bool
	Join(connectionID, channel string) error
	Leave(connectionID, channel string)
	ClientCount() int
}

// StreamController handles websocket connections and stream subscriptions
type StreamController struct {
	hub            streamHub
	candleRegistry *subscriptions.Registry[*subscriptions.CandleSubscription]
	alertRegistry  *subscriptions.Registry[*subscriptions.AlertSubscription]
	tradeRegistry  *subscriptions.Registry[*subscriptions.AutoTradeSubscription]
}

// NewStreamController creates a new stream controller
func NewStreamController(
	hub streamHub,
	candleRegistry *subscriptions.Registry[*subscriptions.CandleSubscription],
	alertRegistry *subscriptions.Registry[*subscriptions.AlertSubscription],
	tradeRegistry *subscriptions.Registry[*subscriptions.AutoTradeSubscription],
) *StreamController {
	return &StreamController{
		hub:            hub,
		candleRegistry: candleRegistry,
		alertRegistry:  alertRegistry,
		tradeRegistry:  tradeRegistry,
	}
}

// HandleWebSocket upgrades the connection and hands it to the hub
// GET /ws
func (sc *StreamController) HandleWebSocket(c *gin.Context) {
	sc.hub.ServeWS(c.Writer, c.Request, middleware.UserID(c))
}

type candleSubscribeRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
	Platform     string `json:"platform" binding:"required"`
	Symbol       string `json:"symbol" binding:"required"`
	Timeframe    string `json:"timeframe" binding:"required"`
}

// SubscribeCandles opens a candle stream subscription
// POST /api/stream/candles
func (sc *StreamController) SubscribeCandles(c *gin.Context) {
	var req candleSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := strings.ToLower(req.Platform)
	if !models.ValidPlatform(platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown platform: " + req.Platform})
		return
	}
	symbol := strings.ToUpper(req.Symbol)
	if !models.ValidInstrument(platform, symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown symbol on " + platform + ": " + symbol})
		return
	}
	tf, err := models.ParseTimeframe(req.Timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sc.hub.HasConnection(req.ConnectionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown connection: " + req.ConnectionID})
		return
	}

	sub := subscriptions.NewCandleSubscription(req.ConnectionID, middleware.UserID(c), platform, symbol, tf)
	sc.candleRegistry.Add(sub)
	if err := sc.hub.Join(req.ConnectionID, sub.Channel); err != nil {
		// The connection vanished between the check and the join. Undo only
		// this subscription; others on the same connection stay until their
		// own teardown path runs.
		sc.candleRegistry.Remove(sub.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"subscription_id": sub.ID,
		"channel":         sub.Channel,
	}})
}

// UnsubscribeCandles removes a candle stream subscription
// DELETE /api/stream/candles/:id
func (sc *StreamController) UnsubscribeCandles(c *gin.Context) {
	id := c.Param("id")
	sub, ok := sc.candleRegistry.Get(id)
	if !ok || sub.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	if err := sc.candleRegistry.Remove(id); err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe"})
		return
	}
	sc.hub.Leave(sub.ConnectionID, sub.Channel)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": id}})
}

type connectionRequest struct {
	ConnectionID string `json:"connection_id" binding:"required"`
}

// SubscribeAlerts registers a connection for the user's alert trigger events
// POST /api/stream/alerts
func (sc *StreamController) SubscribeAlerts(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sc.hub.HasConnection(req.ConnectionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown connection: " + req.ConnectionID})
		return
	}

	userID := middleware.UserID(c)
	sub := subscriptions.NewAlertSubscription(req.ConnectionID, userID)
	sc.alertRegistry.Add(sub)
	if err := sc.hub.Join(req.ConnectionID, realtime.UserAlertChannel(userID)); err != nil {
		sc.alertRegistry.Remove(sub.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"subscription_id": sub.ID}})
}

// UnsubscribeAlerts removes an alert subscription
// DELETE /api/stream/alerts/:id
func (sc *StreamController) UnsubscribeAlerts(c *gin.Context) {
	id := c.Param("id")
	sub, ok := sc.alertRegistry.Get(id)
	if !ok || sub.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	if err := sc.alertRegistry.Remove(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	sc.hub.Leave(sub.ConnectionID, realtime.UserAlertChannel(sub.UserID))

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": id}})
}

// SubscribeTrades registers a connection for the user's trade execution events
// POST /api/stream/trades
func (sc *StreamController) SubscribeTrades(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sc.hub.HasConnection(req.ConnectionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown connection: " + req.ConnectionID})
		return
	}

	userID := middleware.UserID(c)
	sub := subscriptions.NewAutoTradeSubscription(req.ConnectionID, userID)
	sc.tradeRegistry.Add(sub)
	if err := sc.hub.Join(req.ConnectionID, realtime.UserTradeChannel(userID)); err != nil {
		sc.tradeRegistry.Remove(sub.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"subscription_id": sub.ID}})
}

// UnsubscribeTrades removes a trade subscription
// DELETE /api/stream/trades/:id
func (sc *StreamController) UnsubscribeTrades(c *gin.Context) {
	id := c.Param("id")
	sub, ok := sc.tradeRegistry.Get(id)
	if !ok || sub.UserID != middleware.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	if err := sc.tradeRegistry.Remove(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	sc.hub.Leave(sub.ConnectionID, realtime.UserTradeChannel(sub.UserID))

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": id}})
}

// GetStatus returns stream service status
// GET /api/stream/status
func (sc *StreamController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"clients":              sc.hub.ClientCount(),
		"candle_subscriptions": sc.candleRegistry.Len(),
		"alert_subscriptions":  sc.alertRegistry.Len(),
		"trade_subscriptions":  sc.tradeRegistry.Len(),
	}})
}
