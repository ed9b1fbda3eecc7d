package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradepulse_backend/middleware"
	"tradepulse_backend/models"
)

// AutoTradeController handles automated trade rule requests
type AutoTradeController struct {
	db *gorm.DB
}

// NewAutoTradeController creates a new autotrade controller
func NewAutoTradeController(db *gorm.DB) *AutoTradeController {
	return &AutoTradeController{db: db}
}

type createRuleRequest struct {
	Platform    string          `json:"platform" binding:"required"`
	Symbol      string          `json:"symbol" binding:"required"`
	Condition   string          `json:"condition" binding:"required"`
	Threshold   decimal.Decimal `json:"threshold" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	PortfolioID uint            `json:"portfolio_id"`
}

// GetRules returns the caller's automated trade rules
// GET /api/autotrade/rules
func (atc *AutoTradeController) GetRules(c *gin.Context) {
	var rules []models.AutoTradeRule

	if err := atc.db.Where("user_id = ?", middleware.UserID(c)).Order("created_at desc").Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

// CreateRule creates a new automated trade rule
// POST /api/autotrade/rules
func (atc *AutoTradeController) CreateRule(c *gin.Context) {
	var req createRuleRequest
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
	condition := models.AlertCondition(req.Condition)
	if !condition.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown condition: " + req.Condition})
		return
	}
	side := strings.ToUpper(req.Side)
	if side != models.SideBuy && side != models.SideSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Side must be BUY or SELL"})
		return
	}
	if req.Threshold.Sign() <= 0 || req.Quantity.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Threshold and quantity must be positive"})
		return
	}

	rule := models.AutoTradeRule{
		UserID:      middleware.UserID(c),
		PortfolioID: req.PortfolioID,
		Platform:    platform,
		Symbol:      symbol,
		Condition:   condition,
		Threshold:   req.Threshold,
		Side:        side,
		Quantity:    req.Quantity,
	}
	if err := atc.db.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rule})
}

// DeleteRule deletes an automated trade rule
// DELETE /api/autotrade/rules/:id
func (atc *AutoTradeController) DeleteRule(c *gin.Context) {
	id := c.Param("id")

	var rule models.AutoTradeRule
	if err := atc.db.Where("id = ? AND user_id = ?", id, middleware.UserID(c)).First(&rule).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	if err := atc.db.Delete(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// GetTransactions returns the caller's trade transactions
// GET /api/autotrade/transactions
func (atc *AutoTradeController) GetTransactions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var transactions []models.TradeTransaction
	if err := atc.db.Where("user_id = ?", middleware.UserID(c)).
		Order("created_at desc").Limit(limit).Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transactions})
}

type credentialRequest struct {
	Venue     string `json:"venue" binding:"required"`
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

// UpsertCredential stores or replaces the caller's venue credentials
// PUT /api/autotrade/credentials
func (atc *AutoTradeController) UpsertCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	venue := strings.ToLower(req.Venue)
	if !models.ValidPlatform(venue) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown venue: " + req.Venue})
		return
	}

	userID := middleware.UserID(c)
	var cred models.BrokerCredential
	err := atc.db.Where("user_id = ? AND venue = ?", userID, venue).First(&cred).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch credentials"})
		return
	}

	cred.UserID = userID
	cred.Venue = venue
	cred.APIKey = req.APIKey
	cred.APISecret = req.APISecret
	if err := atc.db.Save(&cred).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Credentials saved successfully"})
}
