package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradepulse_backend/middleware"
	"tradepulse_backend/models"
)

// AlertController handles price alert CRUD requests
type AlertController struct {
	db *gorm.DB
}

// NewAlertController creates a new alert controller
func NewAlertController(db *gorm.DB) *AlertController {
	return &AlertController{db: db}
}

type createAlertRequest struct {
	Platform  string          `json:"platform" binding:"required"`
	Symbol    string          `json:"symbol" binding:"required"`
	Condition string          `json:"condition" binding:"required"`
	Threshold decimal.Decimal `json:"threshold" binding:"required"`
}

// GetAlerts returns the caller's price alerts
// GET /api/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	var alerts []models.PriceAlert

	if err := ac.db.Where("user_id = ?", middleware.UserID(c)).Order("created_at desc").Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// CreateAlert creates a new price alert
// POST /api/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	var req createAlertRequest
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
	if req.Threshold.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Threshold must be positive"})
		return
	}

	alert := models.PriceAlert{
		UserID:    middleware.UserID(c),
		Platform:  platform,
		Symbol:    symbol,
		Condition: condition,
		Threshold: req.Threshold,
	}
	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// DeleteAlert deletes a price alert
// DELETE /api/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	id := c.Param("id")

	var alert models.PriceAlert
	if err := ac.db.Where("id = ? AND user_id = ?", id, middleware.UserID(c)).First(&alert).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	if err := ac.db.Delete(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted successfully"})
}
