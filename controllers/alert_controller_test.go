package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradepulse_backend/models"
)

func testRouter(t *testing.T, userID uint) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigrateAlertModels(db))

	router := gin.New()
	// Stand-in for the JWT middleware
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
	})
	return router, db
}

func TestCreateAlertValidation(t *testing.T) {
	router, db := testRouter(t, 1)
	ac := NewAlertController(db)
	router.POST("/api/alerts", ac.CreateAlert)

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"valid", map[string]interface{}{
			"platform": "binance", "symbol": "btcusdt", "condition": "price_above", "threshold": "50000",
		}, http.StatusCreated},
		{"unknown platform", map[string]interface{}{
			"platform": "nasdaq", "symbol": "BTCUSDT", "condition": "price_above", "threshold": "50000",
		}, http.StatusBadRequest},
		{"unknown condition", map[string]interface{}{
			"platform": "binance", "symbol": "BTCUSDT", "condition": "price_crosses", "threshold": "50000",
		}, http.StatusBadRequest},
		{"negative threshold", map[string]interface{}{
			"platform": "binance", "symbol": "BTCUSDT", "condition": "price_below", "threshold": "-1",
		}, http.StatusBadRequest},
		{"missing symbol", map[string]interface{}{
			"platform": "binance", "condition": "price_below", "threshold": "100",
		}, http.StatusBadRequest},
		{"symbol not tracked on platform", map[string]interface{}{
			"platform": "binance", "symbol": "BTC-USD", "condition": "price_above", "threshold": "50000",
		}, http.StatusBadRequest},
		{"made-up symbol", map[string]interface{}{
			"platform": "kraken", "symbol": "NOSUCHPAIR", "condition": "price_above", "threshold": "50000",
		}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/alerts", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}

	// Symbol and platform are normalized on write
	var alert models.PriceAlert
	require.NoError(t, db.First(&alert).Error)
	assert.Equal(t, "BTCUSDT", alert.Symbol)
	assert.Equal(t, "binance", alert.Platform)
	assert.Equal(t, uint(1), alert.UserID)
}

func TestDeleteAlertOwnership(t *testing.T) {
	router, db := testRouter(t, 2)
	ac := NewAlertController(db)
	router.DELETE("/api/alerts/:id", ac.DeleteAlert)

	other := models.PriceAlert{UserID: 1, Platform: "binance", Symbol: "BTCUSDT", Condition: models.ConditionPriceAbove}
	require.NoError(t, db.Create(&other).Error)
	mine := models.PriceAlert{UserID: 2, Platform: "binance", Symbol: "ETHUSDT", Condition: models.ConditionPriceBelow}
	require.NoError(t, db.Create(&mine).Error)

	// Someone else's alert looks like it does not exist
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/alerts/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/alerts/2", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.PriceAlert{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
