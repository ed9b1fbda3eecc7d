package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tradepulse_backend/controllers"
	"tradepulse_backend/middleware"
	"tradepulse_backend/services/marketdata"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/subscriptions"
)

// Registries bundles the live subscription indexes shared between the HTTP
// layer and the poll loops.
type Registries struct {
	Candles *subscriptions.Registry[*subscriptions.CandleSubscription]
	Alerts  *subscriptions.Registry[*subscriptions.AlertSubscription]
	Trades  *subscriptions.Registry[*subscriptions.AutoTradeSubscription]
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, hub *realtime.Hub, regs Registries, jwtSecret string) {
	// Initialize controllers
	userController := controllers.NewUserController(db, jwtSecret)
	alertController := controllers.NewAlertController(db)
	autoTradeController := controllers.NewAutoTradeController(db)
	marketController := controllers.NewMarketController(marketdata.NewGormCandleStore(db))
	streamController := controllers.NewStreamController(hub, regs.Candles, regs.Alerts, regs.Trades)

	auth := middleware.JWTAuthMiddleware(jwtSecret)

	// Auth routes
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", userController.Register)
		authGroup.POST("/login", middleware.LoginRateLimitMiddleware(), userController.Login)
		authGroup.POST("/logout", auth, userController.Logout)
		authGroup.GET("/me", auth, userController.GetProfile)
	}

	// API group, all authenticated
	api := router.Group("/api", auth)
	{
		// Market data routes
		market := api.Group("/market")
		{
			market.GET("/:platform/:symbol/latest", marketController.GetLatestCandle)
			market.GET("/:platform/:symbol/candles", marketController.GetCandles)
		}

		// Price alert routes
		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertController.GetAlerts)
			alerts.POST("", alertController.CreateAlert)
			alerts.DELETE("/:id", alertController.DeleteAlert)
		}

		// Automated trading routes
		autotrade := api.Group("/autotrade")
		{
			autotrade.GET("/rules", autoTradeController.GetRules)
			autotrade.POST("/rules", autoTradeController.CreateRule)
			autotrade.DELETE("/rules/:id", autoTradeController.DeleteRule)
			autotrade.GET("/transactions", autoTradeController.GetTransactions)
			autotrade.PUT("/credentials", autoTradeController.UpsertCredential)
		}

		// Stream subscription routes
		stream := api.Group("/stream")
		{
			stream.GET("/status", streamController.GetStatus)
			stream.POST("/candles", streamController.SubscribeCandles)
			stream.DELETE("/candles/:id", streamController.UnsubscribeCandles)
			stream.POST("/alerts", streamController.SubscribeAlerts)
			stream.DELETE("/alerts/:id", streamController.UnsubscribeAlerts)
			stream.POST("/trades", streamController.SubscribeTrades)
			stream.DELETE("/trades/:id", streamController.UnsubscribeTrades)
		}
	}

	// Websocket endpoint, token passed as query parameter
	router.GET("/ws", auth, streamController.HandleWebSocket)
}
