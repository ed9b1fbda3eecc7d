package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"tradepulse_backend/middleware"
	"tradepulse_backend/models"
)

// SessionTTL is how long an issued session stays valid. The poll loops treat
// a user with no unexpired session as disconnected.
const SessionTTL = 24 * time.Hour

// UserController handles registration, login and profile requests
type UserController struct {
	db        *gorm.DB
	jwtSecret string
}

// NewUserController creates a new user controller
func NewUserController(db *gorm.DB, jwtSecret string) *UserController {
	return &UserController{db: db, jwtSecret: jwtSecret}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
}

// Register creates a new user account
// POST /api/auth/register
func (uc *UserController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := uc.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	}

	user := models.User{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     "user",
		IsActive: true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	if err := uc.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials, opens a session and issues a JWT
// POST /api/auth/login
func (uc *UserController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := uc.db.Where("email = ? AND is_active = ?", req.Email, true).First(&user).Error; err != nil {
		middleware.RecordLoginAttempt(c.ClientIP(), false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !user.CheckPassword(req.Password) {
		middleware.RecordLoginAttempt(c.ClientIP(), false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	middleware.RecordLoginAttempt(c.ClientIP(), true)

	now := time.Now()
	expiresAt := now.Add(SessionTTL)

	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID,
		Email:  user.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(uc.jwtSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	session := models.UserSession{
		UserID:      user.ID,
		AccessToken: signed,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		ExpiresAt:   expiresAt,
	}
	if err := uc.db.Create(&session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return
	}

	uc.db.Model(&user).Update("last_login_at", now)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":      signed,
		"expires_at": expiresAt,
		"user":       user,
	}})
}

// Logout closes all of the caller's sessions. Their live subscriptions are
// swept on the next poll tick once no valid session remains.
// POST /api/auth/logout
func (uc *UserController) Logout(c *gin.Context) {
	userID := middleware.UserID(c)

	if err := uc.db.Where("user_id = ?", userID).Delete(&models.UserSession{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetProfile returns the authenticated user
// GET /api/auth/me
func (uc *UserController) GetProfile(c *gin.Context) {
	var user models.User
	if err := uc.db.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}
