package session

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"tradepulse_backend/models"
)

// Checker reports whether a user currently holds a valid session. The poll
// orchestrators sweep away subscriptions whose owner fails this check; it is
// the only cleanup path for connections that vanished without an explicit
// unsubscribe or disconnect.
type Checker interface {
	HasValidSession(ctx context.Context, userID uint) bool
}

// GormChecker validates against the user_sessions table.
type GormChecker struct {
	db *gorm.DB
}

func NewGormChecker(db *gorm.DB) *GormChecker {
	return &GormChecker{db: db}
}

// HasValidSession reports whether the user has at least one unexpired
// session. A store error fails open: a transient database hiccup must not
// tear down every live subscription in one sweep.
func (c *GormChecker) HasValidSession(ctx context.Context, userID uint) bool {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.UserSession{}).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Count(&count).Error
	if err != nil {
		log.Printf("Session check for user %d failed: %v", userID, err)
		return true
	}
	return count > 0
}
