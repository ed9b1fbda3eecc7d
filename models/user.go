package models

import (
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SystemUserEmail identifies the non-human execution identity used by the
// poll orchestrators for audit logging during ticks.
const SystemUserEmail = "system@tradepulse.local"

// User represents an account in the system.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `json:"full_name"`
	Role         string     `gorm:"default:'user'" json:"role"` // user, admin, system
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SetPassword hashes and sets the password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies the password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// UserSession tracks a user's authenticated session. The poll orchestrators
// treat a user with no unexpired session as disconnected and sweep their
// subscriptions.
type UserSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AccessToken  string    `gorm:"not null" json:"-"`
	RefreshToken string    `json:"-"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	ExpiresAt    time.Time `gorm:"index" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// SeedSystemUser creates the system execution identity if it does not exist.
func SeedSystemUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&User{}).Where("email = ?", SystemUserEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	system := User{
		Email:    SystemUserEmail,
		FullName: "Scheduler",
		Role:     "system",
		IsActive: true,
	}
	if err := system.SetPassword(uuid.NewString()); err != nil {
		return err
	}
	if err := db.Create(&system).Error; err != nil {
		return err
	}

	log.Printf("Seeded system user (id=%d)", system.ID)
	return nil
}

// MigrateUserModels runs database migrations for user-related models.
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &UserSession{})
}
