package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade side for automated rules.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Execution status values for trade transactions. Venue vocabularies are
// mapped onto these three states by the executor.
const (
	ExecStatusPending   = "pending"
	ExecStatusCompleted = "completed"
	ExecStatusFailed    = "failed"
)

// AutoTradeRule is a user-authored one-shot trade rule. Like PriceAlert it
// is deleted after a single execution attempt, success or failure, so a
// failed trade can never keep firing on every tick.
type AutoTradeRule struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"user_id"`
	User        User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PortfolioID uint            `gorm:"index" json:"portfolio_id"`
	Platform    string          `gorm:"not null" json:"platform"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Condition   AlertCondition  `gorm:"type:varchar(20);not null" json:"condition"`
	Threshold   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"threshold"`
	Side        string          `gorm:"type:varchar(4);not null" json:"side"`
	Quantity    decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TradeTransaction is the audit record written for every execution attempt.
// A failed submission still produces a row with zero quantity and price.
type TradeTransaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index" json:"user_id"`
	RuleID         uint            `json:"rule_id"`
	PortfolioID    uint            `json:"portfolio_id"`
	Platform       string          `json:"platform"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Quantity       decimal.Decimal `gorm:"type:decimal(30,8)" json:"quantity"`
	FilledQuantity decimal.Decimal `gorm:"type:decimal(30,8)" json:"filled_quantity"`
	AvgPrice       decimal.Decimal `gorm:"type:decimal(20,8)" json:"avg_price"`
	Status         string          `gorm:"type:varchar(12)" json:"status"`
	Success        bool            `json:"success"`
	TriggerPrice   decimal.Decimal `gorm:"type:decimal(20,8)" json:"trigger_price"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BrokerCredential holds a user's venue credentials used when submitting
// market orders for triggered rules.
type BrokerCredential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_user_venue,unique" json:"user_id"`
	Venue     string    `gorm:"index:idx_user_venue,unique" json:"venue"`
	APIKey    string    `gorm:"not null" json:"-"`
	APISecret string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigrateTradingModels runs database migrations for trading-related models.
func MigrateTradingModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&AutoTradeRule{},
		&TradeTransaction{},
		&BrokerCredential{},
	)
}
