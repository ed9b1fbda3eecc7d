package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertCondition is the trigger condition shared by price alerts and
// automated trade rules.
type AlertCondition string

const (
	ConditionPriceAbove AlertCondition = "price_above"
	ConditionPriceBelow AlertCondition = "price_below"
)

// Valid reports whether the condition is one of the supported kinds.
func (c AlertCondition) Valid() bool {
	return c == ConditionPriceAbove || c == ConditionPriceBelow
}

// Matches tests the condition against a candle. Price-above fires on the
// candle's high, price-below on its low, so an intraperiod spike triggers
// even when the close pulled back.
func (c AlertCondition) Matches(threshold decimal.Decimal, candle Candle) bool {
	switch c {
	case ConditionPriceAbove:
		return candle.High > threshold.InexactFloat64()
	case ConditionPriceBelow:
		return candle.Low < threshold.InexactFloat64()
	}
	return false
}

// TriggerPrice is the price that satisfied the condition: the high for
// price-above, the low for price-below.
func (c AlertCondition) TriggerPrice(candle Candle) float64 {
	if c == ConditionPriceBelow {
		return candle.Low
	}
	return candle.High
}

// PriceAlert is a user-authored one-shot price alert. It is deleted the
// moment its condition fires; an alert never fires twice.
type PriceAlert struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index;not null" json:"user_id"`
	User      User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Platform  string          `gorm:"not null" json:"platform"`
	Symbol    string          `gorm:"not null" json:"symbol"`
	Condition AlertCondition  `gorm:"type:varchar(20);not null" json:"condition"`
	Threshold decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"threshold"`
	CreatedAt time.Time       `json:"created_at"`
}

// MigrateAlertModels runs database migrations for alert models.
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&PriceAlert{})
}
