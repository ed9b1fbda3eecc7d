package autotrade

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradepulse_backend/models"
	"tradepulse_backend/services/broker"
)

// ExecutionResult is what gets pushed to the rule owner's connections after
// an execution attempt. Failures are reported here with Success=false, never
// as an error back into the poll loop.
type ExecutionResult struct {
	Success        bool            `json:"success"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	Status         string          `json:"status"`
}

// Executor submits market orders for triggered rules and records the
// outcome. It does not delete the rule; the poll loop owns the one-shot
// transition so that deletion and notification stay in the same unit of work.
type Executor struct {
	db     *gorm.DB
	broker broker.Broker
}

func NewExecutor(db *gorm.DB, b broker.Broker) *Executor {
	return &Executor{db: db, broker: b}
}

// Execute resolves the rule's venue credentials, submits a market order and
// maps the venue status onto pending/completed/failed. A transaction row is
// written for every attempt; submission failures leave a zero-quantity,
// zero-price failed row so each trigger has an audit trail.
func (e *Executor) Execute(ctx context.Context, rule *models.AutoTradeRule, trigger models.Candle) *ExecutionResult {
	result := e.submit(ctx, rule)
	e.recordTransaction(rule, trigger, result)
	return result
}

func (e *Executor) submit(ctx context.Context, rule *models.AutoTradeRule) *ExecutionResult {
	var creds models.BrokerCredential
	err := e.db.WithContext(ctx).
		Where("user_id = ? AND venue = ?", rule.UserID, rule.Platform).
		First(&creds).Error
	if err != nil {
		log.Printf("Rule %d: no %s credentials for user %d: %v", rule.ID, rule.Platform, rule.UserID, err)
		return &ExecutionResult{Status: models.ExecStatusFailed}
	}

	resp, err := e.broker.PlaceMarketOrder(ctx, creds, rule.Symbol, rule.Side, rule.Quantity)
	if err != nil {
		log.Printf("Rule %d: order submission failed: %v", rule.ID, err)
		return &ExecutionResult{Status: models.ExecStatusFailed}
	}

	status := MapStatus(rule.Platform, stringField(resp, "status"))
	return &ExecutionResult{
		Success:        status == models.ExecStatusCompleted,
		FilledQuantity: decimalField(resp, "executedQty"),
		AveragePrice:   decimalField(resp, "avgPrice"),
		Status:         status,
	}
}

func (e *Executor) recordTransaction(rule *models.AutoTradeRule, trigger models.Candle, result *ExecutionResult) {
	tx := models.TradeTransaction{
		UserID:         rule.UserID,
		RuleID:         rule.ID,
		PortfolioID:    rule.PortfolioID,
		Platform:       rule.Platform,
		Symbol:         rule.Symbol,
		Side:           rule.Side,
		Quantity:       rule.Quantity,
		FilledQuantity: result.FilledQuantity,
		AvgPrice:       result.AveragePrice,
		Status:         result.Status,
		Success:        result.Success,
		TriggerPrice:   decimal.NewFromFloat(rule.Condition.TriggerPrice(trigger)),
	}
	if err := e.db.Create(&tx).Error; err != nil {
		log.Printf("Rule %d: failed to record transaction: %v", rule.ID, err)
	}
}

// stringField reads a string value out of a venue response map.
func stringField(resp map[string]interface{}, key string) string {
	if v, ok := resp[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// decimalField reads a numeric value that venues return either as a string
// or as a JSON number.
func decimalField(resp map[string]interface{}, key string) decimal.Decimal {
	switch v := resp[key].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}
