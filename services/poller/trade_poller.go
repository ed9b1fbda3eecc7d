package poller

import (
	"context"
	"log"
	"sync/atomic"

	"gorm.io/gorm"

	"tradepulse_backend/models"
	"tradepulse_backend/services/audit"
	"tradepulse_backend/services/autotrade"
	"tradepulse_backend/services/realtime"
	"tradepulse_backend/services/session"
	"tradepulse_backend/services/subscriptions"
)

// TradePoller drives automated trade rules: condition check against the
// latest candle, one execution attempt, and unconditional consumption of the
// rule so a failed trade cannot keep firing tick after tick.
type TradePoller struct {
	db        *gorm.DB
	registry  *subscriptions.Registry[*subscriptions.AutoTradeSubscription]
	evaluator *autotrade.Evaluator
	executor  *autotrade.Executor
	publisher realtime.Publisher
	sessions  session.Checker
	audit     audit.Logger

	ticking int32
}

func NewTradePoller(
	db *gorm.DB,
	registry *subscriptions.Registry[*subscriptions.AutoTradeSubscription],
	evaluator *autotrade.Evaluator,
	executor *autotrade.Executor,
	publisher realtime.Publisher,
	sessions session.Checker,
	auditor audit.Logger,
) *TradePoller {
	return &TradePoller{
		db:        db,
		registry:  registry,
		evaluator: evaluator,
		executor:  executor,
		publisher: publisher,
		sessions:  sessions,
		audit:     auditor,
	}
}

func (p *TradePoller) RunTick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.ticking, 0, 1) {
		log.Println("Trade tick still running, skipping")
		return
	}
	defer atomic.StoreInt32(&p.ticking, 0)

	subs := sweepLapsed(ctx, p.registry, p.sessions, p.audit)
	for _, sub := range subs {
		p.evalOne(ctx, sub)
	}
}

func (p *TradePoller) evalOne(ctx context.Context, sub *subscriptions.AutoTradeSubscription) {
	defer guard(sub.ID)

	var rules []models.AutoTradeRule
	if err := p.db.WithContext(ctx).Where("user_id = ?", sub.UserID).Find(&rules).Error; err != nil {
		log.Printf("Trade subscription %s: loading rules for user %d: %v", sub.ID, sub.UserID, err)
		return
	}

	for i := range rules {
		rule := &rules[i]
		trigger, err := p.evaluator.Evaluate(ctx, rule)
		if err != nil {
			log.Printf("Rule %d (%s %s): %v", rule.ID, rule.Platform, rule.Symbol, err)
			continue
		}
		if trigger == nil {
			continue
		}
		p.execute(ctx, sub, rule, trigger)
	}
}

func (p *TradePoller) execute(ctx context.Context, sub *subscriptions.AutoTradeSubscription, rule *models.AutoTradeRule, trigger *models.Candle) {
	result := p.executor.Execute(ctx, rule, *trigger)

	p.publisher.Publish(realtime.UserTradeChannel(sub.UserID), TradeEvent{
		Type:           "trade_executed",
		RuleID:         rule.ID,
		Platform:       rule.Platform,
		Symbol:         rule.Symbol,
		Side:           rule.Side,
		Success:        result.Success,
		Status:         result.Status,
		FilledQuantity: result.FilledQuantity.String(),
		AveragePrice:   result.AveragePrice.String(),
		TriggerPrice:   rule.Condition.TriggerPrice(*trigger),
	})

	// One execution attempt per rule, no retry. The rule goes away whether
	// the venue filled, rejected or was unreachable.
	if err := p.db.WithContext(ctx).Delete(&models.AutoTradeRule{}, rule.ID).Error; err != nil {
		log.Printf("Rule %d: delete after execution failed: %v", rule.ID, err)
	}

	p.audit.Record(ctx, "trade_executed", map[string]interface{}{
		"rule_id": rule.ID,
		"user_id": rule.UserID,
		"symbol":  rule.Symbol,
		"side":    rule.Side,
		"status":  result.Status,
		"success": result.Success,
	})
}
