package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"tradepulse_backend/services/poller"
)

// Scheduler manages the periodic poll jobs
type Scheduler struct {
	cron   *gocron.Scheduler
	candle *poller.CandlePoller
	alert  *poller.AlertPoller
	trade  *poller.TradePoller
}

// NewScheduler creates a scheduler driving the three poll orchestrators.
func NewScheduler(candle *poller.CandlePoller, alert *poller.AlertPoller, trade *poller.TradePoller) *Scheduler {
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		candle: candle,
		alert:  alert,
		trade:  trade,
	}
}

// Start registers and starts all poll jobs.
func (s *Scheduler) Start() {
	log.Println("Starting poll scheduler...")
	ctx := context.Background()

	// SingletonMode serializes ticks of the same job: a tick that outlives
	// its interval delays the next tick instead of running alongside it.
	if _, err := s.cron.Every(poller.CandlePollInterval).SingletonMode().Do(func() {
		s.candle.RunTick(ctx)
	}); err != nil {
		log.Printf("Error scheduling candle poll: %v", err)
	}

	if _, err := s.cron.Every(poller.AlertPollInterval).SingletonMode().Do(func() {
		s.alert.RunTick(ctx)
	}); err != nil {
		log.Printf("Error scheduling alert poll: %v", err)
	}

	if _, err := s.cron.Every(poller.TradePollInterval).SingletonMode().Do(func() {
		s.trade.RunTick(ctx)
	}); err != nil {
		log.Printf("Error scheduling trade poll: %v", err)
	}

	s.cron.StartAsync()
	log.Println("Poll scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Poll scheduler stopped")
}
