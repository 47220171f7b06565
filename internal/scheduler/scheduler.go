package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"levelscout/internal/model"
)

// TriggerPublisher emits run triggers onto the bus.
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, trigger model.RunTrigger) error
}

// Scheduler publishes run triggers for the configured pairs on a cron
// schedule, so the service is self-driving when no upstream publisher exists.
type Scheduler struct {
	cron  *cron.Cron
	bus   TriggerPublisher
	pairs []model.RunTrigger
	ctx   context.Context
}

// NewScheduler creates a Scheduler for the given pair set.
func NewScheduler(ctx context.Context, bus TriggerPublisher, pairs []model.RunTrigger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		bus:   bus,
		pairs: pairs,
		ctx:   ctx,
	}
}

// Register adds the trigger task under the given cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.triggerAll); err != nil {
		return fmt.Errorf("register trigger task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// TriggerNow publishes triggers for all pairs immediately (manual trigger /
// RUN_ON_START).
func (s *Scheduler) TriggerNow() {
	s.triggerAll()
}

func (s *Scheduler) triggerAll() {
	for _, pair := range s.pairs {
		if err := s.bus.PublishTrigger(s.ctx, pair); err != nil {
			log.Printf("[ERROR] publish trigger %s %s: %v", pair.Market, pair.Granularity, err)
			continue
		}
		log.Printf("[INFO] trigger published: %s %s", pair.Market, pair.Granularity)
	}
}
