package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a single maintenance task on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	spec   string
	task   func(ctx context.Context) error
}

func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}
}

// SetTask sets the function to run on each tick.
func (s *Scheduler) SetTask(f func(ctx context.Context) error) {
	s.task = f
}

func (s *Scheduler) Start() error {
	if s.task == nil {
		log.Println("⚠️ Scheduler task not set, nothing will be scheduled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.task(s.ctx); err != nil {
			log.Printf("❌ Scheduled task failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - task runs on %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}
