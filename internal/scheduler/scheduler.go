package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/tyler-danielson/openframe-sub008/config"
	"github.com/tyler-danielson/openframe-sub008/internal/service"
)

// Scheduler runs the periodic sync of all calendars.
type Scheduler struct {
	cron        *cron.Cron
	cfg         *config.Config
	syncService *service.SyncService
}

func New(cfg *config.Config, syncSvc *service.SyncService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:        c,
		cfg:         cfg,
		syncService: syncSvc,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.SyncSchedule, func() {
		s.syncService.SyncAll(ctx)
	}); err != nil {
		return fmt.Errorf("add sync job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, schedule: %s)", s.cfg.Timezone, s.cfg.SyncSchedule)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}
