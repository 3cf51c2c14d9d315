package schedule

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"repscore-engine/internal/config"
	"repscore-engine/internal/domain"
	"repscore-engine/internal/refresh"
)

// Starter is the one engine call the scheduler makes.
type Starter interface {
	Start(props []domain.Property, platforms []domain.Platform, trigger domain.Trigger) (domain.RunHandle, error)
}

// Scheduler fires one full refresh per day at the configured HH:MM.
type Scheduler struct {
	cron    *cron.Cron
	engine  Starter
	cfgVal  *atomic.Value // stores config.Config
	running bool
}

func New(engine Starter, cfgVal *atomic.Value) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		cfgVal: cfgVal,
	}
}

// Start registers the daily job and starts the cron loop. The cron
// spec is fixed at startup; changing schedule.daily_at needs a
// restart. Properties and platforms are re-read at fire time.
func (s *Scheduler) Start() error {
	cfg := s.cfgVal.Load().(config.Config)
	if !cfg.Schedule.Enabled {
		log.Printf("[schedule] daily refresh disabled")
		return nil
	}

	spec := parseDailyAt(cfg.Schedule.DailyAt)
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	log.Printf("[schedule] daily refresh at %s (cron: %s)", cfg.Schedule.DailyAt, spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.running {
		s.cron.Stop()
		s.running = false
		log.Printf("[schedule] stopped")
	}
}

func (s *Scheduler) fire() {
	cfg := s.cfgVal.Load().(config.Config)
	props := cfg.DomainProperties()
	platforms := cfg.EnabledPlatforms()

	handle, err := s.engine.Start(props, platforms, domain.TriggerSchedule)
	switch {
	case errors.Is(err, refresh.ErrRunActive):
		log.Printf("[schedule] skipped, a run is already active")
	case errors.Is(err, refresh.ErrNoProperties):
		log.Printf("[schedule] skipped, no properties configured")
	case err != nil:
		log.Printf("[schedule] start: %v", err)
	default:
		log.Printf("[schedule] started run %s (%d properties)", handle.RunID, len(props))
	}
}

// parseDailyAt converts "HH:MM" to a daily cron spec.
// Example: "02:00" -> "0 2 * * *".
func parseDailyAt(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	log.Printf("[schedule] bad daily_at %q, using 06:30", timeStr)
	return "30 6 * * *"
}
