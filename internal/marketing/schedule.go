package marketing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"shopflow/internal/domain"
)

// GetSchedule returns the stored processing schedule or the default
func (s *Service) GetSchedule(ctx context.Context) (domain.ProcessingSchedule, error) {
	raw, err := s.repos.Settings.Get(ctx, domain.SettingProcessingSchedule)
	if err != nil {
		return domain.ProcessingSchedule{}, err
	}
	if raw == "" {
		return domain.DefaultProcessingSchedule(), nil
	}
	sched := domain.DefaultProcessingSchedule()
	if err := json.Unmarshal([]byte(raw), &sched); err != nil {
		return domain.ProcessingSchedule{}, fmt.Errorf("failed to decode %s setting: %w", domain.SettingProcessingSchedule, err)
	}
	if sched.SequenceIDs == nil {
		sched.SequenceIDs = []string{}
	}
	return sched, nil
}

// ValidateSchedule checks the cron expression of a schedule
func ValidateSchedule(sched domain.ProcessingSchedule) error {
	if sched.Cron == "" {
		return domain.NewValidationError("cron", "is required")
	}
	if _, err := cron.ParseStandard(sched.Cron); err != nil {
		return domain.NewValidationError("cron", "invalid expression %q: %v", sched.Cron, err)
	}
	return nil
}

// SaveSchedule validates and stores the processing schedule, then notifies
// the scheduler.
func (s *Service) SaveSchedule(ctx context.Context, sched domain.ProcessingSchedule) (domain.ProcessingSchedule, error) {
	if err := ValidateSchedule(sched); err != nil {
		return sched, err
	}
	if sched.SequenceIDs == nil {
		sched.SequenceIDs = []string{}
	}
	raw, err := json.Marshal(sched)
	if err != nil {
		return sched, fmt.Errorf("failed to encode schedule: %w", err)
	}
	if err := s.repos.Settings.Set(ctx, domain.SettingProcessingSchedule, string(raw)); err != nil {
		return sched, err
	}
	log.WithFields(log.Fields{"enabled": sched.Enabled, "cron": sched.Cron}).Info("Processing schedule saved")
	if s.onSchedule != nil {
		s.onSchedule(sched)
	}
	return sched, nil
}

// Scheduler runs sequence processing on the stored cron schedule
type Scheduler struct {
	svc     *Service
	timeout time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	current domain.ProcessingSchedule
	running bool
}

// NewScheduler creates a scheduler and subscribes it to schedule changes
func NewScheduler(svc *Service) *Scheduler {
	sch := &Scheduler{
		svc:     svc,
		timeout: 5 * time.Minute,
		cron:    cron.New(),
	}
	svc.OnScheduleChange(sch.Apply)
	return sch
}

// Start loads the stored schedule and starts the cron runner
func (sch *Scheduler) Start(ctx context.Context) error {
	sched, err := sch.svc.GetSchedule(ctx)
	if err != nil {
		return err
	}
	sch.Apply(sched)

	sch.mu.Lock()
	defer sch.mu.Unlock()
	if !sch.running {
		sch.cron.Start()
		sch.running = true
	}
	return nil
}

// Reload re-reads the stored schedule
func (sch *Scheduler) Reload(ctx context.Context) error {
	sched, err := sch.svc.GetSchedule(ctx)
	if err != nil {
		return err
	}
	sch.Apply(sched)
	return nil
}

// Apply replaces the scheduled job. A disabled or invalid schedule removes it.
func (sch *Scheduler) Apply(sched domain.ProcessingSchedule) {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	if sch.entry != 0 {
		sch.cron.Remove(sch.entry)
		sch.entry = 0
	}
	sch.current = sched
	if !sched.Enabled {
		log.Info("Email sequence processing schedule disabled")
		return
	}

	ids := append([]string(nil), sched.SequenceIDs...)
	entry, err := sch.cron.AddFunc(sched.Cron, func() { sch.run(ids) })
	if err != nil {
		log.WithError(err).WithField("cron", sched.Cron).Error("Failed to schedule email sequence processing")
		return
	}
	sch.entry = entry
	log.WithFields(log.Fields{"cron": sched.Cron, "sequences": len(ids)}).Info("Email sequence processing scheduled")
}

func (sch *Scheduler) run(sequenceIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), sch.timeout)
	defer cancel()
	if _, err := sch.svc.ProcessDue(ctx, sequenceIDs); err != nil {
		log.WithError(err).Error("Scheduled email sequence processing failed")
	}
}

// Current returns the schedule in effect
func (sch *Scheduler) Current() domain.ProcessingSchedule {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.current
}

// Scheduled reports whether a processing job is registered
func (sch *Scheduler) Scheduled() bool {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.entry != 0
}

// Stop halts the cron runner and waits for a running job to finish
func (sch *Scheduler) Stop() {
	sch.mu.Lock()
	if !sch.running {
		sch.mu.Unlock()
		return
	}
	sch.running = false
	sch.mu.Unlock()
	<-sch.cron.Stop().Done()
}
