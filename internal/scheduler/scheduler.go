package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

// Reporter renders the daily activation summary.
type Reporter interface {
	DailySummary(ctx context.Context, day time.Time) (string, error)
}

// Notifier delivers a message to an operator chat.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Reloader refreshes a data source in place.
type Reloader interface {
	Reload() error
}

// Jobs describes what the scheduler should run. Empty schedules disable a job.
type Jobs struct {
	ReportSchedule string
	AdminChatID    int64
	Reporter       Reporter
	Notifier       Notifier

	AllowListSchedule string
	AllowList         Reloader
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler creates a scheduler evaluating cron expressions in location.
func NewScheduler(jobs Jobs, location *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(location)),
		jobs:   jobs,
		now:    time.Now,
		logger: logger,
	}
}

// Start registers the configured jobs and starts the cron loop. It reports how many jobs
// were registered.
func (s *Scheduler) Start() (int, error) {
	registered := 0

	if s.jobs.ReportSchedule != "" && s.jobs.AdminChatID != 0 && s.jobs.Reporter != nil && s.jobs.Notifier != nil {
		if _, err := s.cron.AddFunc(s.jobs.ReportSchedule, s.sendDailyReport); err != nil {
			return 0, fmt.Errorf("schedule daily report %q: %w", s.jobs.ReportSchedule, err)
		}
		registered++
	}

	if s.jobs.AllowListSchedule != "" && s.jobs.AllowList != nil {
		if _, err := s.cron.AddFunc(s.jobs.AllowListSchedule, s.reloadAllowList); err != nil {
			return 0, fmt.Errorf("schedule allow-list reload %q: %w", s.jobs.AllowListSchedule, err)
		}
		registered++
	}

	s.logger.Info("starting scheduler", zap.Int("jobs", registered))
	s.cron.Start()
	return registered, nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	s.logger.Info("generating daily report")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := s.jobs.Reporter.DailySummary(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to generate daily report", zap.Error(err))
		return
	}

	req := models.OutboundMessageRequest{
		ChatID:  s.jobs.AdminChatID,
		Message: report,
	}

	if err := s.jobs.Notifier.SendOutbound(ctx, req); err != nil {
		s.logger.Error("failed to send daily report", zap.Error(err))
	} else {
		s.logger.Info("daily report sent successfully")
	}
}

func (s *Scheduler) reloadAllowList() {
	if err := s.jobs.AllowList.Reload(); err != nil {
		s.logger.Warn("scheduled allow-list reload failed", zap.Error(err))
	}
}
