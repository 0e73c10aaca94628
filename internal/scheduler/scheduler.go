package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/service/notify"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
	"github.com/mamadbah2/batchledger/internal/service/reporting"
)

const jobTimeout = 2 * time.Minute

// AlertSource computes critical-stock alerts.
type AlertSource interface {
	Alerts(ctx context.Context) ([]models.Alert, error)
}

// Auditor finds unfinished commits.
type Auditor interface {
	Audit(ctx context.Context) ([]reconcile.Finding, error)
}

// Reporter builds and archives the daily report.
type Reporter interface {
	DailyReport(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// Jobs groups the collaborators of the background jobs.
type Jobs struct {
	Alerts    AlertSource
	Auditor   Auditor
	Reporter  Reporter
	Notifier  notify.Notifier
	Publisher events.Publisher
}

// Scheduler runs the periodic ledger jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	cfg    config.SchedulerConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler creates a scheduler in the configured timezone.
func NewScheduler(cfg config.SchedulerConfig, jobs Jobs, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if jobs.Publisher == nil {
		jobs.Publisher = events.Nop{}
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		jobs:   jobs,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().In(loc) },
		logger: logger,
	}, nil
}

// Start registers the jobs and starts the cron loop. A job whose expression is empty is skipped.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	entries := []struct {
		name string
		expr string
		run  func()
	}{
		{"alerts", s.cfg.AlertsCron, s.checkAlerts},
		{"reconcile", s.cfg.ReconcileCron, s.auditCommits},
		{"daily_report", s.cfg.ReportCron, s.archiveDailyReport},
	}
	for _, e := range entries {
		if e.expr == "" {
			continue
		}
		if _, err := s.cron.AddFunc(e.expr, e.run); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", e.name, e.expr, err)
		}
		s.logger.Info("job scheduled", zap.String("job", e.name), zap.String("schedule", e.expr))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) checkAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	alerts, err := s.jobs.Alerts.Alerts(ctx)
	if err != nil {
		s.logger.Error("critical stock check failed", zap.Error(err))
		return
	}
	s.send(ctx, "alerts", notify.AlertMessage(alerts))
}

func (s *Scheduler) auditCommits() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	findings, err := s.jobs.Auditor.Audit(ctx)
	if err != nil {
		s.logger.Error("reconciliation audit failed", zap.Error(err))
		return
	}

	problems := make([]error, 0, len(findings))
	for _, finding := range findings {
		problems = append(problems, finding)
		events.PublishQuietly(s.jobs.Publisher, s.logger, events.Event{
			Type:    events.TypePartialCommit,
			Key:     finding.BatchID,
			At:      s.now().UTC(),
			Payload: finding,
		})
	}
	s.send(ctx, "reconcile", notify.PartialCommitMessage(problems))
}

func (s *Scheduler) archiveDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.jobs.Reporter.DailyReport(ctx, s.now())
	if err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
		return
	}
	s.send(ctx, "daily_report", reporting.Summary(report))
}

func (s *Scheduler) send(ctx context.Context, job, message string) {
	if message == "" || s.jobs.Notifier == nil {
		return
	}
	if err := s.jobs.Notifier.NotifyOperator(ctx, message); err != nil {
		s.logger.Error("failed to notify operator", zap.String("job", job), zap.Error(err))
		return
	}
	s.logger.Info("operator notified", zap.String("job", job))
}
