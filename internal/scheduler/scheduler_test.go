package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
)

type fakeAlerts struct {
	alerts []models.Alert
	err    error
}

func (f fakeAlerts) Alerts(context.Context) ([]models.Alert, error) { return f.alerts, f.err }

type fakeAuditor []reconcile.Finding

func (f fakeAuditor) Audit(context.Context) ([]reconcile.Finding, error) { return f, nil }

type fakeReporter struct{ day time.Time }

func (f *fakeReporter) DailyReport(_ context.Context, day time.Time) (models.DailyReport, error) {
	f.day = day
	return models.DailyReport{Date: day, Batches: 2}, nil
}

type recordingNotifier struct{ messages []string }

func (r *recordingNotifier) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return nil
}

func (r *recordingNotifier) NotifyOperator(_ context.Context, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

type recordingPublisher struct{ events []events.Event }

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func schedulerCfg() config.SchedulerConfig {
	return config.SchedulerConfig{AlertsCron: "0 * * * *", ReconcileCron: "30 2 * * *", ReportCron: "0 20 * * *", Timezone: "UTC"}
}

func TestNewSchedulerRejectsUnknownTimezone(t *testing.T) {
	cfg := schedulerCfg()
	cfg.Timezone = "Mars/Olympus"
	_, err := NewScheduler(cfg, Jobs{}, nil)
	assert.Error(t, err)
}

func TestStartRejectsBadSpec(t *testing.T) {
	cfg := schedulerCfg()
	cfg.AlertsCron = "every hour"
	s, err := NewScheduler(cfg, Jobs{}, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())
}

func TestCheckAlertsNotifiesOnlyWhenCritical(t *testing.T) {
	notifier := &recordingNotifier{}
	s, err := NewScheduler(schedulerCfg(), Jobs{Alerts: fakeAlerts{}, Notifier: notifier}, nil)
	require.NoError(t, err)
	s.checkAlerts()
	assert.Empty(t, notifier.messages)

	s.jobs.Alerts = fakeAlerts{alerts: []models.Alert{{Ingredient: "Salt", RemainingKg: decimal.NewFromInt(1), LimitKg: decimal.NewFromInt(5)}}}
	s.checkAlerts()
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Salt")

	s.jobs.Alerts = fakeAlerts{err: errors.New("store down")}
	s.checkAlerts()
	assert.Len(t, notifier.messages, 1)
}

func TestAuditCommitsPublishesFindings(t *testing.T) {
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	findings := fakeAuditor{{BatchID: "URT-1", Problems: []string{"record still pending"}}}
	s, err := NewScheduler(schedulerCfg(), Jobs{Auditor: findings, Notifier: notifier, Publisher: publisher}, nil)
	require.NoError(t, err)

	s.auditCommits()
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypePartialCommit, publisher.events[0].Type)
	assert.Equal(t, "URT-1", publisher.events[0].Key)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "batch URT-1: record still pending")
}

func TestArchiveDailyReportUsesSchedulerClock(t *testing.T) {
	notifier := &recordingNotifier{}
	reporter := &fakeReporter{}
	s, err := NewScheduler(schedulerCfg(), Jobs{Reporter: reporter, Notifier: notifier}, nil)
	require.NoError(t, err)
	fixed := time.Date(2024, 7, 1, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.archiveDailyReport()
	assert.Equal(t, fixed, reporter.day)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "2 batches")
}
