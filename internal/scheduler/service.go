package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/notifications"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReportLister lists risk reports for the scheduled jobs
type ReportLister interface {
	List(ctx context.Context, onlyUnreviewed bool) (*models.ReportList, error)
}

// Service runs the periodic digest and reminder jobs
type Service struct {
	config   *config.Config
	reports  ReportLister
	notifier notifications.NotificationInterface
	cron     *cron.Cron
	now      func() time.Time
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, reports ReportLister, notifier notifications.NotificationInterface) (*Service, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	return &Service{
		config:   cfg,
		reports:  reports,
		notifier: notifier,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		now:      time.Now,
	}, nil
}

func digestSpec(period string) string {
	if period == "daily" {
		return "0 0 9 * * *"
	}
	// Weekly on Monday
	return "0 0 9 * * MON"
}

// Start registers the jobs and starts the cron loop
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(digestSpec(s.config.DigestSchedule), func() {
		logrus.Info("Starting scheduled risk report digest")
		if err := s.RunDigest(context.Background()); err != nil {
			logrus.Errorf("Scheduled digest failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc("0 0 */4 * * *", func() {
		logrus.Info("Starting stale report reminder check (4-hour frequency)")
		if err := s.RunReminders(context.Background()); err != nil {
			logrus.Errorf("Stale report reminder check failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s digest (plus reminders every 4 hours)", s.config.DigestSchedule)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

// RunDigest sends a digest of unreviewed reports, if there are any
func (s *Service) RunDigest(ctx context.Context) error {
	list, err := s.reports.List(auth.WithSystem(ctx), true)
	if err != nil {
		return fmt.Errorf("failed to list unreviewed reports: %w", err)
	}
	if len(list.Reports) == 0 {
		logrus.Info("No unreviewed risk reports, skipping digest")
		return nil
	}

	// Oldest first: those have waited longest.
	pending := make([]models.ReportWithProfile, len(list.Reports))
	for i, r := range list.Reports {
		pending[len(pending)-1-i] = r
	}

	digest := &models.Digest{
		GeneratedAt:     s.now().UTC(),
		Period:          s.config.DigestSchedule,
		TotalUnreviewed: len(pending),
		Reports:         pending,
		Summary:         summarize(pending),
	}
	if list.Degraded {
		digest.Summary["profiles_missing"] = true
	}

	if err := s.notifier.SendDigest(digest); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}

	logrus.Infof("Digest sent with %d unreviewed reports", digest.TotalUnreviewed)
	return nil
}

// RunReminders raises one alert per unreviewed report older than the
// configured threshold
func (s *Service) RunReminders(ctx context.Context) error {
	list, err := s.reports.List(auth.WithSystem(ctx), true)
	if err != nil {
		return fmt.Errorf("failed to list unreviewed reports: %w", err)
	}

	threshold := time.Duration(s.config.ReminderAfterHours) * time.Hour
	cutoff := s.now().Add(-threshold)

	var errs []error
	sent := 0
	for i := range list.Reports {
		report := list.Reports[i].RiskReport
		if !report.Timestamp.Before(cutoff) {
			continue
		}

		alert := &models.Alert{
			ID:    uuid.NewString(),
			Type:  "urgent",
			Title: "Risk report awaiting review",
			Message: fmt.Sprintf("Report %s has been unreviewed for %s (keywords: %v)",
				report.ID, s.now().Sub(report.Timestamp).Round(time.Hour), report.DetectedKeywords),
			Report:    &report,
			CreatedAt: s.now().UTC(),
		}
		if err := s.notifier.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to send reminder for report %s: %v", report.ID, err)
			errs = append(errs, err)
			continue
		}
		sent++
	}

	logrus.Infof("Stale report reminders sent: %d", sent)
	return errors.Join(errs...)
}

// summarize counts pending reports by keyword and by severity
func summarize(reports []models.ReportWithProfile) map[string]interface{} {
	keywords := make(map[string]int)
	severity := make(map[string]int)
	for _, r := range reports {
		for _, k := range r.DetectedKeywords {
			keywords[k]++
		}
		level := "untagged"
		if r.SeverityLevel != nil {
			level = string(*r.SeverityLevel)
		}
		severity[level]++
	}

	return map[string]interface{}{
		"keywords": keywords,
		"severity": severity,
	}
}
