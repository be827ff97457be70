package riskreport

import (
	"context"
	"errors"
	"fmt"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/sirupsen/logrus"
)

// AdminNotifier fans a freshly created report out to administrators
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, report *models.RiskReport) (*models.FanoutResult, error)
}

// Service owns the lifecycle of risk reports
type Service struct {
	reports  repository.RiskReportRepo
	profiles repository.ProfileRepo
	resolver auth.Resolver
	notifier AdminNotifier
	metrics  *metrics.Metrics
}

// NewService creates a new risk report service
func NewService(reports repository.RiskReportRepo, profiles repository.ProfileRepo, resolver auth.Resolver, notifier AdminNotifier, m *metrics.Metrics) *Service {
	return &Service{
		reports:  reports,
		profiles: profiles,
		resolver: resolver,
		notifier: notifier,
		metrics:  m,
	}
}

// Create persists a report for the current user and notifies the
// administrators. Notification failures never undo the report.
func (s *Service) Create(ctx context.Context, messageContent string, detectedKeywords []string) (*models.RiskReport, error) {
	if len(detectedKeywords) == 0 {
		return nil, ErrNoKeywords
	}

	user, err := s.resolver.CurrentUser(ctx)
	if err != nil {
		logrus.Errorf("Failed to resolve current user for risk report: %v", err)
		return nil, err
	}

	keywords := make([]string, len(detectedKeywords))
	copy(keywords, detectedKeywords)

	report := &models.RiskReport{
		UserID:           user.ID,
		MessageContent:   messageContent,
		DetectedKeywords: keywords,
		Reviewed:         false,
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		logrus.Errorf("Failed to create risk report: %v", err)
		return nil, &StoreError{Op: "create risk report", Err: err}
	}
	s.metrics.ReportsCreated.Inc()
	logrus.WithFields(logrus.Fields{
		"report_id": report.ID,
		"user_id":   report.UserID,
		"keywords":  report.DetectedKeywords,
	}).Warn("Risk report created")

	// The report is persisted; a caller going away must not stop the fan-out.
	if _, err := s.notifier.NotifyAdmins(context.WithoutCancel(ctx), report); err != nil {
		logrus.Errorf("Failed to notify administrators about report %s: %v", report.ID, err)
	}

	return report, nil
}

// List returns reports newest first, joined with the submitter profile.
// A failed profile lookup degrades the result instead of failing it.
func (s *Service) List(ctx context.Context, onlyUnreviewed bool) (*models.ReportList, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}

	reports, err := s.reports.List(ctx, repository.ReportFilter{OnlyUnreviewed: onlyUnreviewed})
	if err != nil {
		logrus.Errorf("Failed to list risk reports: %v", err)
		return nil, &StoreError{Op: "list risk reports", Err: err}
	}

	list := &models.ReportList{Reports: make([]models.ReportWithProfile, len(reports))}
	for i, report := range reports {
		list.Reports[i] = models.ReportWithProfile{RiskReport: report}
	}
	if len(reports) == 0 {
		return list, nil
	}

	seen := make(map[string]bool)
	var userIDs []string
	for _, report := range reports {
		if !seen[report.UserID] {
			seen[report.UserID] = true
			userIDs = append(userIDs, report.UserID)
		}
	}

	profiles, err := s.profiles.GetMany(ctx, userIDs)
	if err != nil {
		logrus.Warnf("Failed to load submitter profiles, returning reports without them: %v", err)
		list.Degraded = true
		return list, nil
	}

	byID := make(map[string]*models.SubmitterProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = &models.SubmitterProfile{
			ID:        p.ID,
			Username:  p.Username,
			FullName:  p.FullName,
			AvatarURL: p.AvatarURL,
		}
	}
	for i := range list.Reports {
		list.Reports[i].Profile = byID[list.Reports[i].UserID]
	}

	return list, nil
}

// Update applies an administrator's triage decision. Only the supplied
// fields change.
func (s *Service) Update(ctx context.Context, reportID string, update *models.ReportUpdate) (*models.RiskReport, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report update: %w", err)
	}

	report, err := s.reports.Update(ctx, reportID, update)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.Errorf("Failed to update risk report %s: %v", reportID, err)
		}
		return nil, storeErr("update risk report", err)
	}

	s.metrics.ReportUpdates.Inc()
	return report, nil
}

// authorize lets through administrators and the system principal
func (s *Service) authorize(ctx context.Context) error {
	if auth.IsSystem(ctx) {
		return nil
	}
	if verified, _ := ctx.Value(verifiedAdminKey{}).(bool); verified {
		return nil
	}
	_, err := requireAdmin(ctx, s.resolver, s.profiles)
	return err
}

func requireAdmin(ctx context.Context, resolver auth.Resolver, profiles repository.ProfileRepo) (*models.Profile, error) {
	user, err := resolver.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := profiles.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, &StoreError{Op: "resolve caller role", Err: err}
	}
	if !profile.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return profile, nil
}
