package riskreport

import (
	"context"
	"fmt"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
)

// Triage is the administrator-facing surface over the report service
type Triage struct {
	service       *Service
	profiles      repository.ProfileRepo
	notifications repository.NotificationRepo
	resolver      auth.Resolver
}

// NewTriage creates the triage API
func NewTriage(service *Service, profiles repository.ProfileRepo, notificationRepo repository.NotificationRepo, resolver auth.Resolver) *Triage {
	return &Triage{
		service:       service,
		profiles:      profiles,
		notifications: notificationRepo,
		resolver:      resolver,
	}
}

// verifiedAdminKey marks a context whose caller Triage has already checked
type verifiedAdminKey struct{}

// asAdmin checks the caller once and marks ctx so the service does not
// repeat the profile lookup
func (t *Triage) asAdmin(ctx context.Context) (context.Context, error) {
	if _, err := requireAdmin(ctx, t.resolver, t.profiles); err != nil {
		return nil, err
	}
	return context.WithValue(ctx, verifiedAdminKey{}, true), nil
}

// ListReports lists reports for an administrator
func (t *Triage) ListReports(ctx context.Context, onlyUnreviewed bool) (*models.ReportList, error) {
	ctx, err := t.asAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return t.service.List(ctx, onlyUnreviewed)
}

// MarkReviewed closes out a report without touching severity or notes
func (t *Triage) MarkReviewed(ctx context.Context, reportID string) (*models.RiskReport, error) {
	return t.UpdateReport(ctx, reportID, &models.ReportUpdate{Reviewed: true})
}

// SetSeverity tags a report and marks it reviewed
func (t *Triage) SetSeverity(ctx context.Context, reportID string, level models.Severity) (*models.RiskReport, error) {
	return t.UpdateReport(ctx, reportID, &models.ReportUpdate{Reviewed: true, SeverityLevel: &level})
}

// UpdateReport applies a partial update for an administrator
func (t *Triage) UpdateReport(ctx context.Context, reportID string, update *models.ReportUpdate) (*models.RiskReport, error) {
	ctx, err := t.asAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return t.service.Update(ctx, reportID, update)
}

// Notifications returns the calling administrator's inbox
func (t *Triage) Notifications(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	admin, err := requireAdmin(ctx, t.resolver, t.profiles)
	if err != nil {
		return nil, err
	}

	items, err := t.notifications.ListForUser(ctx, admin.ID, unreadOnly)
	if err != nil {
		return nil, &StoreError{Op: "list notifications", Err: err}
	}
	return items, nil
}

// MarkNotificationRead marks one of the caller's notifications as read
func (t *Triage) MarkNotificationRead(ctx context.Context, notificationID string) error {
	admin, err := requireAdmin(ctx, t.resolver, t.profiles)
	if err != nil {
		return err
	}

	items, err := t.notifications.ListForUser(ctx, admin.ID, false)
	if err != nil {
		return &StoreError{Op: "list notifications", Err: err}
	}
	for _, item := range items {
		if item.ID == notificationID {
			return storeErr("mark notification read", t.notifications.MarkRead(ctx, notificationID))
		}
	}
	return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
}
