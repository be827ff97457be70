// Package repository persists the risk_reports, profiles and notifications
// collections.
package repository

import (
	"context"
	"errors"

	"github.com/psicapp/riskwatch/internal/models"
)

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("not found")

// ReportFilter narrows a report listing
type ReportFilter struct {
	OnlyUnreviewed bool
}

// RiskReportRepo stores risk reports
type RiskReportRepo interface {
	// Insert assigns ID and Timestamp and stores the report.
	Insert(ctx context.Context, report *models.RiskReport) error
	Get(ctx context.Context, id string) (*models.RiskReport, error)
	// List returns reports by Timestamp descending.
	List(ctx context.Context, filter ReportFilter) ([]models.RiskReport, error)
	Update(ctx context.Context, id string, update *models.ReportUpdate) (*models.RiskReport, error)
}

// ProfileRepo stores user profiles
type ProfileRepo interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	// GetMany returns the profiles found for ids; missing ids are skipped.
	GetMany(ctx context.Context, ids []string) ([]models.Profile, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
}

// NotificationRepo stores in-app notifications
type NotificationRepo interface {
	// Insert assigns ID and CreatedAt when empty and stores the record.
	Insert(ctx context.Context, n *models.Notification) error
	// ListForUser returns notifications by CreatedAt descending.
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

// Repositories groups the collection repositories
type Repositories struct {
	Reports       RiskReportRepo
	Profiles      ProfileRepo
	Notifications NotificationRepo
}
