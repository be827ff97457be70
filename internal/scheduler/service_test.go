package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportLister is a mock implementation of the report service
type MockReportLister struct {
	mock.Mock
}

func (m *MockReportLister) List(ctx context.Context, onlyUnreviewed bool) (*models.ReportList, error) {
	args := m.Called(ctx, onlyUnreviewed)
	list, _ := args.Get(0).(*models.ReportList)
	return list, args.Error(1)
}

// MockNotificationService is a mock implementation of the team channels
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendDigest(digest *models.Digest) error {
	args := m.Called(digest)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

var (
	fixedNow = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	system   = mock.MatchedBy(func(ctx context.Context) bool { return auth.IsSystem(ctx) })
)

func pending(id string, age time.Duration, keywords ...string) models.ReportWithProfile {
	return models.ReportWithProfile{RiskReport: models.RiskReport{
		ID:               id,
		UserID:           "u-" + id,
		DetectedKeywords: keywords,
		Timestamp:        fixedNow.Add(-age),
	}}
}

func newTestService(t *testing.T, reports ReportLister, notifier *MockNotificationService) *Service {
	t.Helper()
	cfg := &config.Config{DigestSchedule: "daily", TimeZone: "UTC", ReminderAfterHours: 24}
	s, err := NewService(cfg, reports, notifier)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNewService_InvalidTimeZone(t *testing.T) {
	_, err := NewService(&config.Config{TimeZone: "Mars/Olympus"}, &MockReportLister{}, &MockNotificationService{})
	assert.Error(t, err)
}

func TestDigestSpec(t *testing.T) {
	assert.Equal(t, "0 0 9 * * *", digestSpec("daily"))
	assert.Equal(t, "0 0 9 * * MON", digestSpec("weekly"))
}

func TestRunDigest(t *testing.T) {
	high := models.SeverityHigh
	newest := pending("r2", time.Hour, "mejor morir")
	newest.SeverityLevel = &high
	oldest := pending("r1", 30*time.Hour, "mejor morir", "quiero morir")

	reports := &MockReportLister{}
	reports.On("List", system, true).Return(&models.ReportList{Reports: []models.ReportWithProfile{newest, oldest}}, nil)

	notifier := &MockNotificationService{}
	notifier.On("SendDigest", mock.Anything).Return(nil)

	require.NoError(t, newTestService(t, reports, notifier).RunDigest(context.Background()))

	digest := notifier.Calls[0].Arguments.Get(0).(*models.Digest)
	assert.Equal(t, "daily", digest.Period)
	assert.Equal(t, 2, digest.TotalUnreviewed)
	assert.Equal(t, "r1", digest.Reports[0].ID)
	assert.Equal(t, map[string]int{"mejor morir": 2, "quiero morir": 1}, digest.Summary["keywords"])
	assert.Equal(t, map[string]int{"high": 1, "untagged": 1}, digest.Summary["severity"])
}

func TestRunDigest_NothingPending(t *testing.T) {
	reports := &MockReportLister{}
	reports.On("List", system, true).Return(&models.ReportList{}, nil)
	notifier := &MockNotificationService{}

	require.NoError(t, newTestService(t, reports, notifier).RunDigest(context.Background()))
	notifier.AssertNotCalled(t, "SendDigest", mock.Anything)
}

func TestRunDigest_ListFails(t *testing.T) {
	reports := &MockReportLister{}
	reports.On("List", system, true).Return(nil, errors.New("store down"))

	err := newTestService(t, reports, &MockNotificationService{}).RunDigest(context.Background())
	assert.ErrorContains(t, err, "store down")
}

func TestRunReminders_OnlyStaleReports(t *testing.T) {
	reports := &MockReportLister{}
	reports.On("List", system, true).Return(&models.ReportList{Reports: []models.ReportWithProfile{
		pending("fresh", 2*time.Hour, "mejor morir"),
		pending("stale", 48*time.Hour, "quiero morir"),
	}}, nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.Report != nil && a.Report.ID == "stale" && a.Type == "urgent"
	})).Return(nil).Once()

	require.NoError(t, newTestService(t, reports, notifier).RunReminders(context.Background()))
	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)
}

func TestRunReminders_JoinsFailures(t *testing.T) {
	reports := &MockReportLister{}
	reports.On("List", system, true).Return(&models.ReportList{Reports: []models.ReportWithProfile{
		pending("a", 30*time.Hour, "mejor morir"),
		pending("b", 40*time.Hour, "mejor morir"),
	}}, nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.Anything).Return(errors.New("webhook 500"))

	err := newTestService(t, reports, notifier).RunReminders(context.Background())
	assert.ErrorContains(t, err, "webhook 500")
	notifier.AssertNumberOfCalls(t, "SendAlert", 2)
}

func TestStartStop(t *testing.T) {
	s := newTestService(t, &MockReportLister{}, &MockNotificationService{})
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}
