package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAdminLister is a mock implementation of the admin directory
type MockAdminLister struct {
	mock.Mock
}

func (m *MockAdminLister) ListAdmins(ctx context.Context) ([]models.Profile, error) {
	args := m.Called(ctx)
	admins, _ := args.Get(0).([]models.Profile)
	return admins, args.Error(1)
}

// MockNotificationRepo is a mock implementation of the notifications collection
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationRepo) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPusher is a mock implementation of the push channel
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, admin models.Profile, msg *models.PushMessage) error {
	args := m.Called(ctx, admin, msg)
	return args.Error(0)
}

func forAdmin(id string) interface{} {
	return mock.MatchedBy(func(n *models.Notification) bool { return n.UserID == id })
}

func TestNotifier_NoAdmins(t *testing.T) {
	admins := &MockAdminLister{}
	admins.On("ListAdmins", mock.Anything).Return([]models.Profile{}, nil)
	repo := &MockNotificationRepo{}
	pusher := &MockPusher{}

	notifier := NewNotifier(admins, repo, pusher, metrics.NewUnregistered())
	result, err := notifier.NotifyAdmins(context.Background(), &models.RiskReport{ID: "r1"})

	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, result.Succeeded)
	assert.Zero(t, result.Failed)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifier_AllAdminsNotified(t *testing.T) {
	admins := &MockAdminLister{}
	admins.On("ListAdmins", mock.Anything).Return([]models.Profile{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}, nil)

	repo := &MockNotificationRepo{}
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.RelatedID == "r1" && n.RelatedType == models.RelatedTypeRiskReport && !n.Read && n.Title == NotificationTitle
	})).Return(nil).Times(3)

	pusher := &MockPusher{}
	pusher.On("Push", mock.Anything, mock.Anything, mock.MatchedBy(func(msg *models.PushMessage) bool {
		return msg.Data["reportId"] == "r1" && msg.Data["screen"] == "admin"
	})).Return(nil).Times(3)

	m := metrics.NewUnregistered()
	notifier := NewNotifier(admins, repo, pusher, m)
	result, err := notifier.NotifyAdmins(context.Background(), &models.RiskReport{ID: "r1"})

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "a1", result.Outcomes[0].AdminID)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.AdminNotifications.WithLabelValues("success")))
	repo.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestNotifier_OneInsertFails(t *testing.T) {
	admins := &MockAdminLister{}
	admins.On("ListAdmins", mock.Anything).Return([]models.Profile{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}, nil)

	repo := &MockNotificationRepo{}
	repo.On("Insert", mock.Anything, forAdmin("a1")).Return(nil)
	repo.On("Insert", mock.Anything, forAdmin("a2")).Return(errors.New("insert failed"))
	repo.On("Insert", mock.Anything, forAdmin("a3")).Return(nil)

	pusher := &MockPusher{}
	pusher.On("Push", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	notifier := NewNotifier(admins, repo, pusher, metrics.NewUnregistered())
	result, err := notifier.NotifyAdmins(context.Background(), &models.RiskReport{ID: "r1"})

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	failed := result.Outcomes[1]
	assert.Equal(t, "a2", failed.AdminID)
	assert.False(t, failed.Success)
	assert.ErrorContains(t, failed.Error, "insert failed")

	// The push is still attempted for the admin whose insert failed.
	pusher.AssertNumberOfCalls(t, "Push", 3)
}

func TestNotifier_PushFailureMarksOutcome(t *testing.T) {
	admins := &MockAdminLister{}
	admins.On("ListAdmins", mock.Anything).Return([]models.Profile{{ID: "a1"}}, nil)

	repo := &MockNotificationRepo{}
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	pusher := &MockPusher{}
	pusher.On("Push", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("device not registered"))

	notifier := NewNotifier(admins, repo, pusher, metrics.NewUnregistered())
	result, err := notifier.NotifyAdmins(context.Background(), &models.RiskReport{ID: "r1"})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.ErrorContains(t, result.Outcomes[0].Error, "device not registered")
	repo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestNotifier_AdminLookupFails(t *testing.T) {
	admins := &MockAdminLister{}
	admins.On("ListAdmins", mock.Anything).Return(nil, errors.New("profiles unavailable"))

	notifier := NewNotifier(admins, &MockNotificationRepo{}, &MockPusher{}, metrics.NewUnregistered())
	_, err := notifier.NotifyAdmins(context.Background(), &models.RiskReport{ID: "r1"})

	assert.ErrorContains(t, err, "profiles unavailable")
}
