package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/notifications"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/sirupsen/logrus"
)

// In-app and push texts shown to administrators
const (
	NotificationTitle   = "Alerta: Posible riesgo de suicidio"
	NotificationMessage = "Se ha detectado un mensaje con posible riesgo de suicidio. Revisa los reportes de riesgo."
	PushTitle           = "URGENTE: Alerta de riesgo de suicidio"
	PushBody            = "Se ha detectado un mensaje con palabras clave relacionadas con suicidio. Revisa los reportes de riesgo inmediatamente."
	pushScreen          = "admin"
)

// AdminLister resolves the notification recipients
type AdminLister interface {
	ListAdmins(ctx context.Context) ([]models.Profile, error)
}

// Notifier fans a new risk report out to every administrator
type Notifier struct {
	admins        AdminLister
	notifications repository.NotificationRepo
	pusher        notifications.Pusher
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewNotifier creates a notifier
func NewNotifier(admins AdminLister, notificationRepo repository.NotificationRepo, pusher notifications.Pusher, m *metrics.Metrics) *Notifier {
	return &Notifier{
		admins:        admins,
		notifications: notificationRepo,
		pusher:        pusher,
		metrics:       m,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NotifyAdmins makes one independent attempt per administrator to record an
// in-app notification and send a push. Per-admin failures are logged and
// reported in the result; the call itself only fails when the admin list
// cannot be resolved.
func (n *Notifier) NotifyAdmins(ctx context.Context, report *models.RiskReport) (*models.FanoutResult, error) {
	admins, err := n.admins.ListAdmins(ctx)
	if err != nil {
		logrus.Errorf("Failed to resolve administrators for report %s: %v", report.ID, err)
		return nil, err
	}

	result := &models.FanoutResult{Outcomes: []models.AdminOutcome{}}
	if len(admins) == 0 {
		logrus.Warn("No administrators found to notify")
		return result, nil
	}

	outcomes := make([]models.AdminOutcome, len(admins))
	var wg sync.WaitGroup
	for i, admin := range admins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = n.notifyAdmin(ctx, admin, report)
		}()
	}
	wg.Wait()

	result.Outcomes = outcomes
	for _, outcome := range outcomes {
		if outcome.Success {
			result.Succeeded++
			n.metrics.AdminNotifications.WithLabelValues("success").Inc()
		} else {
			result.Failed++
			n.metrics.AdminNotifications.WithLabelValues("failure").Inc()
		}
	}

	logrus.Infof("Notified administrators about report %s: %d succeeded, %d failed",
		report.ID, result.Succeeded, result.Failed)
	return result, nil
}

func (n *Notifier) notifyAdmin(ctx context.Context, admin models.Profile, report *models.RiskReport) models.AdminOutcome {
	var errs []error

	record := &models.Notification{
		UserID:      admin.ID,
		Title:       NotificationTitle,
		Message:     NotificationMessage,
		RelatedID:   report.ID,
		RelatedType: models.RelatedTypeRiskReport,
		Read:        false,
		CreatedAt:   n.now(),
	}
	if err := n.notifications.Insert(ctx, record); err != nil {
		logrus.Errorf("Failed to create notification for admin %s: %v", admin.ID, err)
		errs = append(errs, fmt.Errorf("in-app notification: %w", err))
	}

	push := &models.PushMessage{
		Title: PushTitle,
		Body:  PushBody,
		Data:  map[string]string{"screen": pushScreen, "reportId": report.ID},
	}
	if err := n.pusher.Push(ctx, admin, push); err != nil {
		logrus.Errorf("Failed to push notification to admin %s: %v", admin.ID, err)
		errs = append(errs, fmt.Errorf("push: %w", err))
	}

	if len(errs) > 0 {
		return models.AdminOutcome{AdminID: admin.ID, Success: false, Error: errors.Join(errs...)}
	}
	return models.AdminOutcome{AdminID: admin.ID, Success: true}
}
