package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/detection"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// FallbackReply is returned when the completion call fails
	FallbackReply = "Lo siento, ha ocurrido un error al procesar tu mensaje. Por favor, intenta de nuevo más tarde."
	// EmptyReply is recorded when the model answers with no content
	EmptyReply = "No response received"
)

// ErrEmptyMessage is returned for blank user messages
var ErrEmptyMessage = errors.New("message is empty")

// ReportCreator persists a risk report for the user in ctx
type ReportCreator interface {
	Create(ctx context.Context, messageContent string, detectedKeywords []string) (*models.RiskReport, error)
}

// Assistant answers user messages and screens each one for risk indicators
type Assistant struct {
	detector     *detection.Detector
	reports      ReportCreator
	completer    Completer
	metrics      *metrics.Metrics
	historyLimit int
}

// NewAssistant creates a chat assistant. historyLimit is the number of
// recent turns sent along with the system prompt.
func NewAssistant(detector *detection.Detector, reports ReportCreator, completer Completer, m *metrics.Metrics, historyLimit int) *Assistant {
	return &Assistant{
		detector:     detector,
		reports:      reports,
		completer:    completer,
		metrics:      m,
		historyLimit: historyLimit,
	}
}

// Reply records the user's message in the session, raises a risk report
// when it matches, and returns the assistant's answer. A failed completion
// yields FallbackReply and leaves no assistant turn in the history.
func (a *Assistant) Reply(ctx context.Context, session *Session, message string) (*models.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	result := a.detector.Detect(message)
	a.metrics.ObserveDetection(result.DetectedKeywords)

	reply := &models.ChatReply{
		RiskDetected:     result.IsAtRisk,
		DetectedKeywords: result.DetectedKeywords,
	}

	if result.IsAtRisk {
		userCtx := auth.WithUser(ctx, &models.User{ID: session.UserID})
		report, err := a.reports.Create(userCtx, message, result.DetectedKeywords)
		if err != nil {
			logrus.Errorf("Failed to create risk report for session %s: %v", session.ID, err)
		} else {
			reply.ReportID = report.ID
		}
	}

	session.append(roleUser, message)

	content, err := a.completer.Complete(ctx, session.window(a.historyLimit))
	if err != nil {
		a.metrics.ChatCompletions.WithLabelValues("failure").Inc()
		logrus.Errorf("Chat completion failed for session %s: %v", session.ID, err)
		reply.Reply = FallbackReply
		return reply, nil
	}
	a.metrics.ChatCompletions.WithLabelValues("success").Inc()

	if content == "" {
		content = EmptyReply
	}
	session.append(roleAssistant, content)
	reply.Reply = content

	return reply, nil
}
