package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/detection"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportCreator is a mock implementation of the risk report store
type MockReportCreator struct {
	mock.Mock
}

func (m *MockReportCreator) Create(ctx context.Context, messageContent string, detectedKeywords []string) (*models.RiskReport, error) {
	args := m.Called(ctx, messageContent, detectedKeywords)
	report, _ := args.Get(0).(*models.RiskReport)
	return report, args.Error(1)
}

// MockCompleter is a mock implementation of the completion endpoint
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func newAssistant(reports ReportCreator, completer Completer, m *metrics.Metrics) *Assistant {
	return NewAssistant(detection.NewDetector(config.DefaultRiskKeywords), reports, completer, m, 9)
}

func TestAssistant_SafeMessage(t *testing.T) {
	reports := &MockReportCreator{}
	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("Hola, ¿cómo estás?", nil)
	m := metrics.NewUnregistered()

	session := NewSession("u1")
	reply, err := newAssistant(reports, completer, m).Reply(context.Background(), session, "Hoy fue un buen día")
	require.NoError(t, err)

	assert.Equal(t, "Hola, ¿cómo estás?", reply.Reply)
	assert.False(t, reply.RiskDetected)
	assert.Empty(t, reply.ReportID)
	reports.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	history := session.History()
	require.Len(t, history, 3)
	assert.Equal(t, roleSystem, history[0].Role)
	assert.Equal(t, models.ChatMessage{Role: roleUser, Content: "Hoy fue un buen día"}, history[1])
	assert.Equal(t, models.ChatMessage{Role: roleAssistant, Content: "Hola, ¿cómo estás?"}, history[2])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesScanned))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChatCompletions.WithLabelValues("success")))
}

func TestAssistant_RiskMessageCreatesReport(t *testing.T) {
	reports := &MockReportCreator{}
	reports.On("Create",
		mock.MatchedBy(func(ctx context.Context) bool {
			user, ok := auth.UserFromContext(ctx)
			return ok && user.ID == "u1"
		}),
		"A veces pienso que Mejor Morir",
		[]string{"mejor morir"},
	).Return(&models.RiskReport{ID: "r1"}, nil)

	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("Estoy aquí contigo.", nil)
	m := metrics.NewUnregistered()

	reply, err := newAssistant(reports, completer, m).Reply(context.Background(), NewSession("u1"), "A veces pienso que Mejor Morir")
	require.NoError(t, err)

	assert.True(t, reply.RiskDetected)
	assert.Equal(t, []string{"mejor morir"}, reply.DetectedKeywords)
	assert.Equal(t, "r1", reply.ReportID)
	assert.Equal(t, "Estoy aquí contigo.", reply.Reply)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.KeywordHits.WithLabelValues("mejor morir")))
	reports.AssertExpectations(t)
}

func TestAssistant_ReportFailureDoesNotBreakChat(t *testing.T) {
	reports := &MockReportCreator{}
	reports.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("store down"))
	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("Te escucho.", nil)

	reply, err := newAssistant(reports, completer, metrics.NewUnregistered()).Reply(context.Background(), NewSession("u1"), "quiero matarme")
	require.NoError(t, err)

	assert.True(t, reply.RiskDetected)
	assert.Empty(t, reply.ReportID)
	assert.Equal(t, "Te escucho.", reply.Reply)
}

func TestAssistant_CompletionFailureReturnsFallback(t *testing.T) {
	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))
	m := metrics.NewUnregistered()

	session := NewSession("u1")
	reply, err := newAssistant(&MockReportCreator{}, completer, m).Reply(context.Background(), session, "hola")
	require.NoError(t, err)

	assert.Equal(t, FallbackReply, reply.Reply)
	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, roleUser, history[1].Role)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChatCompletions.WithLabelValues("failure")))
}

func TestAssistant_EmptyCompletionRecorded(t *testing.T) {
	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("", nil)

	session := NewSession("u1")
	reply, err := newAssistant(&MockReportCreator{}, completer, metrics.NewUnregistered()).Reply(context.Background(), session, "hola")
	require.NoError(t, err)

	assert.Equal(t, EmptyReply, reply.Reply)
	assert.Equal(t, EmptyReply, session.History()[2].Content)
}

func TestAssistant_HistoryWindow(t *testing.T) {
	completer := &MockCompleter{}
	completer.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)
	assistant := NewAssistant(detection.NewDetector(config.DefaultRiskKeywords), &MockReportCreator{}, completer, metrics.NewUnregistered(), 3)

	session := NewSession("u1")
	for _, msg := range []string{"uno", "dos", "tres"} {
		_, err := assistant.Reply(context.Background(), session, msg)
		require.NoError(t, err)
	}

	last := completer.Calls[len(completer.Calls)-1].Arguments.Get(1).([]models.ChatMessage)
	require.Len(t, last, 4)
	assert.Equal(t, SystemPrompt, last[0].Content)
	// "uno"/"ok" fell out of the window.
	assert.Equal(t, "dos", last[1].Content)
	assert.Equal(t, "ok", last[2].Content)
	assert.Equal(t, "tres", last[3].Content)
}

func TestAssistant_EmptyMessage(t *testing.T) {
	completer := &MockCompleter{}
	_, err := newAssistant(&MockReportCreator{}, completer, metrics.NewUnregistered()).Reply(context.Background(), NewSession("u1"), "   ")

	assert.ErrorIs(t, err, ErrEmptyMessage)
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
