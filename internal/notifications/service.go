package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service handles sending notifications via various channels
type Service struct {
	config  *config.Config
	client  *resty.Client
	mailer  mailSender
	metrics *metrics.Metrics
}

// Ensure Service implements both notification contracts
var (
	_ NotificationInterface = (*Service)(nil)
	_ Pusher                = (*Service)(nil)
)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExpoPushMessage is one message in an Expo push API request
type ExpoPushMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoPushResponse struct {
	Data []struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config, m *metrics.Metrics) *Service {
	s := &Service{
		config:  cfg,
		client:  resty.New().SetTimeout(30 * time.Second),
		metrics: m,
	}
	if cfg.SMTPEnabled() {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

// Push delivers msg to the admin's device (Expo push token) and inbox
// (e-mail). Channels the admin has no address for are skipped.
func (s *Service) Push(ctx context.Context, admin models.Profile, msg *models.PushMessage) error {
	var errs []error

	if admin.PushToken != "" {
		if err := s.sendExpoPush(ctx, admin.PushToken, msg); err != nil {
			s.metrics.PushFailures.WithLabelValues("expo").Inc()
			logrus.Errorf("Failed to send push notification to admin %s: %v", admin.ID, err)
			errs = append(errs, fmt.Errorf("expo: %w", err))
		}
	}

	if address := adminEmail(admin); address != "" && s.mailer != nil {
		if err := s.sendAdminEmail(address, msg); err != nil {
			s.metrics.PushFailures.WithLabelValues("email").Inc()
			logrus.Errorf("Failed to send alert email to admin %s: %v", admin.ID, err)
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if admin.PushToken == "" && (adminEmail(admin) == "" || s.mailer == nil) {
		logrus.Debugf("No push channel available for admin %s", admin.ID)
	}

	return errors.Join(errs...)
}

func adminEmail(admin models.Profile) string {
	if admin.Email != "" {
		return admin.Email
	}
	// Profiles created at sign-up use the e-mail address as username.
	if strings.Contains(admin.Username, "@") {
		return admin.Username
	}
	return ""
}

func (s *Service) sendExpoPush(ctx context.Context, token string, msg *models.PushMessage) error {
	payload := []ExpoPushMessage{{
		To:       token,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	}}

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(payload).
		SetResult(&expoPushResponse{})
	if s.config.ExpoAccessToken != "" {
		req.SetAuthToken(s.config.ExpoAccessToken)
	}

	resp, err := req.Post(s.config.ExpoPushURL)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("push service returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	result := resp.Result().(*expoPushResponse)
	if len(result.Errors) > 0 {
		return fmt.Errorf("push service error %s: %s", result.Errors[0].Code, result.Errors[0].Message)
	}
	for _, ticket := range result.Data {
		if ticket.Status == "error" {
			return fmt.Errorf("push ticket rejected: %s", ticket.Message)
		}
	}
	return nil
}

func (s *Service) sendAdminEmail(address string, msg *models.PushMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", address)
	m.SetHeader("Subject", msg.Title)

	body := msg.Body
	if reportID := msg.Data["reportId"]; reportID != "" {
		body += fmt.Sprintf("\n\nReporte: %s", reportID)
	}
	m.SetBody("text/plain", body)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendDigest sends a digest via configured notification channels
func (s *Service) SendDigest(digest *models.Digest) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(s.buildTeamsMessage(digest)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" && s.mailer != nil {
		if err := s.sendDigestEmail(digest); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SendAlert posts an urgent alert to the team channel
func (s *Service) SendAlert(alert *models.Alert) error {
	if s.config.TeamsWebhookURL == "" {
		logrus.Infof("Alert not sent, no team channel configured: %s - %s", alert.Type, alert.Title)
		return nil
	}

	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}
	if alert.Report != nil {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Risk report",
			Facts: []TeamsFact{
				{Name: "Report", Value: alert.Report.ID},
				{Name: "Created", Value: alert.Report.Timestamp.Format("2006-01-02 15:04 UTC")},
				{Name: "Keywords", Value: strings.Join(alert.Report.DetectedKeywords, ", ")},
			},
		})
	}

	if err := s.postToTeams(message); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(digest *models.Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Risk Reports Digest - %s", digest.Period),
		Text:    fmt.Sprintf("%d risk reports are waiting for review", digest.TotalUnreviewed),
	}

	facts := []TeamsFact{
		{Name: "Unreviewed", Value: fmt.Sprintf("%d", digest.TotalUnreviewed)},
		{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	if keywords, ok := digest.Summary["keywords"].(map[string]int); ok {
		for _, k := range sortedKeys(keywords) {
			facts = append(facts, TeamsFact{Name: k, Value: fmt.Sprintf("%d", keywords[k])})
		}
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(digest.Reports) > 0 {
		var lines []string
		limit := min(5, len(digest.Reports))
		for _, report := range digest.Reports[:limit] {
			lines = append(lines, fmt.Sprintf("**%s** - %s (%s)",
				submitterName(report), strings.Join(report.DetectedKeywords, ", "), report.Timestamp.Format("Jan 2 15:04")))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Oldest pending reports",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendDigestEmail(digest *models.Digest) error {
	subject := fmt.Sprintf("Risk Reports Digest - %s (%d pending)", digest.Period, digest.TotalUnreviewed)

	htmlBody, err := buildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", strings.Split(s.config.NotificationEmail, ",")...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buildEmailText(digest))
	m.AddAlternative("text/html", htmlBody)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const digestTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Risk Reports Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #d13438; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .report { border-left: 4px solid #d13438; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .report-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Risk Reports Digest</h1>
        <p>{{.Period}} digest generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Pending review:</strong> {{.TotalUnreviewed}}</p>
        {{if .Summary.keywords}}
            {{range $keyword, $count := .Summary.keywords}}
                <p><strong>{{$keyword}}:</strong> {{$count}}</p>
            {{end}}
        {{end}}
    </div>

    {{if .Reports}}
    <h2>Pending reports</h2>
    {{range $index, $report := .Reports}}
        {{if lt $index 10}}
        <div class="report">
            <div class="report-meta">
                {{submitter $report}} | {{$report.Timestamp.Format "Jan 2, 2006 15:04"}} | {{join $report.DetectedKeywords ", "}}
            </div>
            <p>{{$report.MessageContent | truncate 200}}</p>
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by riskwatch.</small></p>
</body>
</html>
`

func buildEmailHTML(digest *models.Digest) (string, error) {
	t, err := template.New("email").Funcs(template.FuncMap{
		"truncate":  truncate,
		"join":      strings.Join,
		"submitter": submitterName,
	}).Parse(digestTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, digest); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func buildEmailText(digest *models.Digest) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Risk Reports Digest - %s\n", digest.Period))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Pending review: %d\n", digest.TotalUnreviewed))

	if keywords, ok := digest.Summary["keywords"].(map[string]int); ok {
		for _, k := range sortedKeys(keywords) {
			text.WriteString(fmt.Sprintf("%s: %d\n", k, keywords[k]))
		}
	}

	if len(digest.Reports) > 0 {
		text.WriteString("\nPENDING REPORTS\n")
		text.WriteString("===============\n")

		limit := min(10, len(digest.Reports))
		for i, report := range digest.Reports[:limit] {
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, submitterName(report)))
			text.WriteString(fmt.Sprintf("   Date: %s | Keywords: %s\n",
				report.Timestamp.Format("Jan 2, 2006 15:04"), strings.Join(report.DetectedKeywords, ", ")))
			text.WriteString(fmt.Sprintf("   Message: %s\n", truncate(200, report.MessageContent)))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by riskwatch.\n")

	return text.String()
}

func truncate(length int, s string) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length]) + "..."
}

func submitterName(report models.ReportWithProfile) string {
	if report.Profile == nil {
		return report.UserID
	}
	if report.Profile.FullName != "" {
		return report.Profile.FullName
	}
	return report.Profile.Username
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
