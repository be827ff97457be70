package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/chat"
	"github.com/psicapp/riskwatch/internal/config"
	"github.com/psicapp/riskwatch/internal/detection"
	"github.com/psicapp/riskwatch/internal/directory"
	"github.com/psicapp/riskwatch/internal/fanout"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/psicapp/riskwatch/internal/riskreport"
	"github.com/psicapp/riskwatch/internal/scheduler"
	"github.com/sirupsen/logrus"
)

// ConsolePusher prints push notifications instead of delivering them
type ConsolePusher struct{}

func (c *ConsolePusher) Push(ctx context.Context, admin models.Profile, msg *models.PushMessage) error {
	fmt.Printf("📱 PUSH to %s: %s - %s (report %s)\n", admin.Username, msg.Title, msg.Body, msg.Data["reportId"])
	return nil
}

// ConsoleNotificationService outputs digests to terminal and files
type ConsoleNotificationService struct{}

func (c *ConsoleNotificationService) SendDigest(digest *models.Digest) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("📊 RISK REPORTS DIGEST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("📅 Period: %s\n", digest.Period)
	fmt.Printf("🕒 Generated: %s\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("📈 Pending review: %d\n", digest.TotalUnreviewed)

	if keywords, ok := digest.Summary["keywords"].(map[string]int); ok {
		fmt.Println("\n🔑 Keywords:")
		for keyword, count := range keywords {
			fmt.Printf("   • %-30s %d\n", keyword+":", count)
		}
	}

	for i, report := range digest.Reports {
		fmt.Printf("\n   %d. %s\n", i+1, report.MessageContent)
		fmt.Printf("      🕒 %s | user %s\n", report.Timestamp.Format("2006-01-02 15:04"), report.UserID)
	}

	dir := "test_output"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return err
	}
	filename := filepath.Join(dir, fmt.Sprintf("risk_digest_%s.json", digest.GeneratedAt.Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save to file: %v\n", err)
	} else {
		fmt.Printf("\n💾 Digest saved to: %s\n", filename)
	}

	fmt.Println(strings.Repeat("=", 70))
	return nil
}

func (c *ConsoleNotificationService) SendAlert(alert *models.Alert) error {
	fmt.Printf("🚨 ALERT [%s]: %s\n", alert.Type, alert.Message)
	return nil
}

func main() {
	fmt.Println("🧪 riskwatch - Local Pipeline Test")
	fmt.Println("==================================")

	logrus.SetLevel(logrus.WarnLevel)
	ctx := context.Background()

	dbPath := filepath.Join("test_output", "pipeline.db")
	os.Remove(dbPath)
	store, err := repository.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite store: %v", err)
	}
	defer store.Close()
	repos := store.Repositories()

	for _, p := range []*models.Profile{
		{ID: "admin-1", Username: "ana@example.edu", FullName: "Ana (bienestar)", Role: models.RoleAdmin},
		{ID: "admin-2", Username: "pedro@example.edu", FullName: "Pedro (psicología)", Role: models.RoleAdmin},
		{ID: "student-1", Username: "luis@example.edu", FullName: "Luis", Role: models.RoleUser},
	} {
		if err := repos.Profiles.Upsert(ctx, p); err != nil {
			log.Fatalf("Failed to seed profile %s: %v", p.ID, err)
		}
	}
	fmt.Println("👥 Seeded 2 administrators and 1 student")

	cfg := &config.Config{DigestSchedule: "daily", TimeZone: "UTC", ReminderAfterHours: 0}
	m := metrics.NewUnregistered()
	resolver := auth.ContextResolver{}

	notifier := fanout.NewNotifier(directory.NewAdminDirectory(repos.Profiles), repos.Notifications, &ConsolePusher{}, m)
	reports := riskreport.NewService(repos.Reports, repos.Profiles, resolver, notifier, m)
	triage := riskreport.NewTriage(reports, repos.Profiles, repos.Notifications, resolver)
	assistant := chat.NewAssistant(detection.NewDetector(config.DefaultRiskKeywords), reports, chat.NewScriptedCompleter(), m, 9)

	session := chat.NewSession("student-1")
	fmt.Println("\n💬 Chat session")
	for _, message := range []string{
		"Hola, hoy tuve un día largo en la universidad",
		"A veces siento que no quiero vivir",
		"Gracias por escucharme",
	} {
		reply, err := assistant.Reply(ctx, session, message)
		if err != nil {
			log.Fatalf("Chat failed: %v", err)
		}
		fmt.Printf("   👤 %s\n   🤖 %s\n", message, reply.Reply)
		if reply.RiskDetected {
			fmt.Printf("   🚨 Risk detected (%s), report %s\n", strings.Join(reply.DetectedKeywords, ", "), reply.ReportID)
		}
	}

	admin := auth.WithUser(ctx, &models.User{ID: "admin-1"})
	list, err := triage.ListReports(admin, true)
	if err != nil {
		log.Fatalf("Failed to list reports: %v", err)
	}
	fmt.Printf("\n📋 Unreviewed reports: %d (degraded: %t)\n", len(list.Reports), list.Degraded)

	inbox, err := triage.Notifications(admin, true)
	if err != nil {
		log.Fatalf("Failed to list notifications: %v", err)
	}
	fmt.Printf("📥 Unread notifications for admin-1: %d\n", len(inbox))

	sched, err := scheduler.NewService(cfg, reports, &ConsoleNotificationService{})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.RunDigest(ctx); err != nil {
		log.Fatalf("Digest failed: %v", err)
	}
	if err := sched.RunReminders(ctx); err != nil {
		log.Fatalf("Reminders failed: %v", err)
	}

	for _, r := range list.Reports {
		if _, err := triage.SetSeverity(admin, r.ID, models.SeverityHigh); err != nil {
			log.Fatalf("Failed to triage report %s: %v", r.ID, err)
		}
	}
	list, err = triage.ListReports(admin, true)
	if err != nil {
		log.Fatalf("Failed to list reports: %v", err)
	}
	fmt.Printf("\n✅ Reports triaged, %d left unreviewed\n", len(list.Reports))
}
