package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psicapp/riskwatch/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS risk_reports (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	message_content TEXT NOT NULL,
	detected_keywords TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	reviewed INTEGER NOT NULL DEFAULT 0,
	severity_level TEXT,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_risk_reports_timestamp ON risk_reports(timestamp);
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	push_token TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'user'
);
CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role);
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	related_id TEXT NOT NULL,
	related_type TEXT NOT NULL,
	read INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
`

// SQLiteStore implements all three repositories on one SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ RiskReportRepo   = (*SQLiteStore)(nil)
	_ ProfileRepo      = (*sqliteProfiles)(nil)
	_ NotificationRepo = (*sqliteNotifications)(nil)
)

// NewSQLiteStore opens (and creates if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under fan-out.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Repositories exposes the store as the three collection repositories
func (s *SQLiteStore) Repositories() *Repositories {
	return &Repositories{
		Reports:       s,
		Profiles:      &sqliteProfiles{db: s.db},
		Notifications: &sqliteNotifications{db: s.db, now: s.now},
	}
}

// Insert stores a new report
func (s *SQLiteStore) Insert(ctx context.Context, report *models.RiskReport) error {
	keywords, err := json.Marshal(report.DetectedKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	report.ID = uuid.NewString()
	report.Timestamp = s.now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_reports (id, user_id, message_content, detected_keywords, timestamp, reviewed, severity_level, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.UserID,
		report.MessageContent,
		string(keywords),
		report.Timestamp.UnixNano(),
		report.Reviewed,
		nullSeverity(report.SeverityLevel),
		nullString(report.Notes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert risk report: %w", err)
	}
	return nil
}

// Get returns one report by id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.RiskReport, error) {
	return getReport(ctx, s.db, id)
}

// List returns reports newest first
func (s *SQLiteStore) List(ctx context.Context, filter ReportFilter) ([]models.RiskReport, error) {
	query := `SELECT id, user_id, message_content, detected_keywords, timestamp, reviewed, severity_level, notes FROM risk_reports`
	if filter.OnlyUnreviewed {
		query += ` WHERE reviewed = 0`
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk reports: %w", err)
	}
	defer rows.Close()

	reports := []models.RiskReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read risk reports: %w", err)
	}
	return reports, nil
}

// Update applies a partial update inside a transaction
func (s *SQLiteStore) Update(ctx context.Context, id string, update *models.ReportUpdate) (*models.RiskReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	report, err := getReport(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	update.Apply(report)

	_, err = tx.ExecContext(ctx, `
		UPDATE risk_reports SET reviewed = ?, severity_level = ?, notes = ? WHERE id = ?
	`, report.Reviewed, nullSeverity(report.SeverityLevel), nullString(report.Notes), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update risk report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return report, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getReport(ctx context.Context, q queryer, id string) (*models.RiskReport, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, message_content, detected_keywords, timestamp, reviewed, severity_level, notes
		FROM risk_reports WHERE id = ?
	`, id)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("risk report %s: %w", id, ErrNotFound)
	}
	return report, err
}

func scanReport(row scanner) (*models.RiskReport, error) {
	var (
		report    models.RiskReport
		keywords  string
		timestamp int64
		severity  sql.NullString
		notes     sql.NullString
	)
	err := row.Scan(&report.ID, &report.UserID, &report.MessageContent, &keywords,
		&timestamp, &report.Reviewed, &severity, &notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan risk report: %w", err)
	}

	if err := json.Unmarshal([]byte(keywords), &report.DetectedKeywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords of %s: %w", report.ID, err)
	}
	report.Timestamp = time.Unix(0, timestamp).UTC()
	if severity.Valid {
		level := models.Severity(severity.String)
		report.SeverityLevel = &level
	}
	if notes.Valid {
		n := notes.String
		report.Notes = &n
	}
	return &report, nil
}

type sqliteProfiles struct {
	db *sql.DB
}

func (p *sqliteProfiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, avatar_url, email, push_token, role FROM profiles WHERE id = ?
	`, id)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return profile, err
}

func (p *sqliteProfiles) GetMany(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return p.query(ctx, `
		SELECT id, username, full_name, avatar_url, email, push_token, role
		FROM profiles WHERE id IN (`+placeholders+`)
	`, args...)
}

func (p *sqliteProfiles) ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	return p.query(ctx, `
		SELECT id, username, full_name, avatar_url, email, push_token, role
		FROM profiles WHERE role = ? ORDER BY id
	`, string(role))
}

func (p *sqliteProfiles) Upsert(ctx context.Context, profile *models.Profile) error {
	role := profile.Role
	if role == "" {
		role = models.RoleUser
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, full_name, avatar_url, email, push_token, role)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			email = excluded.email,
			push_token = excluded.push_token,
			role = excluded.role
	`, profile.ID, profile.Username, profile.FullName, profile.AvatarURL, profile.Email, profile.PushToken, string(role))
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (p *sqliteProfiles) query(ctx context.Context, query string, args ...any) ([]models.Profile, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

func scanProfile(row scanner) (*models.Profile, error) {
	var profile models.Profile
	var role string
	if err := row.Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.AvatarURL,
		&profile.Email, &profile.PushToken, &role); err != nil {
		return nil, err
	}
	profile.Role = models.Role(role)
	return &profile, nil
}

type sqliteNotifications struct {
	db  *sql.DB
	now func() time.Time
}

func (n *sqliteNotifications) Insert(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = n.now()
	}

	_, err := n.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, related_id, related_type, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		notification.ID,
		notification.UserID,
		notification.Title,
		notification.Message,
		notification.RelatedID,
		notification.RelatedType,
		notification.Read,
		notification.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (n *sqliteNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, user_id, title, message, related_id, related_type, read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := n.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var item models.Notification
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Message,
			&item.RelatedID, &item.RelatedType, &item.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		item.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

func (n *sqliteNotifications) MarkRead(ctx context.Context, id string) error {
	result, err := n.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullSeverity(s *models.Severity) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}
