package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Severity is the administrator-assigned severity of a risk report
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrInvalidSeverity is returned for severity values outside low/medium/high
var ErrInvalidSeverity = errors.New("severity must be one of low, medium, high")

// Valid reports whether s is one of the known severity levels
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Role is the role stored on a user profile
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RelatedTypeRiskReport tags notifications that point at a risk report
const RelatedTypeRiskReport = "risk_report"

// RiskReport is a persisted record of a message flagged by keyword detection
type RiskReport struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	MessageContent   string    `json:"message_content"`
	DetectedKeywords []string  `json:"detected_keywords"`
	Timestamp        time.Time `json:"timestamp"`
	Reviewed         bool      `json:"reviewed"`
	SeverityLevel    *Severity `json:"severity_level"`
	Notes            *string   `json:"notes"`
}

// ReportUpdate is a partial update applied by an administrator.
// Nil pointers leave the stored value unchanged.
type ReportUpdate struct {
	Reviewed      bool      `json:"reviewed"`
	Notes         *string   `json:"notes,omitempty" validate:"omitempty,max=4000"`
	SeverityLevel *Severity `json:"severity_level,omitempty" validate:"omitempty,oneof=low medium high"`
}

var validate = validator.New()

// Validate checks the update fields
func (u *ReportUpdate) Validate() error {
	if u.SeverityLevel != nil && !u.SeverityLevel.Valid() {
		return ErrInvalidSeverity
	}
	return validate.Struct(u)
}

// Apply copies the supplied fields onto r
func (u *ReportUpdate) Apply(r *RiskReport) {
	r.Reviewed = u.Reviewed
	if u.Notes != nil {
		notes := *u.Notes
		r.Notes = &notes
	}
	if u.SeverityLevel != nil {
		level := *u.SeverityLevel
		r.SeverityLevel = &level
	}
}

// Profile is a user profile row
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
	PushToken string `json:"push_token,omitempty"`
	Role      Role   `json:"role"`
}

// IsAdmin reports whether the profile holds the administrator role
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// SubmitterProfile is the display subset joined onto listed reports
type SubmitterProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ReportWithProfile is a report enriched with its submitter's profile
type ReportWithProfile struct {
	RiskReport
	Profile *SubmitterProfile `json:"profile"`
}

// ReportList is the result of listing reports. Degraded is set when the
// profile lookup failed and every Profile is nil.
type ReportList struct {
	Reports  []ReportWithProfile `json:"reports"`
	Degraded bool                `json:"profiles_degraded"`
}

// Notification is an in-app notification addressed to one user
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	RelatedID   string    `json:"related_id"`
	RelatedType string    `json:"related_type"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the authenticated caller
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AdminOutcome is the result of notifying one administrator
type AdminOutcome struct {
	AdminID string `json:"admin_id"`
	Success bool   `json:"success"`
	Error   error  `json:"-"`
}

// FanoutResult aggregates the per-administrator outcomes of one fan-out
type FanoutResult struct {
	Outcomes  []AdminOutcome `json:"outcomes"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// PushMessage is a push notification with a deep-link payload
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Digest is a periodic summary of unreviewed risk reports
type Digest struct {
	GeneratedAt     time.Time              `json:"generated_at"`
	Period          string                 `json:"period"` // "daily" or "weekly"
	TotalUnreviewed int                    `json:"total_unreviewed"`
	Reports         []ReportWithProfile    `json:"reports"`
	Summary         map[string]interface{} `json:"summary"`
}

// Alert represents an urgent notification
type Alert struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // "critical", "urgent", "info"
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Report    *RiskReport `json:"report,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatMessage is one turn of an assistant conversation
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Detection is the result of scanning a message for risk indicators
type Detection struct {
	IsAtRisk         bool     `json:"is_at_risk"`
	DetectedKeywords []string `json:"detected_keywords"`
}

// ChatReply is returned to the chat client for each user message
type ChatReply struct {
	Reply            string   `json:"reply"`
	RiskDetected     bool     `json:"risk_detected"`
	DetectedKeywords []string `json:"detected_keywords,omitempty"`
	ReportID         string   `json:"report_id,omitempty"`
}
