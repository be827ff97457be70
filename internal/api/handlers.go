package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
)

var errBadRequest = errors.New("bad request")

type messageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type updateReportRequest struct {
	Reviewed      *bool            `json:"reviewed" validate:"required"`
	Notes         *string          `json:"notes"`
	SeverityLevel *models.Severity `json:"severity_level"`
}

type profileRequest struct {
	Username  string `json:"username" validate:"required,max=100"`
	FullName  string `json:"full_name" validate:"max=200"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
	Email     string `json:"email" validate:"omitempty,email"`
	PushToken string `json:"push_token" validate:"max=300"`
}

type scanResponse struct {
	models.Detection
	ReportID string `json:"report_id,omitempty"`
}

// decode reads a JSON body into dst and validates it
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return s.validate.Struct(dst)
}

func (s *Server) chatMessageHandler(w http.ResponseWriter, r *http.Request) {
	user, err := auth.ContextResolver{}.CurrentUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req messageRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := s.Assistant.Reply(r.Context(), s.Sessions.Get(user.ID), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) chatResetHandler(w http.ResponseWriter, r *http.Request) {
	user, err := auth.ContextResolver{}.CurrentUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.Sessions.Reset(user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation reset"})
}

// scanHandler screens a message without involving the assistant
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result := s.Detector.Detect(req.Message)
	s.Metrics.ObserveDetection(result.DetectedKeywords)

	resp := scanResponse{Detection: result}
	if result.IsAtRisk {
		report, err := s.Reports.Create(r.Context(), req.Message, result.DetectedKeywords)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.ReportID = report.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := auth.ContextResolver{}.CurrentUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req profileRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role := models.RoleUser
	existing, err := s.Profiles.Get(r.Context(), user.ID)
	switch {
	case err == nil:
		role = existing.Role
	case !errors.Is(err, repository.ErrNotFound):
		writeError(w, r, err)
		return
	}

	profile := &models.Profile{
		ID:        user.ID,
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
		Email:     req.Email,
		PushToken: req.PushToken,
		Role:      role,
	}
	if err := s.Profiles.Upsert(r.Context(), profile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	onlyUnreviewed, err := boolQuery(r, "unreviewed")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.Triage.ListReports(r.Context(), onlyUnreviewed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) updateReportHandler(w http.ResponseWriter, r *http.Request) {
	var req updateReportRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	update := &models.ReportUpdate{
		Reviewed:      *req.Reviewed,
		Notes:         req.Notes,
		SeverityLevel: req.SeverityLevel,
	}
	report, err := s.Triage.UpdateReport(r.Context(), mux.Vars(r)["id"], update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	unreadOnly, err := boolQuery(r, "unread")
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := s.Triage.Notifications(r.Context(), unreadOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Triage.MarkNotificationRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func boolQuery(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, key)
	}
	return v, nil
}
