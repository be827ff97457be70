// Package api exposes the chat, screening and triage operations over HTTP.
// Callers are authenticated by the gateway in front of this service, which
// forwards the user id in the X-User-ID header.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/chat"
	"github.com/psicapp/riskwatch/internal/detection"
	"github.com/psicapp/riskwatch/internal/metrics"
	"github.com/psicapp/riskwatch/internal/models"
	"github.com/psicapp/riskwatch/internal/repository"
	"github.com/psicapp/riskwatch/internal/riskreport"
	"github.com/sirupsen/logrus"
)

// UserHeader carries the authenticated user id
const UserHeader = "X-User-ID"

// Deps are the services the HTTP layer dispatches to
type Deps struct {
	Detector  *detection.Detector
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Assistant *chat.Assistant
	Sessions  *chat.Sessions
	Reports   *riskreport.Service
	Triage    *riskreport.Triage
	Profiles  repository.ProfileRepo
}

// Server holds the HTTP handlers
type Server struct {
	Deps
	validate *validator.Validate
}

// NewServer creates the HTTP handlers
func NewServer(deps Deps) *Server {
	return &Server{Deps: deps, validate: validator.New()}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(identify)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.HandleFunc("/chat/messages", s.chatMessageHandler).Methods(http.MethodPost)
	router.HandleFunc("/chat/reset", s.chatResetHandler).Methods(http.MethodPost)
	router.HandleFunc("/risk/scan", s.scanHandler).Methods(http.MethodPost)
	router.HandleFunc("/profiles/me", s.profileHandler).Methods(http.MethodPut)

	admin := router.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/reports", s.listReportsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/reports/{id}", s.updateReportHandler).Methods(http.MethodPatch)
	admin.HandleFunc("/notifications", s.listNotificationsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/notifications/{id}/read", s.markNotificationReadHandler).Methods(http.MethodPost)

	return router
}

// identify puts the forwarded caller on the request context
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(UserHeader); id != "" {
			r = r.WithContext(auth.WithUser(r.Context(), &models.User{ID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, riskreport.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidSeverity),
		errors.Is(err, riskreport.ErrNoKeywords),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, errBadRequest),
		errors.As(err, &validationErrs):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logrus.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
