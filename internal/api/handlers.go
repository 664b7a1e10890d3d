// Package api exposes the HTTP read surface for activity timelines.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"example.com/activity/internal/domain"
)

const activityPathPrefix = "/api/activity/"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *log.Logger
}

// NewHandler builds a Handler. A nil logger falls back to a prefixed default.
func NewHandler(service *domain.Service, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(activityPathPrefix, h.getActivity)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// getActivity serves GET /api/activity/{entityType}/{entityId}.
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, activityPathPrefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "missing entity type or entity id")
		return
	}
	entityType, entityID := parts[0], parts[1]

	activity, err := h.service.GetActivity(r.Context(), entityID, entityType)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.Printf("get activity failed (entity_id=%s, entity_type=%s): %v", entityID, entityType, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(activity))
}

// ActivityItemView is one timeline entry in the response body.
type ActivityItemView struct {
	Type         string `json:"type"`
	ActivityTime int64  `json:"activity_time"`
}

// ActivityView is the response body for the activity read endpoint.
type ActivityView struct {
	EntityID   string             `json:"entity_id"`
	EntityType string             `json:"entity_type"`
	Activities []ActivityItemView `json:"activities"`
}

func toActivityView(activity domain.Activity) ActivityView {
	items := make([]ActivityItemView, 0, len(activity.Activities))
	for _, item := range activity.Activities {
		items = append(items, ActivityItemView{Type: item.Type, ActivityTime: item.ActivityTime})
	}
	return ActivityView{
		EntityID:   activity.EntityID,
		EntityType: activity.EntityType,
		Activities: items,
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
