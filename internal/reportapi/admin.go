package reportapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/linnemanlabs/beacon/internal/authmw"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
		return
	}

	// bcrypt comparison runs either way so a bad email costs the same as a
	// bad password.
	hash := a.auth.PasswordHash
	if req.Email != a.auth.Email {
		hash = "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinval"
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil || req.Email != a.auth.Email {
		a.logger.Warn(r.Context(), "admin login rejected", "email", req.Email)
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, err := authmw.Issue(a.auth.JWTSecret, req.Email, a.auth.TokenTTL)
	if err != nil {
		a.logger.Error(r.Context(), err, "token issue failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.respond(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(a.auth.TokenTTL.Seconds()),
	})
}

func (a *API) handleAdminList(w http.ResponseWriter, r *http.Request) {
	incidents, err := a.svc.AdminList(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "admin list failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if incidents == nil {
		incidents = []*incident.Incident{}
	}
	a.respond(w, http.StatusOK, map[string]any{"incidents": incidents})
}

type adminPatchRequest struct {
	Status     *incident.Status   `json:"status,omitempty"`
	Priority   *incident.Priority `json:"priority,omitempty"`
	AdminNotes *string            `json:"adminNotes,omitempty"`
}

func (a *API) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adminPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
		return
	}
	if req.Status == nil && req.Priority == nil && req.AdminNotes == nil {
		http.Error(w, `{"error":"nothing to update"}`, http.StatusBadRequest)
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
		return
	}
	if req.Priority != nil {
		switch *req.Priority {
		case incident.PriorityLow, incident.PriorityMedium, incident.PriorityHigh:
		default:
			http.Error(w, `{"error":"unknown priority"}`, http.StatusBadRequest)
			return
		}
	}

	inc, ok, err := a.svc.AdminUpdate(r.Context(), id, triage.IncidentUpdate{
		Status:     req.Status,
		Priority:   req.Priority,
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "admin update failed", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	a.respond(w, http.StatusOK, inc)
}

type publishAlertRequest struct {
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Severity  incident.AlertSeverity `json:"severity"`
	ExpiresIn string                 `json:"expiresIn,omitempty"` // Go duration, e.g. "4h"
}

func (a *API) handlePublishAlert(w http.ResponseWriter, r *http.Request) {
	var req publishAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Message == "" {
		http.Error(w, `{"error":"title and message are required"}`, http.StatusBadRequest)
		return
	}
	if req.Severity == "" {
		req.Severity = incident.AlertInfo
	}
	if !req.Severity.Valid() {
		http.Error(w, `{"error":"unknown severity"}`, http.StatusBadRequest)
		return
	}

	al := &incident.Alert{
		Title:     req.Title,
		Message:   req.Message,
		Severity:  req.Severity,
		CreatedBy: authmw.Subject(r.Context()),
	}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			http.Error(w, `{"error":"invalid expiresIn"}`, http.StatusBadRequest)
			return
		}
		al.ExpiresAt = time.Now().Add(d)
	}

	if err := a.svc.PublishAlert(r.Context(), al); err != nil {
		a.logger.Error(r.Context(), err, "alert publish failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.respond(w, http.StatusCreated, al)
}

func (a *API) handleAdminAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.svc.AllAlerts(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "admin alerts failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*incident.Alert{}
	}
	a.respond(w, http.StatusOK, map[string]any{"alerts": alerts})
}
