// Package reportapi exposes the HTTP surface: anonymous incident submission
// and tracking, the privacy-safe public feed, campus alert publication, the
// live event socket, and the authenticated admin console endpoints.
package reportapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/authmw"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

// ReportService defines the business operations the API needs.
type ReportService interface {
	Submit(ctx context.Context, in *triage.SubmitInput) (*triage.SubmitOutcome, error)
	Track(ctx context.Context, reportCode string) (*incident.Incident, bool, error)
	PublicFeed(ctx context.Context, window time.Duration) ([]*incident.Incident, error)
	AdminList(ctx context.Context) ([]*incident.Incident, error)
	AdminUpdate(ctx context.Context, id string, upd triage.IncidentUpdate) (*incident.Incident, bool, error)
	PublishAlert(ctx context.Context, a *incident.Alert) error
	ActiveAlerts(ctx context.Context) ([]*incident.Alert, error)
	AllAlerts(ctx context.Context) ([]*incident.Alert, error)
}

// AdminAuth holds the single operator credential and the signing secret for
// session tokens.
type AdminAuth struct {
	Email        string
	PasswordHash string // bcrypt
	JWTSecret    []byte
	TokenTTL     time.Duration
}

// Config bundles API construction options.
type Config struct {
	Auth AdminAuth

	// Events is the WebSocket subscriber endpoint, nil disables it.
	Events http.Handler

	// UploadDir receives attachment files; empty disables photo uploads.
	UploadDir string

	// SubmitPerMinute/SubmitBurst bound anonymous submissions per client IP.
	SubmitPerMinute int
	SubmitBurst     int
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     ReportService
	auth    AdminAuth
	events  http.Handler
	uploads string
	limiter *ipLimiter
}

// New creates a new API handler.
func New(logger log.Logger, svc ReportService, cfg Config) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("report service is required"))
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	return &API{
		logger:  logger,
		svc:     svc,
		auth:    cfg.Auth,
		events:  cfg.Events,
		uploads: cfg.UploadDir,
		limiter: newIPLimiter(cfg.SubmitPerMinute, cfg.SubmitBurst),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.With(a.limiter.middleware).Post("/incidents", a.handleSubmit)
		r.Get("/incidents/track/{reportCode}", a.handleTrack)
		r.Get("/incidents/public", a.handlePublicFeed)
		r.Get("/alerts", a.handleActiveAlerts)

		if a.events != nil {
			r.Get("/events", a.events.ServeHTTP)
		}

		r.Post("/admin/login", a.handleLogin)
		r.Route("/admin", func(r chi.Router) {
			r.Use(authmw.JWT(a.auth.JWTSecret))
			r.Get("/incidents", a.handleAdminList)
			r.Patch("/incidents/{id}", a.handleAdminUpdate)
			r.Get("/alerts", a.handleAdminAlerts)
			r.Post("/alerts", a.handlePublishAlert)
		})
	})
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
