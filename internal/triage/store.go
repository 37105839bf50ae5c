package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/beacon/internal/incident"
)

// CandidateStore is the narrow store surface the pipeline itself touches: a
// read of nearby unresolved incidents and a single-statement counter bump.
// FindNearbyUnresolved must exclude incidents already merged into another.
type CandidateStore interface {
	FindNearbyUnresolved(ctx context.Context, at incident.Point, radiusMeters float64, since time.Time, limit int) ([]Candidate, error)
	IncrementDuplicateCount(ctx context.Context, incidentID string) error
}

// IncidentUpdate is a partial admin update; nil fields are left unchanged.
type IncidentUpdate struct {
	Status     *incident.Status
	Priority   *incident.Priority
	AdminNotes *string
}

// Store is the full persistence surface for the service layer.
type Store interface {
	CandidateStore

	CreateIncident(ctx context.Context, inc *incident.Incident) error
	GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error)
	GetByReportCode(ctx context.Context, code string) (*incident.Incident, bool, error)

	// ListRecent returns unmerged incidents created at or after since,
	// newest first, capped at limit.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]*incident.Incident, error)

	UpdateIncident(ctx context.Context, id string, upd IncidentUpdate) (*incident.Incident, bool, error)

	CreateAlert(ctx context.Context, a *incident.Alert) error
	ListAlerts(ctx context.Context, activeOnly bool) ([]*incident.Alert, error)
}
