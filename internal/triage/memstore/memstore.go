// Package memstore provides an in-memory implementation of triage.Store.
// Suitable for dev/testing; proximity uses the same haversine distance the
// Postgres store computes in SQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

// Store holds incidents and alerts in memory.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*incident.Incident // incident ID -> incident
	byCode    map[string]string             // report code -> incident ID
	alerts    []*incident.Alert
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
		byCode:    make(map[string]string),
	}
}

// FindNearbyUnresolved returns unmerged incidents created at or after since
// and within radiusMeters of at, closest first, capped at limit.
func (s *Store) FindNearbyUnresolved(_ context.Context, at incident.Point, radiusMeters float64, since time.Time, limit int) ([]triage.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		c    triage.Candidate
		dist float64
	}
	var hits []scored
	for _, inc := range s.incidents {
		if inc.MergedInto != "" || inc.CreatedAt.Before(since) {
			continue
		}
		d := incident.DistanceMeters(at, inc.Location)
		if d > radiusMeters {
			continue
		}
		hits = append(hits, scored{
			c: triage.Candidate{
				ID:          inc.ID,
				ReportCode:  inc.ReportCode,
				Description: inc.Description,
				CreatedAt:   inc.CreatedAt,
			},
			dist: d,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]triage.Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out, nil
}

// IncrementDuplicateCount bumps the duplicate counter for one incident.
func (s *Store) IncrementDuplicateCount(_ context.Context, incidentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return nil
	}
	inc.DuplicateOfCount++
	return nil
}

// CreateIncident stores a copy of the incident.
func (s *Store) CreateIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inc
	s.incidents[inc.ID] = &cp
	s.byCode[inc.ReportCode] = inc.ID
	return nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// GetByReportCode retrieves an incident by its shareable code. Returns a copy.
func (s *Store) GetByReportCode(_ context.Context, code string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, false, nil
	}
	cp := *s.incidents[id]
	return &cp, true, nil
}

// ListRecent returns unmerged incidents created at or after since, newest
// first, capped at limit. A zero since means no window.
func (s *Store) ListRecent(_ context.Context, since time.Time, limit int) ([]*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*incident.Incident
	for _, inc := range s.incidents {
		if inc.MergedInto != "" {
			continue
		}
		if !since.IsZero() && inc.CreatedAt.Before(since) {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateIncident applies a partial update and returns the updated copy.
func (s *Store) UpdateIncident(_ context.Context, id string, upd triage.IncidentUpdate) (*incident.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}

	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.Priority != nil {
		inc.Priority = *upd.Priority
	}
	if upd.AdminNotes != nil {
		inc.AdminNotes = *upd.AdminNotes
	}
	inc.UpdatedAt = time.Now()

	cp := *inc
	return &cp, true, nil
}

// CreateAlert stores a copy of the alert.
func (s *Store) CreateAlert(_ context.Context, a *incident.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.alerts = append(s.alerts, &cp)
	return nil
}

// ListAlerts returns alerts newest first, optionally only active ones.
// Expiry is the caller's concern; activeOnly filters the flag alone.
func (s *Store) ListAlerts(_ context.Context, activeOnly bool) ([]*incident.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*incident.Alert
	for _, a := range s.alerts {
		if activeOnly && !a.Active {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
