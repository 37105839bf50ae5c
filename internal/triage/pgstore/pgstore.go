// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists incidents and alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store on the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const incidentColumns = `id, report_code, description, category, urgency_score, priority, status,
	lng, lat, attachments, admin_notes, summary, ai_model, ai_confidence,
	merged_into, duplicate_of_count, created_at, updated_at`

// FindNearbyUnresolved returns unmerged incidents created at or after since
// and within radiusMeters of at, closest first. Distance is a haversine
// computed in SQL over plain lat/lng columns; at the 200m dedup radius this
// is indistinguishable from a real geo index and needs no PostGIS.
func (s *Store) FindNearbyUnresolved(ctx context.Context, at incident.Point, radiusMeters float64, since time.Time, limit int) ([]triage.Candidate, error) {
	ctx, span := tracer.Start(ctx, "pgstore.FindNearbyUnresolved", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	const query = `SELECT id, report_code, description, created_at FROM (
		SELECT id, report_code, description, created_at,
			2 * 6371000 * asin(sqrt(
				pow(sin(radians(lat - $1) / 2), 2) +
				cos(radians($1)) * cos(radians(lat)) * pow(sin(radians(lng - $2) / 2), 2)
			)) AS distance_m
		FROM incidents
		WHERE merged_into IS NULL AND created_at >= $3
	) nearby
	WHERE distance_m <= $4
	ORDER BY distance_m
	LIMIT $5`

	rows, err := s.pool.Query(ctx, query, at.Lat(), at.Lng(), since, radiusMeters, limit)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query nearby: %w", err))
	}
	defer rows.Close()

	var out []triage.Candidate
	for rows.Next() {
		var c triage.Candidate
		if err := rows.Scan(&c.ID, &c.ReportCode, &c.Description, &c.CreatedAt); err != nil {
			return nil, spanErr(span, fmt.Errorf("scan candidate: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate candidates: %w", err))
	}
	return out, nil
}

// IncrementDuplicateCount bumps the duplicate counter in a single statement,
// so concurrent merges never lose an increment to a read-modify-write race.
func (s *Store) IncrementDuplicateCount(ctx context.Context, incidentID string) error {
	ctx, span := tracer.Start(ctx, "pgstore.IncrementDuplicateCount", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE incidents SET duplicate_of_count = duplicate_of_count + 1 WHERE id = $1`,
		incidentID,
	)
	if err != nil {
		return spanErr(span, fmt.Errorf("increment duplicate count: %w", err))
	}
	return nil
}

// CreateIncident inserts a new incident row.
func (s *Store) CreateIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := tracer.Start(ctx, "pgstore.CreateIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	attachments, err := json.Marshal(inc.Attachments)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal attachments: %w", err))
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO incidents (
			id, report_code, description, category, urgency_score, priority, status,
			lng, lat, attachments, admin_notes, summary, ai_model, ai_confidence,
			merged_into, duplicate_of_count, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		inc.ID, inc.ReportCode, inc.Description, inc.Category, inc.UrgencyScore,
		string(inc.Priority), string(inc.Status), inc.Location.Lng(), inc.Location.Lat(),
		attachments, inc.AdminNotes, inc.Summary, inc.AIModel, inc.AIConfidence,
		nullable(inc.MergedInto), inc.DuplicateOfCount, inc.CreatedAt,
	)
	if err != nil {
		return spanErr(span, fmt.Errorf("insert incident: %w", err))
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// GetByReportCode retrieves an incident by its shareable tracking code.
func (s *Store) GetByReportCode(ctx context.Context, code string) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByReportCode", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE report_code = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// ListRecent returns unmerged incidents created at or after since, newest
// first, capped at limit. A zero since means no window.
func (s *Store) ListRecent(ctx context.Context, since time.Time, limit int) ([]*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListRecent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents
		WHERE merged_into IS NULL AND ($1::timestamptz IS NULL OR created_at >= $1)
		ORDER BY created_at DESC
		LIMIT $2`

	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}

	rows, err := s.pool.Query(ctx, query, sinceArg, limit)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query recent: %w", err))
	}
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate incidents: %w", err))
	}
	return out, nil
}

// UpdateIncident applies a partial admin update and returns the updated row.
func (s *Store) UpdateIncident(ctx context.Context, id string, upd triage.IncidentUpdate) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE incidents SET
			status      = COALESCE($2, status),
			priority    = COALESCE($3, priority),
			admin_notes = COALESCE($4, admin_notes),
			updated_at  = now()
		WHERE id = $1
		RETURNING ` + incidentColumns

	var status, priority *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	if upd.Priority != nil {
		v := string(*upd.Priority)
		priority = &v
	}

	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id, status, priority, upd.AdminNotes))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if inc == nil {
		return nil, false, nil
	}
	return inc, true, nil
}

// CreateAlert inserts a broadcast notice.
func (s *Store) CreateAlert(ctx context.Context, a *incident.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.CreateAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	var expires *time.Time
	if !a.ExpiresAt.IsZero() {
		expires = &a.ExpiresAt
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, title, message, severity, active, expires_at, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.Title, a.Message, string(a.Severity), a.Active, expires, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return spanErr(span, fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally only active ones.
func (s *Store) ListAlerts(ctx context.Context, activeOnly bool) ([]*incident.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAlerts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, message, severity, active, expires_at, created_by, created_at
		 FROM alerts WHERE ($1 = FALSE OR active) ORDER BY created_at DESC`,
		activeOnly,
	)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	var out []*incident.Alert
	for rows.Next() {
		var (
			a        incident.Alert
			severity string
			expires  *time.Time
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &severity, &a.Active, &expires, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, spanErr(span, fmt.Errorf("scan alert: %w", err))
		}
		a.Severity = incident.AlertSeverity(severity)
		if expires != nil {
			a.ExpiresAt = *expires
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate alerts: %w", err))
	}
	return out, nil
}

// scanIncident scans one row into an Incident. Returns (nil, nil) when no
// row is found.
func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		inc             incident.Incident
		priority        string
		status          string
		lng, lat        float64
		attachmentsJSON []byte
		mergedInto      *string
		updatedAt       *time.Time
	)

	err := row.Scan(
		&inc.ID, &inc.ReportCode, &inc.Description, &inc.Category, &inc.UrgencyScore,
		&priority, &status, &lng, &lat, &attachmentsJSON, &inc.AdminNotes, &inc.Summary,
		&inc.AIModel, &inc.AIConfidence, &mergedInto, &inc.DuplicateOfCount,
		&inc.CreatedAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	inc.Priority = incident.Priority(priority)
	inc.Status = incident.Status(status)
	inc.Location = incident.NewPoint(lng, lat)
	if mergedInto != nil {
		inc.MergedInto = *mergedInto
	}
	if updatedAt != nil {
		inc.UpdatedAt = *updatedAt
	}
	if err := json.Unmarshal(attachmentsJSON, &inc.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return &inc, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
