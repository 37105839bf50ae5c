package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/incident"
)

// PublicFeedLimit caps the privacy-safe map feed.
const PublicFeedLimit = 500

// AdminListLimit caps the operator incident listing.
const AdminListLimit = 1000

// SubmitInput is a validated submission plus attachment metadata from the
// upload handler.
type SubmitInput struct {
	Description  string
	CategoryHint string
	Location     incident.Point

	Image     []byte
	ImageURL  string
	ImageMime string
	ImageName string
}

// SubmitOutcome is what the API layer renders back to the reporter.
type SubmitOutcome struct {
	Merged     bool
	ReportCode string
	Similarity float64

	// Incident is the newly persisted report, nil when merged.
	Incident *incident.Incident

	Trace []TraceEntry
}

// Service is the business boundary for incident submission and handling. It
// owns persistence and the "new incident" notification; the engine owns the
// pipeline and the "merged" notification.
type Service struct {
	store   Store
	engine  *Engine
	emitter Emitter
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewService creates a triage service. emitter and metrics may be nil.
func NewService(store Store, engine *Engine, emitter Emitter, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:   store,
		engine:  engine,
		emitter: emitter,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Submit runs the triage pipeline for one submission and persists the result.
// Merge outcomes return without creating anything; otherwise the new incident
// is stored and announced. The only error surface is persistence of the new
// incident itself.
func (s *Service) Submit(ctx context.Context, in *SubmitInput) (*SubmitOutcome, error) {
	res := s.engine.Run(ctx, &Submission{
		Description:  in.Description,
		CategoryHint: in.CategoryHint,
		Location:     in.Location,
		Image:        in.Image,
	})

	if res.Merged != nil {
		s.logger.Info(ctx, "submission merged into existing incident",
			"report_code", res.Merged.ReportCode,
			"similarity", res.Merged.Similarity,
		)
		s.count("merged")
		return &SubmitOutcome{
			Merged:     true,
			ReportCode: res.Merged.ReportCode,
			Similarity: res.Merged.Similarity,
			Trace:      res.Trace,
		}, nil
	}

	code, err := incident.NewReportCode()
	if err != nil {
		return nil, fmt.Errorf("generate report code: %w", err)
	}

	inc := &incident.Incident{
		ID:           ulid.Make().String(),
		ReportCode:   code,
		Description:  in.Description,
		Category:     res.Classification.Category,
		UrgencyScore: res.Classification.UrgencyScore,
		Priority:     incident.PriorityFromUrgency(res.Classification.UrgencyScore),
		Status:       incident.StatusReceived,
		Location:     in.Location,
		Summary:      res.Classification.Summary,
		AIModel:      res.Classification.Model,
		AIConfidence: res.Classification.Confidence,
		CreatedAt:    s.now(),
	}

	if in.ImageURL != "" {
		inc.Attachments = append(inc.Attachments, incident.Attachment{
			URL:          in.ImageURL,
			MimeType:     in.ImageMime,
			OriginalName: in.ImageName,
			Caption:      res.Vision.Caption,
			SafetyTags:   res.Vision.SafetyTags,
		})
	}

	if err := s.store.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	s.emit(Event{Name: EventIncidentNew, Data: map[string]any{
		"reportCode":   inc.ReportCode,
		"category":     inc.Category,
		"urgencyScore": inc.UrgencyScore,
		"location":     inc.Location,
		"createdAt":    inc.CreatedAt,
		"attachments":  attachmentSummaries(inc.Attachments),
	}})

	s.logger.Info(ctx, "incident created",
		"report_code", inc.ReportCode,
		"category", inc.Category,
		"urgency", inc.UrgencyScore,
		"model", inc.AIModel,
	)
	s.count("created")

	return &SubmitOutcome{ReportCode: code, Incident: inc, Trace: res.Trace}, nil
}

// Track returns the reporter-visible view of a report by its shareable code.
func (s *Service) Track(ctx context.Context, reportCode string) (*incident.Incident, bool, error) {
	return s.store.GetByReportCode(ctx, reportCode)
}

// PublicFeed returns recent unmerged incidents for the live map.
func (s *Service) PublicFeed(ctx context.Context, window time.Duration) ([]*incident.Incident, error) {
	return s.store.ListRecent(ctx, s.now().Add(-window), PublicFeedLimit)
}

// AdminList returns all unmerged incidents, newest first.
func (s *Service) AdminList(ctx context.Context) ([]*incident.Incident, error) {
	// Zero time: no window, the limit alone bounds the result.
	return s.store.ListRecent(ctx, time.Time{}, AdminListLimit)
}

// AdminUpdate applies a partial operator update to an incident.
func (s *Service) AdminUpdate(ctx context.Context, id string, upd IncidentUpdate) (*incident.Incident, bool, error) {
	return s.store.UpdateIncident(ctx, id, upd)
}

// PublishAlert persists an admin broadcast notice and announces it.
func (s *Service) PublishAlert(ctx context.Context, a *incident.Alert) error {
	a.ID = ulid.Make().String()
	a.Active = true
	a.CreatedAt = s.now()

	if err := s.store.CreateAlert(ctx, a); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	s.emit(Event{Name: EventAlertNew, Data: a})
	s.logger.Info(ctx, "alert published", "alert_id", a.ID, "severity", a.Severity)
	return nil
}

// ActiveAlerts returns notices that are live right now.
func (s *Service) ActiveAlerts(ctx context.Context) ([]*incident.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := alerts[:0]
	for _, a := range alerts {
		if a.Live(now) {
			live = append(live, a)
		}
	}
	return live, nil
}

// AllAlerts returns every notice, for the admin console.
func (s *Service) AllAlerts(ctx context.Context) ([]*incident.Alert, error) {
	return s.store.ListAlerts(ctx, false)
}

func (s *Service) emit(ev Event) {
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}
}

type attachmentSummary struct {
	URL        string               `json:"url"`
	Caption    string               `json:"caption,omitempty"`
	SafetyTags []incident.SafetyTag `json:"safety_tags,omitempty"`
}

// attachmentSummaries strips attachments down to what the dashboard needs.
func attachmentSummaries(atts []incident.Attachment) []attachmentSummary {
	out := make([]attachmentSummary, 0, len(atts))
	for _, a := range atts {
		out = append(out, attachmentSummary{URL: a.URL, Caption: a.Caption, SafetyTags: a.SafetyTags})
	}
	return out
}
