package reportapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

// maxUploadBytes bounds one attachment. The pipeline re-encodes to at most
// 960px anyway; anything bigger than this is abuse, not a photo.
const maxUploadBytes = 8 << 20

// submitRequest is the JSON submission body. Multipart submissions carry the
// same fields as form values plus a "photo" file part.
type submitRequest struct {
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Location    incident.Point `json:"location"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	in, err := a.parseSubmission(r)
	if err != nil {
		http.Error(w, `{"error":`+strconv.Quote(err.Error())+`}`, http.StatusBadRequest)
		return
	}

	out, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.logger.Error(r.Context(), err, "submission failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Bool("beacon.submit.merged", out.Merged),
		attribute.String("beacon.submit.report_code", out.ReportCode),
	)

	if out.Merged {
		a.respond(w, http.StatusOK, map[string]any{
			"merged":     true,
			"reportCode": out.ReportCode,
			"similarity": out.Similarity,
		})
		return
	}

	a.respond(w, http.StatusCreated, map[string]any{
		"merged":       false,
		"reportCode":   out.ReportCode,
		"status":       out.Incident.Status,
		"category":     out.Incident.Category,
		"urgencyScore": out.Incident.UrgencyScore,
		"priority":     out.Incident.Priority,
	})
}

// parseSubmission accepts either a JSON body or multipart/form-data with an
// optional photo. All validation happens here, before the pipeline runs.
func (a *API) parseSubmission(r *http.Request) (*triage.SubmitInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var req submitRequest
	in := &triage.SubmitInput{}

	switch {
	case ct == "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, errors.New("invalid multipart body")
		}
		req.Description = r.FormValue("description")
		req.Category = r.FormValue("category")

		lng, err1 := strconv.ParseFloat(r.FormValue("lng"), 64)
		lat, err2 := strconv.ParseFloat(r.FormValue("lat"), 64)
		if err1 != nil || err2 != nil {
			return nil, errors.New("lng and lat are required")
		}
		req.Location = incident.NewPoint(lng, lat)

		if err := a.attachPhoto(r, in); err != nil {
			return nil, err
		}

	default:
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			return nil, errors.New("invalid json body")
		}
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, errors.New("description is required")
	}
	if err := validateCategory(req.Category); err != nil {
		return nil, err
	}
	if err := validatePoint(req.Location); err != nil {
		return nil, err
	}

	in.Description = req.Description
	in.CategoryHint = req.Category
	in.Location = req.Location
	return in, nil
}

// attachPhoto persists the uploaded file and fills the attachment metadata.
// The raw bytes also travel on the input for the vision step.
func (a *API) attachPhoto(r *http.Request, in *triage.SubmitInput) error {
	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return errors.New("invalid photo upload")
	}
	defer func() { _ = file.Close() }()

	if a.uploads == "" {
		return errors.New("photo uploads are disabled")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return errors.New("failed to read photo")
	}
	if len(data) > maxUploadBytes {
		return errors.New("photo too large")
	}

	name := ulid.Make().String() + safeExt(header.Filename)
	if err := os.WriteFile(filepath.Join(a.uploads, name), data, 0o644); err != nil {
		a.logger.Error(r.Context(), err, "attachment write failed")
		return errors.New("failed to store photo")
	}

	in.Image = data
	in.ImageURL = "/uploads/" + name
	in.ImageMime = header.Header.Get("Content-Type")
	in.ImageName = header.Filename
	return nil
}

func safeExt(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ".bin"
	}
}

func validateCategory(c string) error {
	if c == "" {
		return nil
	}
	for _, known := range triage.Categories {
		if c == known {
			return nil
		}
	}
	return errors.New("unknown category")
}

func validatePoint(p incident.Point) error {
	lng, lat := p.Lng(), p.Lat()
	if math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return errors.New("location coordinates must be finite")
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return errors.New("location out of range")
	}
	if p.Type != "" && p.Type != "Point" {
		return errors.New("location must be a GeoJSON point")
	}
	return nil
}

func (a *API) handleTrack(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "reportCode")

	inc, ok, err := a.svc.Track(r.Context(), code)
	if err != nil {
		a.logger.Error(r.Context(), err, "track lookup failed", "report_code", code)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	attachments := inc.Attachments
	if attachments == nil {
		attachments = []incident.Attachment{}
	}

	// Reporter-facing view: no admin notes, no internal ID.
	a.respond(w, http.StatusOK, map[string]any{
		"reportCode":   inc.ReportCode,
		"status":       inc.Status,
		"category":     inc.Category,
		"priority":     inc.Priority,
		"urgencyScore": inc.UrgencyScore,
		"summary":      inc.Summary,
		"attachments":  attachments,
		"createdAt":    inc.CreatedAt,
		"updatedAt":    inc.UpdatedAt,
	})
}

// feedRanges are the only windows the public endpoint serves.
var feedRanges = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

func (a *API) handlePublicFeed(w http.ResponseWriter, r *http.Request) {
	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "24h"
	}
	window, ok := feedRanges[rng]
	if !ok {
		http.Error(w, `{"error":"range must be 24h or 7d"}`, http.StatusBadRequest)
		return
	}

	incidents, err := a.svc.PublicFeed(r.Context(), window)
	if err != nil {
		a.logger.Error(r.Context(), err, "public feed failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	// Map pins only. Descriptions and report codes stay private.
	out := make([]map[string]any, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, map[string]any{
			"category":     inc.Category,
			"urgencyScore": inc.UrgencyScore,
			"priority":     inc.Priority,
			"status":       inc.Status,
			"location":     inc.Location,
			"createdAt":    inc.CreatedAt,
		})
	}
	a.respond(w, http.StatusOK, map[string]any{"range": rng, "incidents": out})
}

func (a *API) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.svc.ActiveAlerts(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "active alerts failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*incident.Alert{}
	}
	a.respond(w, http.StatusOK, map[string]any{"alerts": alerts})
}
