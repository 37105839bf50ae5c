// Package incident defines the persisted domain model for anonymous safety
// incident reports: the Incident entity, its attachments, lifecycle status,
// and the geospatial point incidents are anchored to.
package incident

import "time"

// Status tracks where a report is in its handling lifecycle. Transitions move
// forward (received -> reviewing -> resolved) in normal operation but an
// administrator may reset a report to an earlier status.
type Status string

const (
	StatusReceived  Status = "received"
	StatusReviewing Status = "reviewing"
	StatusResolved  Status = "resolved"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusReviewing, StatusResolved:
		return true
	}
	return false
}

// Priority is the coarse operator-facing bucket derived from the urgency score.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityFromUrgency buckets an urgency score into a priority.
func PriorityFromUrgency(urgency int) Priority {
	switch {
	case urgency >= 70:
		return PriorityHigh
	case urgency >= 40:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Point is a GeoJSON point: coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint builds a GeoJSON point from a longitude/latitude pair.
func NewPoint(lng, lat float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// Lng returns the longitude component.
func (p Point) Lng() float64 { return p.Coordinates[0] }

// Lat returns the latitude component.
func (p Point) Lat() float64 { return p.Coordinates[1] }

// SafetyTag is a single label/confidence pair produced by the vision labeler.
type SafetyTag struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Attachment is an image attached at submission time plus its vision outputs.
// Attachments are created once and never modified afterwards.
type Attachment struct {
	URL          string      `json:"url"`
	MimeType     string      `json:"mime_type,omitempty"`
	OriginalName string      `json:"original_name,omitempty"`
	Caption      string      `json:"caption,omitempty"`
	SafetyTags   []SafetyTag `json:"safety_tags,omitempty"`
	OCRText      string      `json:"ocr_text,omitempty"`
}

// Incident is the persisted report entity. The triage pipeline only reads
// incidents and issues targeted updates (duplicate counter, merge
// back-reference); creation and lifecycle updates belong to the service layer.
type Incident struct {
	ID          string `json:"id"`
	ReportCode  string `json:"report_code"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// UrgencyScore is always in [0,100].
	UrgencyScore int      `json:"urgency_score"`
	Priority     Priority `json:"priority"`
	Status       Status   `json:"status"`

	Location    Point        `json:"location"`
	Attachments []Attachment `json:"attachments,omitempty"`

	AdminNotes string `json:"admin_notes,omitempty"`
	Summary    string `json:"summary,omitempty"`

	// AIModel/AIConfidence record which classifier produced the category.
	AIModel      string  `json:"ai_model,omitempty"`
	AIConfidence float64 `json:"ai_confidence,omitempty"`

	// MergedInto references the incident this report was folded into, empty
	// for reports that stand on their own.
	MergedInto string `json:"merged_into,omitempty"`

	// DuplicateOfCount counts later submissions merged into this incident.
	DuplicateOfCount int `json:"duplicate_of_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
