package triage

import (
	"encoding/json"
	"time"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/vision"
)

// Duplicate detection window and threshold. These mirror the product
// definition of "the same thing reported twice": close in space, recent in
// time, and lexically overlapping.
const (
	// DupThreshold is the inclusive Jaccard similarity above which a new
	// submission is merged into an existing incident.
	DupThreshold = 0.35

	// DupWindow is the trailing time range searched for candidates.
	DupWindow = 2 * time.Hour

	// DupRadiusMeters is the spatial radius searched for candidates.
	DupRadiusMeters = 200

	// DupCandidateLimit caps how many nearby incidents are scored.
	DupCandidateLimit = 20
)

// StepName enumerates the pipeline steps. Dispatch is a fixed switch over
// these variants, not a string-keyed lookup table.
type StepName string

const (
	StepDetectDuplicate StepName = "detect_duplicate"
	StepClassifyText    StepName = "classify_text"
	StepAnalyzeImage    StepName = "analyze_image"
)

// TraceEntry records one executed pipeline step: its raw output, or null plus
// the failure reason when the step's dependency failed and was recovered.
// The trace exists for diagnostics only and is never persisted on the incident.
type TraceEntry struct {
	Step   StepName        `json:"step"`
	Output json.RawMessage `json:"output"`
	Err    string          `json:"error,omitempty"`
}

// Candidate is a transient projection of a nearby incident used only during
// duplicate evaluation.
type Candidate struct {
	ID          string    `json:"id"`
	ReportCode  string    `json:"report_code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Match pairs the best-scoring candidate with its similarity.
type Match struct {
	Candidate  Candidate `json:"candidate"`
	Similarity float64   `json:"similarity"`
}

// MergeOutcome is the short-circuit result when a submission duplicates a
// recent nearby incident. No new incident is created for a merge.
type MergeOutcome struct {
	IncidentID string  `json:"incident_id"`
	ReportCode string  `json:"report_code"`
	Similarity float64 `json:"similarity"`
}

// Classification is the converged output shape of both classifier paths.
// Warning carries the non-fatal reason the external path was abandoned; it is
// never surfaced as an error to the caller.
type Classification struct {
	Category     string  `json:"category"`
	UrgencyScore int     `json:"urgency_score"`
	Summary      string  `json:"summary"`
	Model        string  `json:"model"`
	Confidence   float64 `json:"confidence"`
	Warning      string  `json:"warning,omitempty"`
}

// Submission is the validated input to one pipeline run. Validation of
// coordinates and description happens upstream, before the pipeline.
type Submission struct {
	Description  string
	CategoryHint string
	Location     incident.Point

	// Image is nil when no photo was attached.
	Image []byte
}

// Result is the process-local outcome of one pipeline run: either a merge
// outcome, or the material for a new incident, plus the ordered step trace.
type Result struct {
	Merged         *MergeOutcome   `json:"merged,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Vision         *vision.Result  `json:"vision,omitempty"`
	Trace          []TraceEntry    `json:"trace"`
}
