// Package vision provides best-effort image analysis for incident
// attachments: a bounded-width re-encode, an external caption, and zero-shot
// safety tags. Every step degrades to empty output on failure; analysis never
// fails a submission.
package vision

import (
	"context"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/incident"
)

// SafetyLabels is the closed label set for zero-shot image tagging.
var SafetyLabels = []string{
	"medical emergency",
	"theft or burglary",
	"vandalism",
	"harassment",
	"suspicious activity",
	"fire or smoke",
	"weapon visible",
	"crowd disturbance",
	"normal scene",
}

// maxSafetyTags caps how many tags are kept from a label-shaped response.
const maxSafetyTags = 3

// Captioner generates a human-readable caption for an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

// Labeler scores an image against a fixed label set. Response shape is not
// guaranteed by the upstream service; implementations must validate before
// returning tags.
type Labeler interface {
	ImageLabels(ctx context.Context, image []byte, labels []string) ([]incident.SafetyTag, error)
}

// Result is the adapter output. Both fields may be empty; Warnings records
// the swallowed failure reasons for the trace.
type Result struct {
	Caption    string               `json:"caption"`
	SafetyTags []incident.SafetyTag `json:"safety_tags"`
	Warnings   []string             `json:"warnings,omitempty"`
}

// Empty returns the result used when no image was attached or analysis is
// disabled.
func Empty() *Result {
	return &Result{SafetyTags: []incident.SafetyTag{}}
}

// Adapter runs the caption and labeling steps against normalized image bytes.
type Adapter struct {
	captioner Captioner
	labeler   Labeler
	maxWidth  int
	logger    log.Logger
}

// NewAdapter creates a vision adapter. maxWidth bounds the re-encoded image
// width before any bytes leave the process; <= 0 selects the default.
func NewAdapter(captioner Captioner, labeler Labeler, maxWidth int, logger log.Logger) *Adapter {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{
		captioner: captioner,
		labeler:   labeler,
		maxWidth:  maxWidth,
		logger:    logger,
	}
}

// Analyze normalizes the image and runs captioning and safety tagging, each
// independently best-effort. It never returns an error; failures show up as
// Warnings on an otherwise empty Result.
func (a *Adapter) Analyze(ctx context.Context, image []byte) *Result {
	out := Empty()

	normalized, err := Normalize(image, a.maxWidth)
	if err != nil {
		// Nothing safe to send upstream without a re-encode.
		a.logger.Warn(ctx, "image normalize failed", "error", err)
		out.Warnings = append(out.Warnings, "normalize: "+err.Error())
		return out
	}

	if a.captioner != nil {
		caption, err := a.captioner.Caption(ctx, normalized)
		if err != nil {
			a.logger.Warn(ctx, "image caption failed", "error", err)
			out.Warnings = append(out.Warnings, "caption: "+err.Error())
		} else {
			out.Caption = caption
		}
	}

	if a.labeler != nil {
		tags, err := a.labeler.ImageLabels(ctx, normalized, SafetyLabels)
		if err != nil {
			a.logger.Warn(ctx, "image labeling failed", "error", err)
			out.Warnings = append(out.Warnings, "labels: "+err.Error())
		} else {
			if len(tags) > maxSafetyTags {
				tags = tags[:maxSafetyTags]
			}
			out.SafetyTags = tags
		}
	}

	return out
}
