package triage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/vision"
)

// Per-step timeouts. Each external dependency is bounded independently; a
// timeout is recovered exactly like any other dependency failure.
const (
	dedupTimeout    = 5 * time.Second
	classifyTimeout = 15 * time.Second
	visionTimeout   = 30 * time.Second
)

// Vision runs best-effort image analysis. Satisfied by *vision.Adapter.
type Vision interface {
	Analyze(ctx context.Context, image []byte) *vision.Result
}

// EngineHooks receive instrumentation callbacks from Run. Zero value is valid.
type EngineHooks struct {
	OnStep    func(step StepName, duration float64, failed bool)
	OnOutcome func(merged bool, similarity float64, urgency int, fallback bool)
}

// Engine orchestrates one triage run: duplicate detection first (merging
// short-circuits), then classification, then optional vision. Every step's
// output or swallowed failure lands on the trace in execution order. The
// engine never persists a new incident; that is the caller's job.
type Engine struct {
	store      CandidateStore
	classifier Classifier // nil selects the fallback-only path
	vision     Vision     // nil disables image analysis
	emitter    Emitter    // nil disables notifications
	logger     log.Logger
	hooks      EngineHooks
	now        func() time.Time
}

// NewEngine creates a triage engine. Only store is required: classifier,
// vision, and emitter are optional capabilities threaded in explicitly so
// both paths of every step are testable.
func NewEngine(store CandidateStore, classifier Classifier, vis Vision, emitter Emitter, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		vision:     vis,
		emitter:    emitter,
		logger:     logger,
		hooks:      hooks,
		now:        time.Now,
	}
}

// Run executes the pipeline for one submission. It never returns an error:
// every dependency failure is recovered locally and recorded on the trace.
func (e *Engine) Run(ctx context.Context, sub *Submission) *Result {
	res := &Result{}

	if merged := e.detectDuplicate(ctx, sub, res); merged != nil {
		res.Merged = merged
		e.emit(Event{Name: EventIncidentMerged, Data: map[string]any{
			"reportCode": merged.ReportCode,
			"similarity": merged.Similarity,
		}})
		if e.hooks.OnOutcome != nil {
			e.hooks.OnOutcome(true, merged.Similarity, 0, false)
		}
		return res
	}

	res.Classification = e.classifyText(ctx, sub, res)
	res.Vision = e.analyzeImage(ctx, sub, res)

	if e.hooks.OnOutcome != nil {
		e.hooks.OnOutcome(false, 0, res.Classification.UrgencyScore, res.Classification.Model == FallbackModel)
	}
	return res
}

// detectDuplicate runs the candidate query and the pure match decision.
// A store failure degrades to "no candidates". A failed counter bump voids
// the merge decision so the two are committed together or not at all.
func (e *Engine) detectDuplicate(ctx context.Context, sub *Submission, res *Result) *MergeOutcome {
	start := e.now()
	cctx, cancel := context.WithTimeout(ctx, dedupTimeout)
	defer cancel()

	candidates, err := e.store.FindNearbyUnresolved(cctx, sub.Location, DupRadiusMeters, start.Add(-DupWindow), DupCandidateLimit)
	if err != nil {
		e.logger.Warn(ctx, "candidate query failed, treating as no candidates", "error", err)
		e.trace(res, StepDetectDuplicate, nil, err, start)
		return nil
	}

	match, ok := BestMatch(sub.Description, candidates)
	if !ok {
		e.trace(res, StepDetectDuplicate, nil, nil, start)
		return nil
	}

	if err := e.store.IncrementDuplicateCount(cctx, match.Candidate.ID); err != nil {
		e.logger.Warn(ctx, "duplicate counter bump failed, keeping submission as new",
			"target", match.Candidate.ID, "error", err)
		e.trace(res, StepDetectDuplicate, nil, err, start)
		return nil
	}

	e.trace(res, StepDetectDuplicate, match, nil, start)
	return &MergeOutcome{
		IncidentID: match.Candidate.ID,
		ReportCode: match.Candidate.ReportCode,
		Similarity: match.Similarity,
	}
}

// classifyText tries the external classifier and silently falls back to the
// deterministic keyword path, attaching the failure reason as a warning.
func (e *Engine) classifyText(ctx context.Context, sub *Submission, res *Result) *Classification {
	start := e.now()

	if e.classifier == nil {
		c := fallbackClassification(sub.Description, sub.CategoryHint, "")
		e.trace(res, StepClassifyText, c, nil, start)
		return c
	}

	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	text := sub.Description
	if sub.CategoryHint != "" {
		text = "UserCategory: " + sub.CategoryHint + ". " + sub.Description
	}

	pred, err := e.classifier.Classify(cctx, text, Categories)
	if err != nil {
		e.logger.Warn(ctx, "external classifier failed, using fallback", "error", err)
		c := fallbackClassification(sub.Description, sub.CategoryHint, err.Error())
		e.trace(res, StepClassifyText, c, err, start)
		return c
	}

	c := blendClassification(sub.Description, pred, e.classifierModel())
	e.trace(res, StepClassifyText, c, nil, start)
	return c
}

// analyzeImage runs vision when an image was attached; absence of an image is
// not an error and yields the empty result.
func (e *Engine) analyzeImage(ctx context.Context, sub *Submission, res *Result) *vision.Result {
	start := e.now()

	if len(sub.Image) == 0 || e.vision == nil {
		v := vision.Empty()
		e.trace(res, StepAnalyzeImage, v, nil, start)
		return v
	}

	vctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	v := e.vision.Analyze(vctx, sub.Image)
	e.trace(res, StepAnalyzeImage, v, nil, start)
	return v
}

func (e *Engine) classifierModel() string {
	if named, ok := e.classifier.(interface{ Model() string }); ok {
		return named.Model()
	}
	return "external"
}

func (e *Engine) emit(ev Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// trace appends one entry. output marshals to null on nil or marshal failure,
// matching the "null on swallowed failure" contract.
func (e *Engine) trace(res *Result, step StepName, output any, err error, start time.Time) {
	var raw json.RawMessage
	if output != nil {
		if b, merr := json.Marshal(output); merr == nil {
			raw = b
		}
	}

	entry := TraceEntry{Step: step, Output: raw}
	if err != nil {
		entry.Err = err.Error()
	}
	res.Trace = append(res.Trace, entry)

	if e.hooks.OnStep != nil {
		e.hooks.OnStep(step, e.now().Sub(start).Seconds(), err != nil)
	}
}
