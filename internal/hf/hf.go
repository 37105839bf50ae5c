// Package hf is a client for the Hugging Face inference API. It serves both
// sides of the pipeline's external surface: zero-shot text classification for
// the Classification Engine, and captioning plus zero-shot image labeling for
// the Vision Adapter. All calls run through a shared circuit breaker so a
// flapping upstream trips fast instead of burning the per-step timeout on
// every submission.
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
)

// DefaultBaseURL is the hosted inference endpoint.
const DefaultBaseURL = "https://api-inference.huggingface.co"

// Model identifiers. The label set travels with the request, so swapping
// models never changes the closed category set.
const (
	TextModel    = "facebook/bart-large-mnli"
	CaptionModel = "Salesforce/blip-image-captioning-base"
	LabelModel   = "openai/clip-vit-base-patch32"
)

const httpTimeout = 20 * time.Second

// Client calls the Hugging Face inference API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New creates a client with the given API token. baseURL is empty outside of
// tests.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "huggingface",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Model reports which model produced text classifications.
func (c *Client) Model() string { return TextModel }

// Classify runs zero-shot text classification and returns the top label.
// Implements triage.Classifier.
func (c *Client) Classify(ctx context.Context, text string, labels []string) (*triage.Prediction, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"candidate_labels": labels},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.post(ctx, TextModel, "application/json", payload)
	if err != nil {
		return nil, err
	}

	// The endpoint answers with {labels, scores}, occasionally wrapped in a
	// single-element array.
	var out struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		var wrapped []json.RawMessage
		if aerr := json.Unmarshal(body, &wrapped); aerr != nil || len(wrapped) == 0 {
			return nil, fmt.Errorf("unmarshal zero-shot response: %w", err)
		}
		if err := json.Unmarshal(wrapped[0], &out); err != nil {
			return nil, fmt.Errorf("unmarshal zero-shot response: %w", err)
		}
	}

	if len(out.Labels) == 0 || len(out.Scores) == 0 {
		return nil, fmt.Errorf("zero-shot response missing labels: %s", truncateBody(body))
	}
	return &triage.Prediction{Label: out.Labels[0], Confidence: out.Scores[0]}, nil
}

// Caption generates a human-readable caption for an image. Implements
// vision.Captioner.
func (c *Client) Caption(ctx context.Context, image []byte) (string, error) {
	body, err := c.post(ctx, CaptionModel, "application/octet-stream", image)
	if err != nil {
		return "", err
	}

	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return list[0].GeneratedText, nil
	}

	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return "", fmt.Errorf("unmarshal caption response: %w", err)
	}
	return single.GeneratedText, nil
}

// ImageLabels scores an image against the given label set. The deployment
// behind this endpoint varies; anything that is not label-shaped is reported
// as an error and degraded by the caller. Implements vision.Labeler.
func (c *Client) ImageLabels(ctx context.Context, image []byte, labels []string) ([]incident.SafetyTag, error) {
	body, err := c.post(ctx, LabelModel, "application/octet-stream", image)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Label string   `json:"label"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal label response: %w", err)
	}

	var tags []incident.SafetyTag
	for _, r := range raw {
		if r.Label == "" || r.Score == nil {
			continue
		}
		tags = append(tags, incident.SafetyTag{Label: r.Label, Score: *r.Score})
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("label response not label-shaped: %s", truncateBody(body))
	}
	return tags, nil
}

// post sends one inference request through the circuit breaker. Non-2xx is an
// error; the API returns 503 while a model spins up and that must trip the
// caller's fallback, not block the pipeline.
func (c *Client) post(ctx context.Context, model, contentType string, payload []byte) ([]byte, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/models/"+model, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("hf %s returned %d: %s", model, resp.StatusCode, truncateBody(body))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
