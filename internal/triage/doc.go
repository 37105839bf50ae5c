// Package triage provides the business boundary for beacon's incident triage
// pipeline. It defines the Service (submission lifecycle, persistence, event
// fan-out), Engine (dedup -> classify -> vision orchestration with a full
// step trace), Store interfaces, and the pure matching/scoring primitives.
package triage
