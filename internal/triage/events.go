package triage

// EventName identifies a notification event on the operator channel.
type EventName string

const (
	// EventIncidentNew announces a freshly persisted incident.
	EventIncidentNew EventName = "incident:new"

	// EventIncidentMerged announces a submission folded into an existing
	// incident.
	EventIncidentMerged EventName = "incident:merged"

	// EventAlertNew announces an admin broadcast notice.
	EventAlertNew EventName = "alert:new"
)

// Event is a notification published to the operator channel.
type Event struct {
	Name EventName `json:"event"`
	Data any       `json:"data"`
}

// Emitter publishes events fire-and-forget, at most once. Implementations
// must not block the caller and must tolerate having zero subscribers.
type Emitter interface {
	Emit(ev Event)
}
