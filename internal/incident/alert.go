package incident

import "time"

// AlertSeverity is the display severity of a broadcast notice.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Valid reports whether s is a known alert severity.
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertInfo, AlertWarning, AlertCritical:
		return true
	}
	return false
}

// Alert is an admin-authored broadcast notice shown to everyone on campus,
// independent of any individual incident report.
type Alert struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Severity AlertSeverity `json:"severity"`
	Active   bool          `json:"active"`

	// ExpiresAt is zero for alerts that stay up until deactivated.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the alert should be shown at time now.
func (a *Alert) Live(now time.Time) bool {
	if !a.Active {
		return false
	}
	if !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt) {
		return false
	}
	return true
}
