// Package notification pushes emergency alerts to external channels
// (chat services through shoutrrr, MQTT topics) alongside the backend's own
// supervisor alert.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alert is one emergency raised by a keeper
type Alert struct {
	ID            string    `json:"id"`
	AnimalID      string    `json:"animal_id,omitempty"`
	AnimalName    string    `json:"animal_name"`
	ObservationID string    `json:"observation_id,omitempty"`
	Description   string    `json:"description"`
	ReportedBy    string    `json:"reported_by,omitempty"`
	Time          time.Time `json:"time"`
}

// normalize fills the ID and timestamp when the caller left them empty.
func (a *Alert) normalize() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
}

// Title is the short headline used by chat services
func (a *Alert) Title() string {
	name := a.AnimalName
	if name == "" {
		name = "animal " + a.AnimalID
	}
	return "EMERGENCY: " + name
}

// Body is the plain text message
func (a *Alert) Body() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Description))
	if a.ReportedBy != "" || !a.Time.IsZero() {
		b.WriteString("\nReported")
		if a.ReportedBy != "" {
			fmt.Fprintf(&b, " by %s", a.ReportedBy)
		}
		if !a.Time.IsZero() {
			fmt.Fprintf(&b, " at %s", a.Time.Format("02 Jan 2006 15:04"))
		}
	}
	if a.ObservationID != "" {
		fmt.Fprintf(&b, "\nObservation %s", a.ObservationID)
	}
	return b.String()
}
