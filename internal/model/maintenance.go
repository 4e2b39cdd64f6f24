package model

import (
	"strings"
	"time"
)

// DateLayout is the storage and display format of MaintCircuit dates.
const DateLayout = "2006-01-02"

// Maintenance is one row of a provider maintenance ticket.
//
// A ticket may have several rows over time: every reschedule supersedes the
// active row (Rescheduled = true, RescheduledID pointing at its successor)
// and inserts a new one. At most one row per (ProviderID, ProviderMaintID)
// is active.
type Maintenance struct {
	ID              string    `json:"id" db:"id"`
	ProviderID      string    `json:"provider_id" db:"provider_id"`
	ProviderMaintID string    `json:"provider_maintenance_id" db:"provider_maintenance_id"`
	Start           TimeOfDay `json:"start" db:"start_time"`
	End             TimeOfDay `json:"end" db:"end_time"`
	Timezone        string    `json:"timezone" db:"timezone"`
	Location        string    `json:"location" db:"location"`
	Reason          string    `json:"reason" db:"reason"`
	ReceivedAt      time.Time `json:"received_dt" db:"received_dt"`
	Started         bool      `json:"started" db:"started"`
	Ended           bool      `json:"ended" db:"ended"`
	Cancelled       bool      `json:"cancelled" db:"cancelled"`
	Rescheduled     bool      `json:"rescheduled" db:"rescheduled"`
	RescheduledID   string    `json:"rescheduled_id,omitempty" db:"rescheduled_id"`
}

// Active reports whether m is the current row of its ticket.
func (m *Maintenance) Active() bool {
	return !m.Rescheduled
}

// Status summarizes the lifecycle flags into a single word.
func (m *Maintenance) Status() string {
	switch {
	case m.Rescheduled:
		return "rescheduled"
	case m.Cancelled:
		return "cancelled"
	case m.Ended:
		return "ended"
	case m.Started:
		return "started"
	default:
		return "scheduled"
	}
}

// Loc resolves the maintenance timezone, falling back to UTC.
func (m *Maintenance) Loc() *time.Location {
	loc, err := LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaintCircuit records that a maintenance affects a circuit on a date.
type MaintCircuit struct {
	ID        string    `json:"id" db:"id"`
	MaintID   string    `json:"maint_id" db:"maint_id"`
	CircuitID string    `json:"circuit_id" db:"circuit_id"`
	Impact    string    `json:"impact" db:"impact"`
	Date      time.Time `json:"date" db:"date"`
}

// MaintUpdate is an append-only comment on a maintenance.
type MaintUpdate struct {
	ID            string    `json:"id" db:"id"`
	MaintenanceID string    `json:"maintenance_id" db:"maintenance_id"`
	Comment       string    `json:"comment" db:"comment"`
	Updated       time.Time `json:"updated" db:"updated"`
}

// MentionsExtension reports whether the comment announces that the window
// was extended.
func (u MaintUpdate) MentionsExtension() bool {
	c := strings.ToLower(u.Comment)
	return strings.Contains(c, "extended") || strings.Contains(c, "extension")
}

// Day truncates t to its calendar date in its own location and returns the
// date at UTC midnight, the form MaintCircuit dates are compared in.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
