package domain

import (
	"fmt"
	"time"
)

// EventStatus is the confirmation state of an event.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
)

// Event is one persisted calendar event row.
//
// Exactly one of RecurrenceRule / RecurringEventID may be set:
// a master carries RecurrenceRule, an override instance carries
// RecurringEventID (the master's ExternalID) plus OriginalStartTime,
// and a plain event carries neither.
type Event struct {
	ID          int64
	CalendarID  int64
	ExternalID  string // source-assigned identity, unique per calendar
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Status      EventStatus

	RecurrenceRule    string     // master only
	RecurringEventID  string     // override only: master's ExternalID
	OriginalStartTime *time.Time // override only: start the occurrence would have had

	SyncedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsMaster reports whether the event anchors a recurring series.
func (e *Event) IsMaster() bool {
	return e.RecurrenceRule != "" && e.RecurringEventID == ""
}

// IsOverride reports whether the event replaces one occurrence of a series.
func (e *Event) IsOverride() bool {
	return e.RecurringEventID != ""
}

// Overlaps reports whether the event intersects the closed range [from, to].
func (e *Event) Overlaps(from, to time.Time) bool {
	return !e.StartTime.After(to) && !e.EndTime.Before(from)
}

// FormatTime returns formatted time for display
func (e *Event) FormatTime() string {
	if e.AllDay {
		return e.StartTime.Format("2006-01-02")
	}
	if e.EndTime.IsZero() {
		return e.StartTime.Format("15:04")
	}
	return e.StartTime.Format("15:04") + "-" + e.EndTime.Format("15:04")
}

// Occurrence is one concrete, time-bounded instance of an event inside a
// query window. It is synthesized by the expander and never persisted.
type Occurrence struct {
	ID          string // event row id, or "<masterID>_<startRFC3339>" when synthesized
	EventID     int64  // backing row; the master's id for a synthesized instance
	CalendarID  int64
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Status      EventStatus
	Recurring   bool // true when synthesized from a master's rule
}

// OccurrenceID derives the composite id of a synthesized occurrence.
func OccurrenceID(masterID int64, start time.Time) string {
	return fmt.Sprintf("%d_%s", masterID, start.UTC().Format(time.RFC3339))
}
