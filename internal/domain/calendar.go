package domain

import "time"

// SourceKind identifies how a calendar's events are fetched.
type SourceKind string

const (
	SourceICS    SourceKind = "ics"    // public ICS feed over HTTP
	SourceCalDAV SourceKind = "caldav" // CalDAV collection path
)

// Calendar represents one subscribed calendar source
type Calendar struct {
	ID        int64
	Name      string
	Color     string
	Source    SourceKind
	SourceURL string // feed URL for ics, collection path for caldav
	SyncedAt  *time.Time
	CreatedAt time.Time
}
