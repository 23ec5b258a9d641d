// Package ics normalizes iCalendar payloads into RawEvent records that the
// sync reconciler can diff against persisted state.
package ics

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tyler-danielson/openframe-sub008/internal/domain"
)

// RawEvent is one normalized VEVENT as it came from a source, before it has
// a local identity.
type RawEvent struct {
	ExternalID  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      domain.EventStatus

	RecurrenceRule    string
	RecurringEventID  string     // master's ExternalID, set for overrides
	OriginalStartTime *time.Time // RECURRENCE-ID instant, set for overrides
}

// MalformedEventError reports a VEVENT that could not be normalized.
// Such events are dropped; the rest of the payload still parses.
type MalformedEventError struct {
	UID    string
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("malformed event: %s", e.Reason)
	}
	return fmt.Sprintf("malformed event %s: %s", e.UID, e.Reason)
}

// Parse decodes an ICS payload into RawEvents. A malformed VEVENT is logged
// and skipped; only an undecodable payload fails the whole parse. The
// library handles line unfolding and text unescaping; floating date-times
// are interpreted in local wall-clock time and date-only values as local
// midnight.
func Parse(data []byte) ([]RawEvent, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}

	var events []RawEvent
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		ev, err := ParseComponent(comp)
		if err != nil {
			log.Printf("ics: skipping event: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseComponent normalizes a single VEVENT component. The CalDAV client
// feeds query results through it so both source kinds share one
// normalization path.
func ParseComponent(comp *ical.Component) (RawEvent, error) {
	var ev RawEvent

	uid := propValue(comp, ical.PropUID)
	if uid == "" {
		return ev, &MalformedEventError{Reason: "missing UID"}
	}
	ev.ExternalID = uid

	ev.Title = propValue(comp, ical.PropSummary)
	if ev.Title == "" {
		return ev, &MalformedEventError{UID: uid, Reason: "missing SUMMARY"}
	}
	ev.Description = propValue(comp, ical.PropDescription)
	ev.Location = propValue(comp, ical.PropLocation)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, &MalformedEventError{UID: uid, Reason: "missing DTSTART"}
	}
	start, err := startProp.DateTime(time.Local)
	if err != nil {
		return ev, &MalformedEventError{UID: uid, Reason: fmt.Sprintf("bad DTSTART: %v", err)}
	}
	ev.Start = start
	ev.AllDay = startProp.Params.Get(ical.ParamValue) == string(ical.ValueDate)

	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if endProp == nil {
		return ev, &MalformedEventError{UID: uid, Reason: "missing DTEND"}
	}
	end, err := endProp.DateTime(time.Local)
	if err != nil {
		return ev, &MalformedEventError{UID: uid, Reason: fmt.Sprintf("bad DTEND: %v", err)}
	}
	ev.End = end

	ev.Status = parseStatus(propValue(comp, ical.PropStatus))

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		ev.RecurrenceRule = p.Value
	}

	// An override VEVENT shares the master's UID and carries RECURRENCE-ID.
	// Suffix the external id with the occurrence instant so it stays unique
	// within the calendar.
	if p := comp.Props.Get("RECURRENCE-ID"); p != nil {
		orig, err := p.DateTime(time.Local)
		if err != nil {
			return ev, &MalformedEventError{UID: uid, Reason: fmt.Sprintf("bad RECURRENCE-ID: %v", err)}
		}
		ev.RecurringEventID = uid
		ev.OriginalStartTime = &orig
		ev.ExternalID = uid + "_" + orig.UTC().Format("20060102T150405Z")
		ev.RecurrenceRule = ""
	}

	return ev, nil
}

// propValue returns a property's unescaped text ("\n", "\,", "\;", "\\"
// decoded), or the raw value when it is not well-formed text.
func propValue(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	text, err := p.Text()
	if err != nil {
		return p.Value
	}
	return text
}

// parseStatus maps an ICS STATUS value onto the local taxonomy. Anything
// unrecognized, including an absent status, counts as confirmed.
func parseStatus(v string) domain.EventStatus {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "TENTATIVE":
		return domain.StatusTentative
	case "CANCELLED":
		return domain.StatusCancelled
	default:
		return domain.StatusConfirmed
	}
}
