package recurrence

import (
	"errors"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tyler-danielson/openframe-sub008/internal/domain"
)

// Expand computes the concrete occurrences of events inside the closed
// window [rangeStart, rangeEnd]. It is pure: it never mutates its inputs
// and is recomputed on every call, so any number of readers may run it
// concurrently.
//
// Standalone events and override instances are included whenever they
// overlap the window. Masters are enumerated through their rule; an
// occurrence already represented by an override (matched at calendar-day
// granularity on OriginalStartTime or the override's own start) is not
// synthesized again. A master whose rule fails to parse degrades to a
// single non-recurring event.
func Expand(events []*domain.Event, rangeStart, rangeEnd time.Time) ([]domain.Occurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, errors.New("expand: rangeEnd is before rangeStart")
	}

	instancesByMaster := make(map[string][]*domain.Event)
	for _, ev := range events {
		if ev.IsOverride() {
			instancesByMaster[ev.RecurringEventID] = append(instancesByMaster[ev.RecurringEventID], ev)
		}
	}

	var out []domain.Occurrence
	for _, ev := range events {
		if ev.IsMaster() {
			out = append(out, expandMaster(ev, instancesByMaster[ev.ExternalID], rangeStart, rangeEnd)...)
			continue
		}
		// Standalone events and overrides carry their own concrete bounds.
		// An orphaned override simply lands here as a standalone.
		if ev.Overlaps(rangeStart, rangeEnd) {
			out = append(out, concreteOccurrence(ev))
		}
	}

	out = dedupe(out)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func expandMaster(master *domain.Event, overrides []*domain.Event, rangeStart, rangeEnd time.Time) []domain.Occurrence {
	starts, err := expandRule(master.RecurrenceRule, master.StartTime, rangeStart, rangeEnd)
	if err != nil {
		log.Printf("recurrence: event %d has unusable rule, treating as single: %v", master.ID, err)
		if master.Overlaps(rangeStart, rangeEnd) {
			return []domain.Occurrence{concreteOccurrence(master)}
		}
		return nil
	}

	duration := master.EndTime.Sub(master.StartTime)

	var out []domain.Occurrence
	for _, start := range starts {
		if overrideAccountsFor(overrides, start) {
			// The override row already stands in for this occurrence.
			continue
		}
		out = append(out, domain.Occurrence{
			ID:          domain.OccurrenceID(master.ID, start),
			EventID:     master.ID,
			CalendarID:  master.CalendarID,
			Title:       master.Title,
			Description: master.Description,
			Location:    master.Location,
			StartTime:   start,
			EndTime:     start.Add(duration),
			AllDay:      master.AllDay,
			Status:      master.Status,
			Recurring:   true,
		})
	}
	return out
}

// overrideAccountsFor matches at day granularity so an override that moved
// the time-of-day still suppresses the synthetic occurrence for its day.
func overrideAccountsFor(overrides []*domain.Event, start time.Time) bool {
	for _, ov := range overrides {
		if ov.OriginalStartTime != nil && sameDay(*ov.OriginalStartTime, start) {
			return true
		}
		// Some sources deliver instances without an explicit original
		// start; fall back to the instance's own day.
		if sameDay(ov.StartTime, start) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func concreteOccurrence(ev *domain.Event) domain.Occurrence {
	return domain.Occurrence{
		ID:          strconv.FormatInt(ev.ID, 10),
		EventID:     ev.ID,
		CalendarID:  ev.CalendarID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		AllDay:      ev.AllDay,
		Status:      ev.Status,
	}
}

// dedupe drops later occurrences that repeat an earlier one's calendar,
// normalized title and exact start. Repeated or overlapping sync runs can
// leave duplicate rows that per-external-id identity did not catch.
func dedupe(occs []domain.Occurrence) []domain.Occurrence {
	type dedupKey struct {
		calendarID int64
		title      string
		startMs    int64
	}

	seen := make(map[dedupKey]struct{}, len(occs))
	out := make([]domain.Occurrence, 0, len(occs))
	for _, occ := range occs {
		k := dedupKey{
			calendarID: occ.CalendarID,
			title:      strings.ToLower(strings.TrimSpace(occ.Title)),
			startMs:    occ.StartTime.UnixMilli(),
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, occ)
	}
	return out
}
