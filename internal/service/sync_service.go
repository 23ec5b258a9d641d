package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tyler-danielson/openframe-sub008/internal/clients/caldav"
	"github.com/tyler-danielson/openframe-sub008/internal/clients/icsfeed"
	"github.com/tyler-danielson/openframe-sub008/internal/domain"
	"github.com/tyler-danielson/openframe-sub008/internal/ics"
	"github.com/tyler-danielson/openframe-sub008/internal/storage"
)

// Window for the REPORT issued against CalDAV sources: one month back,
// six months ahead of the sync instant.
const (
	caldavPastMonths   = 1
	caldavFutureMonths = 6
)

// SyncService reconciles fetched source snapshots against the persisted
// event set. It is the only component that mutates the event store.
type SyncService struct {
	storage      *storage.Storage
	feed         *icsfeed.Client
	caldavClient *caldav.Client // nil when CalDAV is not configured

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-calendar, at most one sync in flight
}

// NewSyncService creates a new sync service. caldavClient may be nil.
func NewSyncService(s *storage.Storage, feed *icsfeed.Client, caldavClient *caldav.Client) *SyncService {
	return &SyncService{
		storage:      s,
		feed:         feed,
		caldavClient: caldavClient,
		locks:        make(map[int64]*sync.Mutex),
	}
}

// SyncResult contains sync operation results
type SyncResult struct {
	Added   int
	Updated int
	Deleted int
	Errors  []string
}

// SyncCalendar fetches the calendar's source and reconciles it against the
// persisted rows: matching external ids are updated in place preserving the
// local id, unknown ones are inserted, and rows absent from the snapshot
// are deleted. A fetch or parse failure aborts before any write. Re-running
// with an unchanged snapshot is a no-op. Concurrent calls for the same
// calendar are serialized.
func (s *SyncService) SyncCalendar(ctx context.Context, calendarID int64) (*SyncResult, error) {
	lock := s.lockFor(calendarID)
	lock.Lock()
	defer lock.Unlock()

	cal, err := s.storage.GetCalendar(calendarID)
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	if cal == nil {
		return nil, fmt.Errorf("calendar %d not found", calendarID)
	}

	raw, err := s.fetchSnapshot(ctx, cal)
	if err != nil {
		return nil, err
	}

	local, err := s.storage.ListEventsByCalendar(calendarID)
	if err != nil {
		return nil, fmt.Errorf("list local events: %w", err)
	}

	localByExternalID := make(map[string]*domain.Event, len(local))
	for _, e := range local {
		localByExternalID[e.ExternalID] = e
	}

	result := &SyncResult{}
	now := time.Now()

	seen := make([]string, 0, len(raw))
	seenSet := make(map[string]bool, len(raw))

	for _, re := range raw {
		if seenSet[re.ExternalID] {
			continue
		}
		seenSet[re.ExternalID] = true
		seen = append(seen, re.ExternalID)

		existing, ok := localByExternalID[re.ExternalID]
		if ok {
			if !eventChanged(existing, &re) {
				continue
			}
			applyRawEvent(existing, &re)
			existing.SyncedAt = &now
			if err := s.storage.UpdateEvent(existing); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("update %s: %v", re.ExternalID, err))
			} else {
				result.Updated++
			}
			continue
		}

		event := &domain.Event{
			CalendarID: calendarID,
			ExternalID: re.ExternalID,
			SyncedAt:   &now,
		}
		applyRawEvent(event, &re)
		if err := s.storage.CreateEvent(event); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create %s: %v", re.ExternalID, err))
		} else {
			result.Added++
		}
	}

	deleted, err := s.storage.DeleteEventsMissing(calendarID, seen)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("delete missing: %v", err))
	} else {
		result.Deleted = int(deleted)
	}

	if err := s.storage.UpdateCalendarSyncedAt(calendarID, now); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("mark synced: %v", err))
	}

	return result, nil
}

// SyncAll syncs every calendar. A failing calendar is logged and does not
// block the others.
func (s *SyncService) SyncAll(ctx context.Context) {
	calendars, err := s.storage.ListCalendars()
	if err != nil {
		log.Printf("sync: list calendars: %v", err)
		return
	}

	for _, cal := range calendars {
		result, err := s.SyncCalendar(ctx, cal.ID)
		if err != nil {
			log.Printf("sync: calendar %d (%s): %v", cal.ID, cal.Name, err)
			continue
		}
		log.Printf("sync: calendar %d (%s): added=%d updated=%d deleted=%d errors=%d",
			cal.ID, cal.Name, result.Added, result.Updated, result.Deleted, len(result.Errors))
	}
}

func (s *SyncService) fetchSnapshot(ctx context.Context, cal *domain.Calendar) ([]ics.RawEvent, error) {
	switch cal.Source {
	case domain.SourceICS:
		body, err := s.feed.Fetch(ctx, cal.SourceURL)
		if err != nil {
			return nil, err
		}
		raw, err := ics.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
		return raw, nil

	case domain.SourceCalDAV:
		if s.caldavClient == nil || !s.caldavClient.IsConfigured() {
			return nil, fmt.Errorf("CalDAV not configured")
		}
		from := time.Now().AddDate(0, -caldavPastMonths, 0)
		to := time.Now().AddDate(0, caldavFutureMonths, 0)
		return s.caldavClient.GetEvents(ctx, cal.SourceURL, from, to)

	default:
		return nil, fmt.Errorf("unsupported source kind %q", cal.Source)
	}
}

func (s *SyncService) lockFor(calendarID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[calendarID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[calendarID] = l
	}
	return l
}

// applyRawEvent copies a snapshot's mutable fields onto a local row.
func applyRawEvent(e *domain.Event, re *ics.RawEvent) {
	e.Title = re.Title
	e.Description = re.Description
	e.Location = re.Location
	e.StartTime = re.Start
	e.EndTime = re.End
	e.AllDay = re.AllDay
	e.Status = re.Status
	e.RecurrenceRule = re.RecurrenceRule
	e.RecurringEventID = re.RecurringEventID
	e.OriginalStartTime = re.OriginalStartTime
}

// eventChanged checks if a fetched event differs from the local row
func eventChanged(local *domain.Event, re *ics.RawEvent) bool {
	if local.Title != re.Title {
		return true
	}
	if local.Description != re.Description {
		return true
	}
	if local.Location != re.Location {
		return true
	}
	if !local.StartTime.Equal(re.Start) {
		return true
	}
	if !local.EndTime.Equal(re.End) {
		return true
	}
	if local.AllDay != re.AllDay {
		return true
	}
	if local.Status != re.Status {
		return true
	}
	if local.RecurrenceRule != re.RecurrenceRule {
		return true
	}
	if local.RecurringEventID != re.RecurringEventID {
		return true
	}
	if !timePtrEqual(local.OriginalStartTime, re.OriginalStartTime) {
		return true
	}
	return false
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
