package service

import (
	"fmt"
	"time"

	"github.com/tyler-danielson/openframe-sub008/internal/domain"
	"github.com/tyler-danielson/openframe-sub008/internal/recurrence"
	"github.com/tyler-danielson/openframe-sub008/internal/storage"
)

// EventService answers "what occurs in this window?" over persisted events.
// It is read-only; the sync service owns all writes.
type EventService struct {
	storage  *storage.Storage
	timezone *time.Location
}

// NewEventService creates a new event service
func NewEventService(s *storage.Storage, tz *time.Location) *EventService {
	if tz == nil {
		tz = time.UTC
	}
	return &EventService{
		storage:  s,
		timezone: tz,
	}
}

// ListRange expands one calendar's events into the occurrences inside the
// closed window [from, to].
func (s *EventService) ListRange(calendarID int64, from, to time.Time) ([]domain.Occurrence, error) {
	events, err := s.storage.ListEventsByCalendar(calendarID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return recurrence.Expand(events, from, to)
}

// ListToday returns today's occurrences in the service timezone.
func (s *EventService) ListToday(calendarID int64) ([]domain.Occurrence, error) {
	now := time.Now().In(s.timezone)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)
	return s.ListRange(calendarID, start, start.Add(24*time.Hour))
}

// ListWeek returns the coming seven days' occurrences.
func (s *EventService) ListWeek(calendarID int64) ([]domain.Occurrence, error) {
	now := time.Now().In(s.timezone)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)
	return s.ListRange(calendarID, start, start.Add(7*24*time.Hour))
}
