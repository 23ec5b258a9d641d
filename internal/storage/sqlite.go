package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyler-danielson/openframe-sub008/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calendars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			color TEXT DEFAULT '',
			source TEXT NOT NULL DEFAULT 'ics',
			source_url TEXT NOT NULL,
			synced_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			calendar_id INTEGER NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			all_day INTEGER DEFAULT 0,
			status TEXT DEFAULT 'confirmed',
			recurrence_rule TEXT DEFAULT '',
			recurring_event_id TEXT DEFAULT '',
			original_start_time DATETIME,
			synced_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (calendar_id, external_id),
			FOREIGN KEY (calendar_id) REFERENCES calendars(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_recurring ON events(recurring_event_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Calendars ===

func (s *Storage) CreateCalendar(c *domain.Calendar) error {
	if c.Source == "" {
		c.Source = domain.SourceICS
	}
	res, err := s.db.Exec(
		`INSERT INTO calendars (name, color, source, source_url) VALUES (?, ?, ?, ?)`,
		c.Name, c.Color, c.Source, c.SourceURL,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	c.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetCalendar(id int64) (*domain.Calendar, error) {
	c := &domain.Calendar{}
	err := s.db.QueryRow(
		`SELECT id, name, color, source, source_url, synced_at, created_at FROM calendars WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Color, &c.Source, &c.SourceURL, &c.SyncedAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *Storage) ListCalendars() ([]*domain.Calendar, error) {
	rows, err := s.db.Query(
		`SELECT id, name, color, source, source_url, synced_at, created_at FROM calendars ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calendars []*domain.Calendar
	for rows.Next() {
		c := &domain.Calendar{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Source, &c.SourceURL, &c.SyncedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		calendars = append(calendars, c)
	}
	return calendars, rows.Err()
}

// DeleteCalendar removes a calendar; its events cascade-delete with it.
func (s *Storage) DeleteCalendar(id int64) error {
	_, err := s.db.Exec(`DELETE FROM calendars WHERE id = ?`, id)
	return err
}

func (s *Storage) UpdateCalendarSyncedAt(id int64, syncedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE calendars SET synced_at = ? WHERE id = ?`, syncedAt, id)
	return err
}

// === Events ===

const eventColumns = `id, calendar_id, external_id, title, description, location,
	start_time, end_time, all_day, status, recurrence_rule, recurring_event_id,
	original_start_time, synced_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(
		&e.ID, &e.CalendarID, &e.ExternalID, &e.Title, &e.Description, &e.Location,
		&e.StartTime, &e.EndTime, &e.AllDay, &e.Status, &e.RecurrenceRule, &e.RecurringEventID,
		&e.OriginalStartTime, &e.SyncedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func (s *Storage) CreateEvent(e *domain.Event) error {
	now := time.Now()
	if e.Status == "" {
		e.Status = domain.StatusConfirmed
	}
	res, err := s.db.Exec(
		`INSERT INTO events (calendar_id, external_id, title, description, location,
			start_time, end_time, all_day, status, recurrence_rule, recurring_event_id,
			original_start_time, synced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CalendarID, e.ExternalID, e.Title, e.Description, e.Location,
		e.StartTime, e.EndTime, e.AllDay, e.Status, e.RecurrenceRule, e.RecurringEventID,
		e.OriginalStartTime, e.SyncedAt, now, now,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// UpdateEvent rewrites an event's mutable fields in place, preserving its id.
func (s *Storage) UpdateEvent(e *domain.Event) error {
	e.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, location = ?, start_time = ?,
			end_time = ?, all_day = ?, status = ?, recurrence_rule = ?,
			recurring_event_id = ?, original_start_time = ?, synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.Location, e.StartTime,
		e.EndTime, e.AllDay, e.Status, e.RecurrenceRule,
		e.RecurringEventID, e.OriginalStartTime, e.SyncedAt, e.UpdatedAt, e.ID,
	)
	return err
}

func (s *Storage) GetEvent(id int64) (*domain.Event, error) {
	e, err := scanEvent(s.db.QueryRow(
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Storage) DeleteEvent(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	return err
}

// ListEventsByCalendar returns every event of one calendar, masters and
// overrides included, ordered by start time.
func (s *Storage) ListEventsByCalendar(calendarID int64) ([]*domain.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventColumns+` FROM events WHERE calendar_id = ? ORDER BY start_time ASC, id ASC`,
		calendarID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEventsMissing removes a calendar's events whose external id is not
// in seen. Used after a sync run to drop source-side deletions.
func (s *Storage) DeleteEventsMissing(calendarID int64, seen []string) (int64, error) {
	if len(seen) == 0 {
		res, err := s.db.Exec(`DELETE FROM events WHERE calendar_id = ?`, calendarID)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		return n, nil
	}

	placeholders := strings.Repeat("?,", len(seen))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(seen)+1)
	args = append(args, calendarID)
	for _, id := range seen {
		args = append(args, id)
	}

	res, err := s.db.Exec(
		`DELETE FROM events WHERE calendar_id = ? AND external_id NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
