package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyler-danielson/openframe-sub008/internal/clients/icsfeed"
	"github.com/tyler-danielson/openframe-sub008/internal/domain"
	"github.com/tyler-danielson/openframe-sub008/internal/storage"
)

// feedServer serves a swappable ICS body so tests can simulate a feed
// changing between sync runs.
type feedServer struct {
	mu     sync.Mutex
	body   string
	status int

	*httptest.Server
}

func newFeedServer(t *testing.T, body string) *feedServer {
	t.Helper()
	fs := &feedServer{body: body, status: http.StatusOK}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		body, status := fs.body, fs.status
		fs.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(fs.Server.Close)
	return fs
}

func (fs *feedServer) serve(body string, status int) {
	fs.mu.Lock()
	fs.body = body
	fs.status = status
	fs.mu.Unlock()
}

const feedHeader = `BEGIN:VCALENDAR
PRODID:-//calsync//NONSGML v1.0//EN
VERSION:2.0
`

const feedTwoEvents = feedHeader + `BEGIN:VEVENT
UID:ev-1
SUMMARY:Breakfast
DTSTART:20240110T080000Z
DTEND:20240110T090000Z
END:VEVENT
BEGIN:VEVENT
UID:ev-2
SUMMARY:Lunch
DTSTART:20240110T120000Z
DTEND:20240110T130000Z
END:VEVENT
END:VCALENDAR`

const feedLunchMoved = feedHeader + `BEGIN:VEVENT
UID:ev-1
SUMMARY:Breakfast
DTSTART:20240110T080000Z
DTEND:20240110T090000Z
END:VEVENT
BEGIN:VEVENT
UID:ev-2
SUMMARY:Lunch
DTSTART:20240110T123000Z
DTEND:20240110T133000Z
END:VEVENT
END:VCALENDAR`

const feedOnlyLunch = feedHeader + `BEGIN:VEVENT
UID:ev-2
SUMMARY:Lunch
DTSTART:20240110T123000Z
DTEND:20240110T133000Z
END:VEVENT
END:VCALENDAR`

const feedRecurring = feedHeader + `BEGIN:VEVENT
UID:weekly-1
SUMMARY:Standup
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
SUMMARY:Standup (moved)
DTSTART:20240108T140000Z
DTEND:20240108T150000Z
RECURRENCE-ID:20240108T090000Z
END:VEVENT
END:VCALENDAR`

func newSyncFixture(t *testing.T, body string) (*SyncService, *storage.Storage, *feedServer, int64) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := newFeedServer(t, body)

	cal := &domain.Calendar{Name: "Test", Source: domain.SourceICS, SourceURL: srv.URL}
	require.NoError(t, store.CreateCalendar(cal))

	svc := NewSyncService(store, icsfeed.NewClient(5*time.Second), nil)
	return svc, store, srv, cal.ID
}

func TestSyncCalendar_AddsEvents(t *testing.T) {
	svc, store, _, calID := newSyncFixture(t, feedTwoEvents)

	result, err := svc.SyncCalendar(context.Background(), calID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Deleted)
	assert.Empty(t, result.Errors)

	events, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotNil(t, events[0].SyncedAt)

	cal, err := store.GetCalendar(calID)
	require.NoError(t, err)
	assert.NotNil(t, cal.SyncedAt)
}

func TestSyncCalendar_Idempotent(t *testing.T) {
	svc, store, _, calID := newSyncFixture(t, feedTwoEvents)
	ctx := context.Background()

	_, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)

	before, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)

	result, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Deleted)

	after, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range after {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestSyncCalendar_UpdatesChangedInPlace(t *testing.T) {
	svc, store, srv, calID := newSyncFixture(t, feedTwoEvents)
	ctx := context.Background()

	_, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)

	var lunchID int64
	events, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	for _, e := range events {
		if e.ExternalID == "ev-2" {
			lunchID = e.ID
		}
	}
	require.NotZero(t, lunchID)

	srv.serve(feedLunchMoved, http.StatusOK)

	result, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Deleted)

	events, err = store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	for _, e := range events {
		if e.ExternalID == "ev-2" {
			assert.Equal(t, lunchID, e.ID)
			assert.True(t, e.StartTime.Equal(time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)))
		}
	}
}

func TestSyncCalendar_DeletesMissing(t *testing.T) {
	svc, store, srv, calID := newSyncFixture(t, feedLunchMoved)
	ctx := context.Background()

	_, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)

	srv.serve(feedOnlyLunch, http.StatusOK)

	result, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Deleted)

	events, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-2", events[0].ExternalID)
}

func TestSyncCalendar_FetchFailureLeavesStoreIntact(t *testing.T) {
	svc, store, srv, calID := newSyncFixture(t, feedTwoEvents)
	ctx := context.Background()

	_, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)

	srv.serve("gone", http.StatusInternalServerError)

	_, err = svc.SyncCalendar(ctx, calID)
	require.Error(t, err)

	var fetchErr *icsfeed.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)

	// Previous snapshot survives untouched.
	events, err := store.ListEventsByCalendar(calID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSyncCalendar_UnknownCalendar(t *testing.T) {
	svc, _, _, _ := newSyncFixture(t, feedTwoEvents)

	_, err := svc.SyncCalendar(context.Background(), 9999)
	assert.Error(t, err)
}

func TestSyncThenExpand_RecurringWithOverride(t *testing.T) {
	svc, store, _, calID := newSyncFixture(t, feedRecurring)
	ctx := context.Background()

	result, err := svc.SyncCalendar(ctx, calID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Added) // master + override instance

	eventSvc := NewEventService(store, time.UTC)
	occs, err := eventSvc.ListRange(calID,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, occs, 3)

	assert.True(t, occs[0].StartTime.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, occs[0].Recurring)
	assert.True(t, occs[1].StartTime.Equal(time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)))
	assert.False(t, occs[1].Recurring)
	assert.Equal(t, "Standup (moved)", occs[1].Title)
	assert.True(t, occs[2].StartTime.Equal(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)))
	assert.True(t, occs[2].Recurring)
}
