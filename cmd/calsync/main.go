// calsync is a one-shot CLI around the sync and query services: manage
// calendar subscriptions, run a sync, and print a window's occurrences.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tyler-danielson/openframe-sub008/config"
	"github.com/tyler-danielson/openframe-sub008/internal/clients/caldav"
	"github.com/tyler-danielson/openframe-sub008/internal/clients/icsfeed"
	"github.com/tyler-danielson/openframe-sub008/internal/domain"
	"github.com/tyler-danielson/openframe-sub008/internal/service"
	"github.com/tyler-danielson/openframe-sub008/internal/storage"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	defer store.Close()

	feed := icsfeed.NewClient(cfg.HTTPTimeout)
	var caldavClient *caldav.Client
	if cfg.HasCalDAV() {
		caldavClient = caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.HTTPTimeout)
	}
	syncSvc := service.NewSyncService(store, feed, caldavClient)
	eventSvc := service.NewEventService(store, cfg.Timezone)

	ctx := context.Background()

	switch os.Args[1] {
	case "add":
		cmdAdd(store, os.Args[2:])
	case "list":
		cmdList(store)
	case "remove":
		cmdRemove(store, os.Args[2:])
	case "sync":
		cmdSync(ctx, syncSvc, store, os.Args[2:])
	case "events":
		cmdEvents(eventSvc, cfg.Timezone, os.Args[2:])
	case "discover":
		cmdDiscover(ctx, caldavClient)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: calsync <command> [flags]

commands:
  add      -name NAME -url URL [-source ics|caldav] [-color HEX]
  list     list subscribed calendars
  remove   -calendar ID
  sync     [-calendar ID]  sync one calendar, or all when omitted
  events   -calendar ID [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  discover list remote CalDAV collections`)
}

func cmdAdd(store *storage.Storage, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "calendar name")
	url := fs.String("url", "", "feed URL or CalDAV collection path")
	source := fs.String("source", "ics", "source kind: ics or caldav")
	color := fs.String("color", "", "display color")
	fs.Parse(args)

	if *name == "" || *url == "" {
		log.Fatal("add: -name and -url are required")
	}
	kind := domain.SourceKind(*source)
	if kind != domain.SourceICS && kind != domain.SourceCalDAV {
		log.Fatalf("add: unknown source kind %q", *source)
	}

	cal := &domain.Calendar{Name: *name, SourceURL: *url, Source: kind, Color: *color}
	if err := store.CreateCalendar(cal); err != nil {
		log.Fatalf("add: %v", err)
	}
	fmt.Printf("added calendar %d (%s)\n", cal.ID, cal.Name)
}

func cmdList(store *storage.Storage) {
	calendars, err := store.ListCalendars()
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	for _, c := range calendars {
		synced := "never"
		if c.SyncedAt != nil {
			synced = c.SyncedAt.Format(time.RFC3339)
		}
		fmt.Printf("%d\t%s\t%s\t%s\tsynced=%s\n", c.ID, c.Name, c.Source, c.SourceURL, synced)
	}
}

func cmdRemove(store *storage.Storage, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	calendarID := fs.Int64("calendar", 0, "calendar id")
	fs.Parse(args)

	if *calendarID == 0 {
		log.Fatal("remove: -calendar is required")
	}
	if err := store.DeleteCalendar(*calendarID); err != nil {
		log.Fatalf("remove: %v", err)
	}
	fmt.Printf("removed calendar %d\n", *calendarID)
}

func cmdSync(ctx context.Context, syncSvc *service.SyncService, store *storage.Storage, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	calendarID := fs.Int64("calendar", 0, "calendar id (all when omitted)")
	fs.Parse(args)

	if *calendarID == 0 {
		syncSvc.SyncAll(ctx)
		return
	}

	result, err := syncSvc.SyncCalendar(ctx, *calendarID)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	fmt.Printf("added=%d updated=%d deleted=%d\n", result.Added, result.Updated, result.Deleted)
	for _, e := range result.Errors {
		fmt.Printf("error: %s\n", e)
	}
}

func cmdEvents(eventSvc *service.EventService, tz *time.Location, args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	calendarID := fs.Int64("calendar", 0, "calendar id")
	fromStr := fs.String("from", "", "window start, YYYY-MM-DD (default today)")
	toStr := fs.String("to", "", "window end, YYYY-MM-DD (default from+7d)")
	fs.Parse(args)

	if *calendarID == 0 {
		log.Fatal("events: -calendar is required")
	}

	now := time.Now().In(tz)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
	if *fromStr != "" {
		t, err := time.ParseInLocation("2006-01-02", *fromStr, tz)
		if err != nil {
			log.Fatalf("events: bad -from: %v", err)
		}
		from = t
	}
	to := from.Add(7 * 24 * time.Hour)
	if *toStr != "" {
		t, err := time.ParseInLocation("2006-01-02", *toStr, tz)
		if err != nil {
			log.Fatalf("events: bad -to: %v", err)
		}
		to = t
	}

	occurrences, err := eventSvc.ListRange(*calendarID, from, to)
	if err != nil {
		log.Fatalf("events: %v", err)
	}

	for _, occ := range occurrences {
		when := occ.StartTime.In(tz).Format("2006-01-02 15:04")
		if occ.AllDay {
			when = occ.StartTime.Format("2006-01-02") + " (all day)"
		}
		marker := ""
		if occ.Recurring {
			marker = " ↻"
		}
		fmt.Printf("%s\t%s%s\n", when, occ.Title, marker)
	}
}

func cmdDiscover(ctx context.Context, client *caldav.Client) {
	if client == nil || !client.IsConfigured() {
		log.Fatal("discover: CalDAV is not configured (set CALDAV_URL, CALDAV_USERNAME, CALDAV_PASSWORD)")
	}
	calendars, err := client.DiscoverCalendars(ctx)
	if err != nil {
		log.Fatalf("discover: %v", err)
	}
	for _, c := range calendars {
		fmt.Printf("%s\t%s\n", c.Path, c.DisplayName)
	}
}
