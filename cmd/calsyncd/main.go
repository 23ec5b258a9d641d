package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tyler-danielson/openframe-sub008/config"
	"github.com/tyler-danielson/openframe-sub008/internal/clients/caldav"
	"github.com/tyler-danielson/openframe-sub008/internal/clients/icsfeed"
	"github.com/tyler-danielson/openframe-sub008/internal/scheduler"
	"github.com/tyler-danielson/openframe-sub008/internal/service"
	"github.com/tyler-danielson/openframe-sub008/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	feed := icsfeed.NewClient(cfg.HTTPTimeout)

	var caldavClient *caldav.Client
	if cfg.HasCalDAV() {
		caldavClient = caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.HTTPTimeout)
	}

	syncSvc := service.NewSyncService(store, feed, caldavClient)

	sched := scheduler.New(cfg, syncSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	// Sync once on startup so a fresh database has data before the first tick.
	go syncSvc.SyncAll(ctx)

	log.Println("calsyncd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	log.Println("calsyncd stopped")
}
