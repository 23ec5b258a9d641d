package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabasePath   string
	Timezone       *time.Location
	SyncSchedule   string // cron spec for periodic sync
	HTTPTimeout    time.Duration
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/calsync.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	syncSchedule := os.Getenv("SYNC_SCHEDULE")
	if syncSchedule == "" {
		syncSchedule = "*/15 * * * *"
	}

	httpTimeout := 30 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be a positive number")
		}
		httpTimeout = time.Duration(secs) * time.Second
	}

	return &Config{
		DatabasePath:   dbPath,
		Timezone:       tz,
		SyncSchedule:   syncSchedule,
		HTTPTimeout:    httpTimeout,
		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
	}, nil
}

// HasCalDAV returns true if CalDAV credentials are configured
func (c *Config) HasCalDAV() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != ""
}
