package config

import "time"

// Stage retry limits
const (
	FetchMaxAttempts   = 3
	FetchBackoffCap    = 60 * time.Second
	EnrichMaxAttempts  = 5
	EnrichBackoffCap   = 120 * time.Second
	DeliverMaxAttempts = 3
	DeliverBackoffCap  = 60 * time.Second

	// BackoffBase is the first retry delay before doubling
	BackoffBase = time.Second
)

// Run limits
const (
	// RunTimeout is the hard ceiling for a whole run, retries included
	RunTimeout = time.Hour

	// AttemptTimeout bounds a single stage attempt
	AttemptTimeout = 5 * time.Minute

	// DefaultWorkers is the size of the default general-purpose worker group
	DefaultWorkers = 3
)

// News source defaults
const (
	NewsCatcherURL       = "https://v3-api.newscatcherapi.com/api/search"
	NewsCatcherRateLimit = 1.0
	NewsCatcherPageSize  = 100
	DefaultRSSCount      = 30
)

const (
	DefaultPort      = "8080"
	DefaultTimezone  = "UTC"
	DefaultKeyPrefix = "newsdesk"
)
