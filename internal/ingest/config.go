package ingest

import "time"

// Config holds all ingestion configuration, injected from main.
type Config struct {
	DriveBaseURL     string        // override for tests; default https://drive.google.com
	MaxFileBytes     int64         // reject downloads larger than this
	FetchTimeout     time.Duration // per-request deadline for probes/downloads
	DriveValidateCap int           // how many drive candidates get an eager existence probe
	DriveProbeRPS    float64       // rate limit for drive validation probes
	SignTTL          time.Duration // signed storage URL lifetime
	PollInterval     time.Duration // transcription completion poll interval
	PollTimeout      time.Duration // hard cap on the completion poll
	TriggerDelay     time.Duration // fixed wait when no file record id is available
}

var cfg Config

// Init initializes the ingest engine with the given configuration.
func Init(c Config) {
	if c.DriveBaseURL == "" {
		c.DriveBaseURL = "https://drive.google.com"
	}
	cfg = c
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DriveBaseURL:     "https://drive.google.com",
		MaxFileBytes:     100 << 20,
		FetchTimeout:     30 * time.Second,
		DriveValidateCap: 20,
		DriveProbeRPS:    4,
		SignTTL:          time.Hour,
		PollInterval:     3 * time.Second,
		PollTimeout:      600 * time.Second,
		TriggerDelay:     5 * time.Second,
	}
}
