package ingest

import (
	"testing"
	"time"
)

// initTest installs a config tuned for fast tests. Tests share the package
// config, so none of them run in parallel.
func initTest(t *testing.T, mutate func(*Config)) {
	t.Helper()
	c := DefaultConfig()
	c.FetchTimeout = 5 * time.Second
	c.DriveProbeRPS = 1000
	c.PollInterval = 2 * time.Millisecond
	c.PollTimeout = 200 * time.Millisecond
	c.TriggerDelay = time.Millisecond
	if mutate != nil {
		mutate(&c)
	}
	Init(c)
	t.Cleanup(func() { Init(DefaultConfig()) })
}
