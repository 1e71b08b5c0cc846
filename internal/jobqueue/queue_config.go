/*
Package jobqueue configuration - tunable parameters for the River job queue.

Conversation sync jobs are queued by the messaging event callback and retried
by River on failure. Re-running a failed pass is safe: the sync cursor only
advances on full success, so a retry re-fetches the same or an overlapping
message window. Attachment mirroring in that overlap is at-least-once.
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// Config holds all configurable parameters for the job queue
type Config struct {
	// MaxWorkers is the number of concurrent workers processing sync jobs.
	// Each worker holds one database connection for the duration of a pass.
	MaxWorkers int

	// MaxRetries is the maximum retry attempts per job
	MaxRetries int

	// JobTimeout is the maximum time a single sync pass can run
	JobTimeout time.Duration
}

// DefaultConfig returns the default queue configuration
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers: 5,
		MaxRetries: 10,
		JobTimeout: 2 * time.Minute,
	}
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *Config) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
