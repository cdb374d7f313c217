package scheduler

import "time"

// Config holds the scheduling knobs. It is passed explicitly into the engines
// at construction rather than read from process-wide settings.
type Config struct {
	// MaxRunTime is the lease duration: a lease older than this is treated as
	// abandoned and the task becomes lockable again.
	MaxRunTime time.Duration

	// MaxAttempts is the retry budget after which a failing task is
	// terminally archived.
	MaxAttempts int
}

// DefaultConfig returns the stock configuration: one hour leases and 25
// attempts.
func DefaultConfig() Config {
	return Config{
		MaxRunTime:  time.Hour,
		MaxAttempts: 25,
	}
}
