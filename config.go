package cascade

import "time"

// Config holds engine-wide defaults. Per-definition and per-step values
// override these where the workflow types allow it.
type Config struct {
	// DefaultStepTimeout bounds a single step handler call when the
	// step declares no timeout of its own. Zero means no step deadline.
	DefaultStepTimeout time.Duration

	// DefaultRunTimeout bounds a whole execution when the definition
	// declares no run timeout. Zero means no run deadline.
	DefaultRunTimeout time.Duration

	// MaxConcurrentExecutions caps how many executions ExecuteBatch
	// runs at once. Single Execute calls are bounded by the admission
	// gate when one is configured.
	MaxConcurrentExecutions int

	// ShutdownTimeout is the maximum time Stop waits for background
	// loops (DLQ sweeper, scheduler) to finish.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultStepTimeout:      30 * time.Second,
		DefaultRunTimeout:       10 * time.Minute,
		MaxConcurrentExecutions: 10,
		ShutdownTimeout:         30 * time.Second,
	}
}
