package reconcile

import "time"

// Options tunes a Driver.
type Options struct {
	// Concurrency caps in-flight entities per run.
	Concurrency int
	// PageSize is the number of documents fetched per query page.
	PageSize int
	// MaxAttempts bounds tries per store call on transient errors.
	MaxAttempts int
	// MaxDuration stops dispatching new entities once elapsed. Zero disables the budget.
	MaxDuration time.Duration
	// InitialBackoff and MaxBackoff shape the exponential retry delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// DryRun evaluates predicates but skips writes.
	DryRun bool
}

const (
	defaultConcurrency    = 16
	defaultPageSize       = 200
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = defaultMaxBackoff
		if o.MaxBackoff < o.InitialBackoff {
			o.MaxBackoff = o.InitialBackoff
		}
	}
	return o
}
