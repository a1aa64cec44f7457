package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for store driver %q", c.Store.Driver)
		}
	case StoreDriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri is required for store driver %q", c.Store.Driver)
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo.database is required for store driver %q", c.Store.Driver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("store.driver must be one of postgres, mongo, memory (got %q)", c.Store.Driver)
	}

	if err := c.Reconcile.validate(); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if err := c.Streak.validate(); err != nil {
		return fmt.Errorf("streak: %w", err)
	}

	if c.Report.Redis.HistorySize < 0 {
		return fmt.Errorf("report.redis.history_size must be >= 0 (got %d)", c.Report.Redis.HistorySize)
	}

	return nil
}

func (r *ReconcileConfig) validate() error {
	if r.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0 (got %d)", r.Concurrency)
	}
	if r.PageSize <= 0 || r.PageSize > 1000 {
		return fmt.Errorf("page_size must be in [1, 1000] (got %d)", r.PageSize)
	}
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be > 0 (got %d)", r.MaxAttempts)
	}
	if r.MaxDuration < 0 {
		return fmt.Errorf("max_duration must be >= 0 (got %v)", r.MaxDuration)
	}
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be > 0 (got %v)", r.InitialBackoff)
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", r.MaxBackoff, r.InitialBackoff)
	}
	return nil
}

func (s *StreakConfig) validate() error {
	if s.GraceCutoff < 0 || s.GraceCutoff > 24*time.Hour {
		return fmt.Errorf("grace_cutoff must be in [0, 24h] (got %v)", s.GraceCutoff)
	}

	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	s.Location = loc

	return nil
}
