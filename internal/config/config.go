package config

import (
	"time"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config is the root application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Streak    StreakConfig    `yaml:"streak"`
	Report    ReportConfig    `yaml:"report"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `yaml:"uri"             env:"MONGO_URI"`
	Database       string        `yaml:"database"        env:"MONGO_DATABASE"        env-default:"questline"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"   env:"MONGO_MAX_POOL_SIZE"   env-default:"50"`
}

// ReconcileConfig tunes the reconciliation driver.
type ReconcileConfig struct {
	Concurrency    int           `yaml:"concurrency"     env:"RECONCILE_CONCURRENCY"     env-default:"16"`
	PageSize       int           `yaml:"page_size"       env:"RECONCILE_PAGE_SIZE"       env-default:"200"`
	MaxAttempts    int           `yaml:"max_attempts"    env:"RECONCILE_MAX_ATTEMPTS"    env-default:"3"`
	MaxDuration    time.Duration `yaml:"max_duration"    env:"RECONCILE_MAX_DURATION"    env-default:"8m"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"RECONCILE_INITIAL_BACKOFF" env-default:"200ms"`
	MaxBackoff     time.Duration `yaml:"max_backoff"     env:"RECONCILE_MAX_BACKOFF"     env-default:"2s"`
	DryRun         bool          `yaml:"dry_run"         env:"RECONCILE_DRY_RUN"         env-default:"false"`
	// FailOnEntityErrors makes a run with recorded per-entity failures exit non-zero.
	FailOnEntityErrors bool `yaml:"fail_on_entity_errors" env:"RECONCILE_FAIL_ON_ENTITY_ERRORS" env-default:"false"`
}

// StreakConfig holds the streak continuation rule.
type StreakConfig struct {
	Timezone        string        `yaml:"timezone"          env:"STREAK_TIMEZONE"          env-default:"UTC"`
	GraceCutoff     time.Duration `yaml:"grace_cutoff"      env:"STREAK_GRACE_CUTOFF"      env-default:"12h"`
	PerUserTimezone bool          `yaml:"per_user_timezone" env:"STREAK_PER_USER_TIMEZONE" env-default:"false"`

	// Location is resolved from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// ReportConfig configures where run summaries are published. Every sink is
// optional; an empty address disables it.
type ReportConfig struct {
	Redis       RedisConfig       `yaml:"redis"`
	Pushgateway PushgatewayConfig `yaml:"pushgateway"`
	NATS        NATSConfig        `yaml:"nats"`
}

// RedisConfig holds the last-run summary store settings.
type RedisConfig struct {
	Addr        string        `yaml:"addr"         env:"REPORT_REDIS_ADDR"`
	Password    string        `yaml:"password"     env:"REPORT_REDIS_PASSWORD"`
	DB          int           `yaml:"db"           env:"REPORT_REDIS_DB"           env-default:"0"`
	KeyPrefix   string        `yaml:"key_prefix"   env:"REPORT_REDIS_KEY_PREFIX"   env-default:"reconcile"`
	HistorySize int64         `yaml:"history_size" env:"REPORT_REDIS_HISTORY_SIZE" env-default:"50"`
	TTL         time.Duration `yaml:"ttl"          env:"REPORT_REDIS_TTL"          env-default:"168h"`
}

// PushgatewayConfig holds Prometheus Pushgateway settings.
type PushgatewayConfig struct {
	URL      string `yaml:"url"      env:"REPORT_PUSHGATEWAY_URL"`
	Instance string `yaml:"instance" env:"REPORT_PUSHGATEWAY_INSTANCE"`
}

// NATSConfig holds run-event publishing settings.
type NATSConfig struct {
	URL           string `yaml:"url"            env:"REPORT_NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"REPORT_NATS_SUBJECT_PREFIX" env-default:"reconcile.runs"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
