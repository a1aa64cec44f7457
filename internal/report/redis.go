package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        4,
		MaxRetries:      3,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisReporter keeps the last summary of every job plus a capped history
// list, so dashboards and on-call tooling can inspect recent runs.
//
// Keys:
//
//	<prefix>:<job>:last     string, JSON summary
//	<prefix>:<job>:history  list, newest first
type RedisReporter struct {
	client      redis.Cmdable
	prefix      string
	historySize int64
	ttl         time.Duration
}

// NewRedisReporter creates a RedisReporter. A zero historySize disables the
// history list; a zero ttl keeps keys forever.
func NewRedisReporter(client redis.Cmdable, cfg config.RedisConfig) *RedisReporter {
	return &RedisReporter{
		client:      client,
		prefix:      cfg.KeyPrefix,
		historySize: cfg.HistorySize,
		ttl:         cfg.TTL,
	}
}

func (r *RedisReporter) lastKey(job domain.JobKind) string {
	return r.prefix + ":" + job.String() + ":last"
}

func (r *RedisReporter) historyKey(job domain.JobKind) string {
	return r.prefix + ":" + job.String() + ":history"
}

// Report implements Reporter.
func (r *RedisReporter) Report(ctx context.Context, s domain.RunSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.lastKey(s.Job), payload, r.ttl)
		if r.historySize > 0 {
			key := r.historyKey(s.Job)
			p.LPush(ctx, key, payload)
			p.LTrim(ctx, key, 0, r.historySize-1)
			if r.ttl > 0 {
				p.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store summary of %s: %w", s.Job, err)
	}
	return nil
}

// LastRun returns the most recent summary of job. It wraps domain.ErrNotFound
// when the job has not reported yet or the key expired.
func (r *RedisReporter) LastRun(ctx context.Context, job domain.JobKind) (domain.RunSummary, error) {
	raw, err := r.client.Get(ctx, r.lastKey(job)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RunSummary{}, fmt.Errorf("last run of %s: %w", job, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("last run of %s: %w", job, err)
	}

	var s domain.RunSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.RunSummary{}, fmt.Errorf("decode last run of %s: %w", job, err)
	}
	return s, nil
}

// History returns up to limit summaries of job, newest first.
func (r *RedisReporter) History(ctx context.Context, job domain.JobKind, limit int64) ([]domain.RunSummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := r.client.LRange(ctx, r.historyKey(job), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", job, err)
	}

	out := make([]domain.RunSummary, 0, len(raws))
	for _, raw := range raws {
		var s domain.RunSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode history of %s: %w", job, err)
		}
		out = append(out, s)
	}
	return out, nil
}
