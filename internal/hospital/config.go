package hospital

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/hospitalos/patientflow/pkg/logging"
)

const cacheKey = "hospital:config"

// Config is the singleton hospital configuration consumed by the queue
// assigner. It is mutated only through the admin endpoints.
type Config struct {
	QueuePrefix         string    `json:"queue_prefix"`
	MaxQueuePerDay      int       `json:"max_queue_per_day"`
	CallIntervalMinutes int       `json:"call_interval_minutes"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks admin-supplied values.
func (c *Config) Validate() error {
	if c.QueuePrefix == "" || len(c.QueuePrefix) > 3 {
		return errors.New("hospital: queue prefix must be 1-3 characters")
	}
	if c.MaxQueuePerDay <= 0 {
		return errors.New("hospital: max queue per day must be positive")
	}
	if c.CallIntervalMinutes <= 0 {
		return errors.New("hospital: call interval must be positive")
	}
	return nil
}

type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and updates the hospital_config row, with a short-TTL Redis
// cache in front since every assignment and wait estimate reads it.
type Store struct {
	db       db
	cache    *redis.Client
	ttl      time.Duration
	fallback Config
	logger   *logging.Logger
}

// NewStore creates a config store. The cache client may be nil, in which
// case every read hits Postgres. The fallback is served only when the row
// cannot be read at all.
func NewStore(dbh db, cache *redis.Client, ttl time.Duration, fallback Config, logger *logging.Logger) *Store {
	if dbh == nil {
		panic("hospital: db handle required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: dbh, cache: cache, ttl: ttl, fallback: fallback, logger: logger}
}

// Get returns the current configuration, cache-aside.
func (s *Store) Get(ctx context.Context) (Config, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cfg Config
			if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
				return cfg, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("hospital config cache read failed", "error", err)
		}
	}

	var cfg Config
	err := s.db.QueryRow(ctx, `
		SELECT queue_prefix, max_queue_per_day, call_interval_minutes, updated_at
		FROM hospital_config WHERE id = 1`).
		Scan(&cfg.QueuePrefix, &cfg.MaxQueuePerDay, &cfg.CallIntervalMinutes, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.fallback, nil
		}
		return Config{}, fmt.Errorf("hospital: load config: %w", err)
	}

	s.fillCache(ctx, cfg)
	return cfg, nil
}

// Update writes new values and invalidates the cache.
func (s *Store) Update(ctx context.Context, cfg Config) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	err := s.db.QueryRow(ctx, `
		UPDATE hospital_config
		SET queue_prefix = $1, max_queue_per_day = $2, call_interval_minutes = $3, updated_at = now()
		WHERE id = 1
		RETURNING updated_at`, cfg.QueuePrefix, cfg.MaxQueuePerDay, cfg.CallIntervalMinutes).
		Scan(&cfg.UpdatedAt)
	if err != nil {
		return Config{}, fmt.Errorf("hospital: update config: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
			s.logger.Warn("hospital config cache invalidation failed", "error", err)
		}
	}
	return cfg, nil
}

func (s *Store) fillCache(ctx context.Context, cfg Config) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("hospital config cache write failed", "error", err)
	}
}
