package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spinsa/inventario/internal/config"
)

// Throttle counts failed logins per email in a fixed window.  A nil Throttle
// or one without a Redis client allows every attempt.  Redis errors are
// logged and the attempt is allowed.
type Throttle struct {
	cfg    config.LoginThrottleConfig
	rdb    *redis.Client
	logger *slog.Logger
}

// NewThrottle returns nil when throttling is disabled or rdb is nil.
func NewThrottle(cfg config.LoginThrottleConfig, rdb *redis.Client, logger *slog.Logger) *Throttle {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttle{cfg: cfg, rdb: rdb, logger: logger}
}

func (t *Throttle) key(email string) string {
	return t.cfg.Prefix + ":fail:" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether another attempt for email may be made.
func (t *Throttle) Allow(ctx context.Context, email string) bool {
	if t == nil {
		return true
	}
	n, err := t.rdb.Get(ctx, t.key(email)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.Warn("login throttle lookup failed", slog.Any("error", err))
		}
		return true
	}
	return n < t.cfg.MaxAttempts
}

// Fail records a failed attempt.  The window starts with the first failure.
func (t *Throttle) Fail(ctx context.Context, email string) {
	if t == nil {
		return
	}
	key := t.key(email)
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		t.logger.Warn("login throttle incr failed", slog.Any("error", err))
		return
	}
	if n == 1 {
		if err := t.rdb.Expire(ctx, key, t.cfg.Window).Err(); err != nil {
			t.logger.Warn("login throttle expire failed", slog.Any("error", err))
		}
	}
}

// Reset forgets the failures of email after a successful login.
func (t *Throttle) Reset(ctx context.Context, email string) {
	if t == nil {
		return
	}
	if err := t.rdb.Del(ctx, t.key(email)).Err(); err != nil {
		t.logger.Warn("login throttle reset failed", slog.Any("error", err))
	}
}

// RetryAfter returns how long until the window of email closes.
func (t *Throttle) RetryAfter(ctx context.Context, email string) time.Duration {
	if t == nil {
		return 0
	}
	d, err := t.rdb.TTL(ctx, t.key(email)).Result()
	if err != nil || d < 0 {
		return 0
	}
	return d
}
