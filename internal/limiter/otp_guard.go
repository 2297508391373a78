// Package limiter throttles one-time code traffic per email using Redis
// fixed-window counters.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"helixdesk/internal/model"
)

var (
	ErrLocked      = fmt.Errorf("%w: verification locked", model.ErrTooManyAttempts)
	ErrRateLimited = fmt.Errorf("%w: too many codes requested", model.ErrTooManyAttempts)
)

type Config struct {
	MaxAttempts int
	Window      time.Duration
	MaxIssues   int
	IssueWindow time.Duration
}

// OTPGuard counts failed verifications and issued codes per email. A nil
// *OTPGuard admits everything. Redis failures are logged and admitted too,
// since codes remain single-use and short-lived without the guard.
type OTPGuard struct {
	rdb *redis.Client
	cfg Config
}

func NewOTPGuard(rdb *redis.Client, cfg Config) *OTPGuard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxIssues <= 0 {
		cfg.MaxIssues = 5
	}
	if cfg.IssueWindow <= 0 {
		cfg.IssueWindow = cfg.Window
	}
	return &OTPGuard{rdb: rdb, cfg: cfg}
}

func failKey(email string) string {
	return "helixdesk:otp:fail:" + normalize(email)
}

func issueKey(email string) string {
	return "helixdesk:otp:issue:" + normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckVerify returns ErrLocked while email has used up its failed attempts.
func (g *OTPGuard) CheckVerify(ctx context.Context, email string) error {
	if g == nil {
		return nil
	}

	count, err := g.rdb.Get(ctx, failKey(email)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		slog.Warn("otp guard unavailable; admitting verification", "error", err)
		return nil
	}
	if count >= g.cfg.MaxAttempts {
		return ErrLocked
	}
	return nil
}

// RecordFailure counts a failed verification and reports whether email is now locked.
func (g *OTPGuard) RecordFailure(ctx context.Context, email string) (bool, error) {
	if g == nil {
		return false, nil
	}

	count, err := g.incr(ctx, failKey(email), g.cfg.Window)
	if err != nil {
		return false, fmt.Errorf("record otp failure: %w", err)
	}
	return count >= int64(g.cfg.MaxAttempts), nil
}

func (g *OTPGuard) Reset(ctx context.Context, email string) error {
	if g == nil {
		return nil
	}
	if err := g.rdb.Del(ctx, failKey(email)).Err(); err != nil {
		return fmt.Errorf("reset otp failures: %w", err)
	}
	return nil
}

// AllowIssue counts a code issuance and returns ErrRateLimited once email
// exceeds MaxIssues within IssueWindow. A locked email may not request codes.
func (g *OTPGuard) AllowIssue(ctx context.Context, email string) error {
	if g == nil {
		return nil
	}
	if err := g.CheckVerify(ctx, email); err != nil {
		return err
	}

	count, err := g.incr(ctx, issueKey(email), g.cfg.IssueWindow)
	if err != nil {
		slog.Warn("otp guard unavailable; admitting issuance", "error", err)
		return nil
	}
	if count > int64(g.cfg.MaxIssues) {
		return ErrRateLimited
	}
	return nil
}

// incr bumps a fixed-window counter, starting the window on the first hit.
func (g *OTPGuard) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := g.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
