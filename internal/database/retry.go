package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pinger はDBの疎通確認インターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RetryConfig は起動時の疎通確認リトライ設定。
type RetryConfig struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig はコンテナ起動順のずれを吸収する程度のリトライ設定を返す。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// CalculateBackoff は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// InitialBackoffから2倍ずつ増加し、MaxBackoffで頭打ちになる。
func (c RetryConfig) CalculateBackoff(failures int) time.Duration {
	delay := c.InitialBackoff
	for range failures {
		delay *= 2
		if delay > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return delay
}

// PingWithRetry は疎通確認が成功するまで指数バックオフで再試行する。
// Attempts回失敗するかctxがキャンセルされた場合は最後のエラーを返す。
func PingWithRetry(ctx context.Context, db Pinger, cfg RetryConfig) error {
	attempts := max(cfg.Attempts, 1)

	var lastErr error
	for i := range attempts {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := cfg.CalculateBackoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("backoff", delay),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database ping canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database ping failed after %d attempts: %w", attempts, lastErr)
}
