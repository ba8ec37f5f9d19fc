package storage

import (
	"math/rand"
	"strings"
	"time"
)

// Under concurrent study sessions, WAL-mode SQLite can return transient
// errors (SQLITE_BUSY, SQLITE_LOCKED) that resolve on retry. The
// busy_timeout pragma covers most cases at the connection level; this
// wrapper covers the fallthrough for write operations.

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp executes fn, retrying with exponential backoff and jitter on
// transient SQLite errors. Non-transient errors return immediately.
func retryOp(cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoffDelay(cfg, attempt))
		}
	}
	return lastErr
}

func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	// Jitter up to half the delay to spread out contending writers.
	return delay + time.Duration(rand.Int63n(int64(delay/2)+1))
}
