package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts
	InitialWait time.Duration // Initial wait, doubled after each failure
	MaxWait     time.Duration // Upper bound for the wait between attempts
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 50 * time.Millisecond,
		MaxWait:     time.Second,
	}
}

// IsRetryableError reports whether a filesystem error is likely transient.
// Table files often live on synced or network folders where a rename can
// briefly fail while another program holds the file.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pathError *os.PathError
	var linkError *os.LinkError
	if errors.As(err, &pathError) {
		err = pathError.Err
	}
	if errors.As(err, &linkError) {
		err = linkError.Err
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EBUSY, syscall.ETIMEDOUT, syscall.EIO:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timed out",
		"timeout",
		"resource temporarily unavailable",
		"device or resource busy",
		"being used by another process",
		"i/o error",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// Retry runs operation until it succeeds, fails with a non-retryable error,
// or cfg.MaxAttempts is reached. The wait doubles between attempts.
func Retry(cfg *RetryConfig, operation func() error, operationName string) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	wait := cfg.InitialWait
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = operation(); err == nil {
			if attempt > 1 {
				DebugLog("Retry: %s succeeded on attempt %d/%d", operationName, attempt, cfg.MaxAttempts)
			}
			return nil
		}

		if !IsRetryableError(err) {
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		DebugLog("Retry: %s failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt, cfg.MaxAttempts, wait, err)
		time.Sleep(wait)
		wait *= 2
		if wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}

	WarnLog("Retry: %s failed after %d attempts: %v", operationName, cfg.MaxAttempts, err)
	return fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
}

// RetryableRename renames a file with retry logic
func RetryableRename(oldpath, newpath string, cfg *RetryConfig) error {
	return Retry(cfg, func() error {
		return os.Rename(oldpath, newpath)
	}, fmt.Sprintf("rename(%s -> %s)", oldpath, newpath))
}

// RetryableRemove removes a file with retry logic
func RetryableRemove(path string, cfg *RetryConfig) error {
	return Retry(cfg, func() error {
		return os.Remove(path)
	}, fmt.Sprintf("remove(%s)", path))
}
