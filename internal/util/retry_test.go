package util

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "EAGAIN", err: syscall.EAGAIN, expected: true},
		{name: "EBUSY", err: syscall.EBUSY, expected: true},
		{name: "ETIMEDOUT", err: syscall.ETIMEDOUT, expected: true},
		{name: "ENOENT (not retryable)", err: syscall.ENOENT, expected: false},
		{name: "EACCES (not retryable)", err: syscall.EACCES, expected: false},
		{name: "sharing violation message", err: errors.New("the file is being used by another process"), expected: true},
		{name: "generic error", err: errors.New("invalid argument"), expected: false},
		{
			name:     "LinkError with EBUSY",
			err:      &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EBUSY},
			expected: true,
		},
		{
			name:     "PathError with ENOENT",
			err:      &os.PathError{Op: "open", Path: "/test", Err: syscall.ENOENT},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(fastRetry(), func() error {
		attempts++
		if attempts < 3 {
			return syscall.EBUSY
		}
		return nil
	}, "test operation")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_FailureAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(fastRetry(), func() error {
		attempts++
		return syscall.ETIMEDOUT
	}, "test operation")

	if !errors.Is(err, syscall.ETIMEDOUT) {
		t.Errorf("Expected wrapped ETIMEDOUT, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(fastRetry(), func() error {
		attempts++
		return syscall.ENOENT
	}, "test operation")

	if err != syscall.ENOENT {
		t.Errorf("Expected ENOENT unchanged, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestRetryableRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.csv")
	dst := filepath.Join(dir, "b.csv")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RetryableRename(src, dst, fastRetry()); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected %s to exist: %v", dst, err)
	}

	if err := RetryableRemove(dst, fastRetry()); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := RetryableRemove(dst, fastRetry()); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error on second remove, got %v", err)
	}
}
