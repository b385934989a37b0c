package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunWithTimeout(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		timeout time.Duration
		fn      func(context.Context) error
		wantErr error
	}{
		{
			name:    "正常終了",
			timeout: time.Second,
			fn:      func(ctx context.Context) error { return nil },
		},
		{
			name:    "エラーをそのまま返す",
			timeout: time.Second,
			fn:      func(ctx context.Context) error { return errBoom },
			wantErr: errBoom,
		},
		{
			name:    "タイムアウト",
			timeout: 10 * time.Millisecond,
			fn: func(ctx context.Context) error {
				<-ctx.Done()
				time.Sleep(50 * time.Millisecond)
				return nil
			},
			wantErr: ErrTimeout,
		},
		{
			name:    "タイムアウトなし",
			timeout: 0,
			fn: func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); ok {
					return errors.New("unexpected deadline")
				}
				return nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunWithTimeout(context.Background(), tt.timeout, tt.fn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunWithTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWithTimeout(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("parent cancellation reported as timeout")
	}
}

func TestRunWithTimeout_Panic(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		err := RunWithTimeout(context.Background(), timeout, func(ctx context.Context) error {
			panic("kaboom")
		})
		if err == nil || !strings.Contains(err.Error(), "panic: kaboom") {
			t.Errorf("timeout=%v: error = %v", timeout, err)
		}
		if !strings.Contains(err.Error(), "Stack trace:") {
			t.Errorf("timeout=%v: stack trace missing", timeout)
		}
	}
}

func TestGetStackWithError(t *testing.T) {
	if GetStackWithError(nil) != nil {
		t.Fatal("nil error should stay nil")
	}

	base := errors.New("base")
	wrapped := GetStackWithError(base)
	if !errors.Is(wrapped, base) {
		t.Errorf("wrapped error should unwrap to base")
	}
	if again := GetStackWithError(wrapped); again != wrapped {
		t.Errorf("stack should be attached only once")
	}
	if n := strings.Count(GetStackWithError(wrapped).Error(), "Stack trace:"); n != 1 {
		t.Errorf("stack trace count = %d, want 1", n)
	}
}
