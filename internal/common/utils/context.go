package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout はジョブが制限時間内に終わらなかったことを表します
var ErrTimeout = errors.New("job timed out")

// RunWithTimeout は fn をタイムアウト付きで実行します
// timeout が0以下の場合は ctx をそのまま渡します
// fn 内のpanicはスタックトレース付きのエラーとして返します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return runRecovered(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- runRecovered(ctx, fn)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		return fmt.Errorf("job cancelled: %w", ctx.Err())
	}
}

func runRecovered(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError(r)
		}
	}()
	return fn(ctx)
}
