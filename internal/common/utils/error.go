package utils

import (
	"errors"
	"fmt"
	"runtime/debug"
)

type stackError struct {
	err   error
	stack []byte
}

func (e *stackError) Error() string {
	return fmt.Sprintf("%v\nStack trace:\n%s", e.err, e.stack)
}

func (e *stackError) Unwrap() error {
	return e.err
}

// GetStackWithError は、エラーにスタックトレースを付けて返します
// 既にスタックトレースを持つエラーはそのまま返します
func GetStackWithError(err error) error {
	if err == nil {
		return nil
	}
	var se *stackError
	if errors.As(err, &se) {
		return err
	}
	return &stackError{err: err, stack: debug.Stack()}
}

// PanicError は recover した値をエラーに変換します
func PanicError(r any) error {
	if err, ok := r.(error); ok {
		return GetStackWithError(fmt.Errorf("panic: %w", err))
	}
	return GetStackWithError(fmt.Errorf("panic: %v", r))
}
