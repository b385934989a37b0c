package model

import (
	"errors"
	"fmt"
)

// ドメインエラーの分類です。呼び出し側は errors.Is で判定します。
var (
	// ErrInvalidArgument は入力値または前提条件の違反です
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound は対象が存在しない、または開発者に属していないことを表します
	ErrNotFound = errors.New("not found")
	// ErrSlotUnavailable は要求された時間帯の枠が揃っていないことを表します
	ErrSlotUnavailable = errors.New("requested time is no longer available")
	// ErrReservationFailed は枠の消費中にストアが失敗したことを表します
	ErrReservationFailed = errors.New("failed to reserve availability")
	// ErrConflict は一意制約違反です
	ErrConflict = errors.New("conflict")
	// ErrBookingDeclined は辞退済みの予約を操作しようとしたことを表します
	ErrBookingDeclined = fmt.Errorf("%w: booking already declined", ErrInvalidArgument)
)

// InvalidArgument wraps ErrInvalidArgument with a caller-facing message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a caller-facing message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// ErrorMessage returns the detail part of a wrapped domain error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, kind := range []error{ErrInvalidArgument, ErrNotFound, ErrConflict} {
		prefix := kind.Error() + ": "
		if errors.Is(err, kind) && len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
