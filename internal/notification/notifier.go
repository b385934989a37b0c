// Package notification は予約通知の配信を担当します。
// Notifier が通知イベントを組み立て、登録された各チャネルに配信します。
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// Channel は通知の配信経路です
type Channel interface {
	Name() string
	Deliver(ctx context.Context, developer model.Developer, n model.Notification) error
}

// Notifier は全チャネルに通知を配信します
// 1つのチャネルが失敗しても残りのチャネルには配信します
type Notifier struct {
	channels []Channel
	clock    clock.Clock
}

// NewNotifier は新しいNotifierを作成します
func NewNotifier(clk clock.Clock, channels ...Channel) *Notifier {
	return &Notifier{channels: channels, clock: clk}
}

// NotifyCreated は予約リクエストを開発者に通知します
func (n *Notifier) NotifyCreated(ctx context.Context, developer model.Developer, booking model.Booking) error {
	return n.dispatch(ctx, developer, model.NewBookingCreatedNotification(developer, booking, n.clock.Now()))
}

// SendReminder は面接前のリマインドを送信します
func (n *Notifier) SendReminder(ctx context.Context, developer model.Developer, booking model.Booking, untilStart time.Duration) error {
	return n.dispatch(ctx, developer, model.NewReminderNotification(developer, booking, untilStart, n.clock.Now()))
}

func (n *Notifier) dispatch(ctx context.Context, developer model.Developer, notification model.Notification) error {
	var errs []error
	for _, ch := range n.channels {
		if err := ch.Deliver(ctx, developer, notification); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		logger.DebugContext(ctx, "notification delivered",
			"channel", ch.Name(), "type", notification.Type, "booking_id", notification.Data.BookingID)
	}
	return errors.Join(errs...)
}
