package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// NATS subjects
const (
	SubjectBookingCreated  = "calendar.booking.created"
	SubjectBookingReminder = "calendar.booking.reminder"
)

// Publisher はイベントの発行先です
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

// NATSPublisher は NATS にJSONでイベントを発行します
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher は NATS に接続します
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("sbcntr-calendar"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "publishing event", "subject", subject, "data", string(payload))

	return p.conn.Publish(subject, payload)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// EventChannel は通知をイベントとして発行します
type EventChannel struct {
	publisher Publisher
}

func NewEventChannel(publisher Publisher) *EventChannel {
	return &EventChannel{publisher: publisher}
}

func (c *EventChannel) Name() string { return "nats" }

func (c *EventChannel) Deliver(ctx context.Context, _ model.Developer, n model.Notification) error {
	return c.publisher.Publish(ctx, subjectFor(n.Type), n)
}

func subjectFor(t model.NotificationType) string {
	if t == model.NotificationTypeReminder {
		return SubjectBookingReminder
	}
	return SubjectBookingCreated
}
