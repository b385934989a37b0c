package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeBookingCreated は予約リクエストの通知を表します
	NotificationTypeBookingCreated NotificationType = "booking.created"
	// NotificationTypeReminder は面接前のリマインドを表します
	NotificationTypeReminder NotificationType = "booking.reminder"
)

const whenLayout = "2006-01-02 15:04 MST"

// Notification はアダプタに渡す通知イベントです
// NATSやStep Functionsにはこの形のままJSONで送ります
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      NotificationData `json:"data"`
}

// NotificationData は通知に必要な予約と開発者の情報です
type NotificationData struct {
	BookingID      uuid.UUID `json:"booking_id"`
	DeveloperID    uuid.UUID `json:"developer_id"`
	DeveloperName  string    `json:"developer_name"`
	DeveloperEmail string    `json:"developer_email"`
	Company        string    `json:"company"`
	HRName         string    `json:"hr_name"`
	HREmail        string    `json:"hr_email"`
	EventTypeName  string    `json:"event_type_name"`
	StartAt        time.Time `json:"start_at"`
	Duration       int       `json:"duration_minutes"`
	MeetingLink    string    `json:"meeting_link,omitempty"`
	UntilStart     string    `json:"until_start,omitempty"`
}

// NotificationMessage は配信チャネル共通の件名と本文です
type NotificationMessage struct {
	Subject    string
	Text       string
	Recipients []string
}

// NewBookingCreatedNotification は予約作成から通知を作成します
func NewBookingCreatedNotification(developer Developer, booking Booking, now time.Time) Notification {
	return Notification{
		Type:      NotificationTypeBookingCreated,
		CreatedAt: now,
		Data:      newNotificationData(developer, booking),
	}
}

// NewReminderNotification はリマインド通知を作成します
func NewReminderNotification(developer Developer, booking Booking, untilStart time.Duration, now time.Time) Notification {
	data := newNotificationData(developer, booking)
	data.UntilStart = FormatUntil(untilStart)
	return Notification{
		Type:      NotificationTypeReminder,
		CreatedAt: now,
		Data:      data,
	}
}

func newNotificationData(developer Developer, booking Booking) NotificationData {
	data := NotificationData{
		BookingID:      booking.ID,
		DeveloperID:    developer.ID,
		DeveloperName:  developer.DisplayName,
		DeveloperEmail: developer.Email,
		Company:        booking.Company,
		HRName:         booking.HRName,
		HREmail:        booking.HREmail,
		EventTypeName:  booking.EventTypeName,
		StartAt:        booking.StartAt,
		Duration:       booking.DurationMinutes,
	}
	if booking.MeetingLink != nil {
		data.MeetingLink = strings.TrimSpace(*booking.MeetingLink)
	}
	return data
}

// ToMessage renders the notification for email and chat delivery.
func (n Notification) ToMessage() NotificationMessage {
	var subject, header string
	switch n.Type {
	case NotificationTypeReminder:
		subject = "Upcoming interview in " + n.Data.UntilStart
		header = "Reminder: interview starts in " + n.Data.UntilStart + "."
	default:
		subject = "New booking request: " + n.Data.Company
		header = "A new interview was requested."
	}

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "\nDeveloper: %s", n.Data.DeveloperName)
	fmt.Fprintf(&b, "\nCompany: %s", n.Data.Company)
	fmt.Fprintf(&b, "\nHR: %s (%s)", n.Data.HRName, n.Data.HREmail)
	fmt.Fprintf(&b, "\nWhen: %s", n.Data.StartAt.Format(whenLayout))
	fmt.Fprintf(&b, "\nDuration: %d minutes", n.Data.Duration)
	if n.Data.MeetingLink != "" {
		fmt.Fprintf(&b, "\nMeeting link: %s", n.Data.MeetingLink)
	}

	recipients := make([]string, 0, 2)
	for _, r := range []string{n.Data.DeveloperEmail, n.Data.HREmail} {
		if strings.TrimSpace(r) != "" {
			recipients = append(recipients, r)
		}
	}

	return NotificationMessage{
		Subject:    subject,
		Text:       b.String(),
		Recipients: recipients,
	}
}

// FormatUntil renders d as "1h", "23h 45m" or "15m".
func FormatUntil(d time.Duration) string {
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	}
	return strings.Join(parts, " ")
}
