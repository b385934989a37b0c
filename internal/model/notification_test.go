package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNotification_ToMessage(t *testing.T) {
	start := time.Date(2030, 1, 10, 9, 30, 0, 0, time.UTC)
	now := start.Add(-24 * time.Hour)
	link := "https://meet.example.com/abc"

	developer := Developer{
		ID:          uuid.New(),
		Role:        RoleDev,
		DisplayName: "Dev One",
		Email:       "dev@example.com",
	}
	booking := Booking{
		ID:              uuid.New(),
		DeveloperID:     developer.ID,
		CreatedByRole:   RoleHR1,
		EventTypeName:   "Tech",
		StartAt:         start,
		DurationMinutes: 60,
		Status:          BookingStatusPending,
		Company:         "Acme",
		HRName:          "Alice",
		HREmail:         "alice@acme.example",
	}
	withLink := booking
	withLink.MeetingLink = &link

	tests := []struct {
		name            string
		notification    Notification
		expectedSubject string
		contains        []string
		notContains     []string
	}{
		{
			name:            "予約作成の通知",
			notification:    NewBookingCreatedNotification(developer, booking, now),
			expectedSubject: "New booking request: Acme",
			contains: []string{
				"A new interview was requested.",
				"Developer: Dev One",
				"HR: Alice (alice@acme.example)",
				"When: 2030-01-10 09:30 UTC",
				"Duration: 60 minutes",
			},
			notContains: []string{"Meeting link"},
		},
		{
			name:            "24時間前のリマインド",
			notification:    NewReminderNotification(developer, withLink, 24*time.Hour, now),
			expectedSubject: "Upcoming interview in 24h",
			contains: []string{
				"Reminder: interview starts in 24h.",
				"Meeting link: https://meet.example.com/abc",
			},
		},
		{
			name:            "1時間前のリマインド(分を含む)",
			notification:    NewReminderNotification(developer, booking, 65*time.Minute, now),
			expectedSubject: "Upcoming interview in 1h 5m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.notification.ToMessage()
			if msg.Subject != tt.expectedSubject {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.expectedSubject)
			}
			for _, s := range tt.contains {
				if !strings.Contains(msg.Text, s) {
					t.Errorf("Text does not contain %q:\n%s", s, msg.Text)
				}
			}
			for _, s := range tt.notContains {
				if strings.Contains(msg.Text, s) {
					t.Errorf("Text unexpectedly contains %q", s)
				}
			}
			if len(msg.Recipients) != 2 || msg.Recipients[0] != "dev@example.com" || msg.Recipients[1] != "alice@acme.example" {
				t.Errorf("Recipients = %v", msg.Recipients)
			}
		})
	}
}

func TestFormatUntil(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "24h"},
		{time.Hour, "1h"},
		{23*time.Hour + 45*time.Minute, "23h 45m"},
		{15 * time.Minute, "15m"},
		{30 * time.Second, "0m"},
	}
	for _, tt := range tests {
		if got := FormatUntil(tt.in); got != tt.want {
			t.Errorf("FormatUntil(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
