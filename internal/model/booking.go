package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus は予約の状態です
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "PENDING"
	BookingStatusApproved BookingStatus = "APPROVED"
	BookingStatusDeclined BookingStatus = "DECLINED"
)

// Booking はHR側が作成する面接予約です
// 物理削除はせず、辞退はステータスで表現します
type Booking struct {
	ID              uuid.UUID     `db:"id"`
	DeveloperID     uuid.UUID     `db:"developer_id"`
	CreatedByRole   Role          `db:"created_by_role"`
	EventTypeName   string        `db:"event_type_name"`
	StartAt         time.Time     `db:"start_at"`
	DurationMinutes int           `db:"duration_minutes"`
	Status          BookingStatus `db:"status"`
	Company         string        `db:"company"`
	HRName          string        `db:"hr_name"`
	HREmail         string        `db:"hr_email"`
	MeetingLink     *string       `db:"meeting_link"`
	CreatedAt       time.Time     `db:"created_at"`
}

// EndAt returns the exclusive end of the booked span.
func (b Booking) EndAt() time.Time {
	return b.StartAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// SlotStarts returns the 30-minute cursors the booking occupies.
func (b Booking) SlotStarts() []time.Time {
	return SlotStarts(b.StartAt, b.DurationMinutes)
}

// PublicBooking は公開カレンダー向けの予約表示です
// 閲覧者が作成ロールと一致しない場合、連絡先項目は伏せられます
type PublicBooking struct {
	ID              uuid.UUID     `json:"id"`
	StartAt         time.Time     `json:"startAt"`
	DurationMinutes int           `json:"durationMinutes"`
	Status          BookingStatus `json:"status"`
	CreatedByRole   Role          `json:"createdByRole"`
	EventTypeName   *string       `json:"eventTypeName"`
	Company         *string       `json:"company"`
	HRName          *string       `json:"hrName"`
	HREmail         *string       `json:"hrEmail"`
	MeetingLink     *string       `json:"meetingLink"`
	Occupied        bool          `json:"occupied"`
}

// ToPublic projects b for viewer. A nil viewer sees only the occupied span.
func (b Booking) ToPublic(viewer *Role) PublicBooking {
	pb := PublicBooking{
		ID:              b.ID,
		StartAt:         b.StartAt,
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		CreatedByRole:   b.CreatedByRole,
	}
	if viewer == nil || *viewer != b.CreatedByRole {
		pb.Occupied = true
		return pb
	}
	pb.EventTypeName = stringPtr(b.EventTypeName)
	pb.Company = stringPtr(b.Company)
	pb.HRName = stringPtr(b.HRName)
	pb.HREmail = stringPtr(b.HREmail)
	if b.MeetingLink != nil {
		pb.MeetingLink = stringPtr(*b.MeetingLink)
	}
	return pb
}

func stringPtr(s string) *string {
	return &s
}
