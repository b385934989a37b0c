package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// SlotMinutes は空き枠1つの長さ(分)です
	SlotMinutes = 30
	// SlotDuration は空き枠1つの長さです
	SlotDuration = SlotMinutes * time.Minute
)

// AllowedDurations は予約可能な長さ(分)です
var AllowedDurations = []int{30, 60, 90, 120}

// AvailabilitySlot は開発者が公開する30分の空き枠です
// 予約時に削除され、辞退時に新しいレコードとして作り直されます
type AvailabilitySlot struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DeveloperID     uuid.UUID `db:"developer_id" json:"developerId"`
	StartAt         time.Time `db:"start_at" json:"startAt"`
	DurationMinutes int       `db:"duration_minutes" json:"durationMinutes"`
}

// NewAvailabilitySlot builds an unsaved slot starting at start.
func NewAvailabilitySlot(developerID uuid.UUID, start time.Time) AvailabilitySlot {
	return AvailabilitySlot{
		ID:              uuid.New(),
		DeveloperID:     developerID,
		StartAt:         start.UTC(),
		DurationMinutes: SlotMinutes,
	}
}

// ValidateStart checks the :00/:30 grid with zero seconds and nanoseconds.
func ValidateStart(start time.Time) error {
	if start.IsZero() {
		return InvalidArgument("start time is required")
	}
	if m := start.Minute(); m != 0 && m != 30 {
		return InvalidArgument("start time must be aligned to 30 minutes")
	}
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return InvalidArgument("start time must not contain seconds")
	}
	return nil
}

// ValidateDuration checks that minutes is one of AllowedDurations.
func ValidateDuration(minutes int) error {
	if !slices.Contains(AllowedDurations, minutes) {
		return InvalidArgument("duration must be one of 30, 60, 90 or 120 minutes")
	}
	return nil
}

// EnsureFuture fails unless start is strictly after now.
func EnsureFuture(start, now time.Time, message string) error {
	if !start.After(now) {
		return InvalidArgument("%s", message)
	}
	return nil
}

// SlotStarts returns the 30-minute cursors covering [start, start+minutes).
func SlotStarts(start time.Time, minutes int) []time.Time {
	count := minutes / SlotMinutes
	starts := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		starts = append(starts, start.Add(time.Duration(i)*SlotDuration).UTC())
	}
	return starts
}

// SlotKey is a comparable map key for a slot start.
func SlotKey(start time.Time) int64 {
	return start.UTC().UnixNano()
}

// SortSlots orders slots by start time.
func SortSlots(slots []AvailabilitySlot) {
	slices.SortFunc(slots, func(a, b AvailabilitySlot) int {
		return a.StartAt.Compare(b.StartAt)
	})
}
