package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// NotificationPort は予約の通知先です
// 返されたエラーはログに出すだけで、呼び出し元の処理結果には影響させません
type NotificationPort interface {
	NotifyCreated(ctx context.Context, developer model.Developer, booking model.Booking) error
	SendReminder(ctx context.Context, developer model.Developer, booking model.Booking, untilStart time.Duration) error
}

// CreateBookingRequest はHR側からの予約リクエストです
type CreateBookingRequest struct {
	CreatedByRole   string    `json:"createdByRole"`
	EventTypeName   string    `json:"eventTypeName" validate:"required,max=18"`
	StartAt         time.Time `json:"startAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Company         string    `json:"company" validate:"required,max=255"`
	HRName          string    `json:"hrName" validate:"required,max=255"`
	HREmail         string    `json:"hrEmail" validate:"required,email,max=255"`
	MeetingLink     string    `json:"meetingLink" validate:"omitempty,url,max=1024"`
}

// BookingService は予約のライフサイクルを管理します
type BookingService struct {
	tx         repository.Transactor
	allocator  *SlotAllocator
	slots      repository.AvailabilityRepository
	bookings   repository.BookingRepository
	eventTypes repository.EventTypeRepository
	notifier   NotificationPort
	clock      clock.Clock
}

func NewBookingService(
	tx repository.Transactor,
	allocator *SlotAllocator,
	slots repository.AvailabilityRepository,
	bookings repository.BookingRepository,
	eventTypes repository.EventTypeRepository,
	notifier NotificationPort,
	clk clock.Clock,
) *BookingService {
	return &BookingService{
		tx:         tx,
		allocator:  allocator,
		slots:      slots,
		bookings:   bookings,
		eventTypes: eventTypes,
		notifier:   notifier,
		clock:      clk,
	}
}

// Create reserves the requested window and stores a PENDING booking.
// The developer is notified after the transaction commits.
func (s *BookingService) Create(ctx context.Context, developer model.Developer, req CreateBookingRequest) (model.Booking, error) {
	role, err := model.ParseHRRole(req.CreatedByRole)
	if err != nil {
		return model.Booking{}, err
	}
	now := s.clock.Now()
	if err := validateSpan(req.StartAt, req.DurationMinutes, now); err != nil {
		return model.Booking{}, err
	}
	if err := ValidateStruct(req); err != nil {
		return model.Booking{}, err
	}

	eventTypeName := strings.TrimSpace(req.EventTypeName)
	eventType, err := s.eventTypes.FindByName(ctx, developer.ID, eventTypeName)
	if err != nil {
		return model.Booking{}, fmt.Errorf("failed to find event type: %w", err)
	}
	if eventType == nil {
		return model.Booking{}, model.InvalidArgument("unknown event type")
	}

	booking := model.Booking{
		ID:              uuid.New(),
		DeveloperID:     developer.ID,
		CreatedByRole:   role,
		EventTypeName:   eventTypeName,
		StartAt:         req.StartAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          model.BookingStatusPending,
		Company:         strings.TrimSpace(req.Company),
		HRName:          strings.TrimSpace(req.HRName),
		HREmail:         strings.TrimSpace(req.HREmail),
		CreatedAt:       now,
	}
	if link := strings.TrimSpace(req.MeetingLink); link != "" {
		booking.MeetingLink = &link
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.allocator.Reserve(ctx, developer.ID, req.StartAt, req.DurationMinutes); err != nil {
			return err
		}
		return s.bookings.Insert(ctx, booking)
	})
	if err != nil {
		return model.Booking{}, err
	}

	logger.InfoContext(ctx, "booking created",
		"booking_id", booking.ID, "developer_id", developer.ID, "start_at", booking.StartAt, "duration", booking.DurationMinutes)

	if err := s.notifier.NotifyCreated(ctx, developer, booking); err != nil {
		logger.WarnContext(ctx, "failed to notify booking created", "booking_id", booking.ID, "error", err)
	}
	return booking, nil
}

// Approve moves a future booking to APPROVED.
func (s *BookingService) Approve(ctx context.Context, developerID, bookingID uuid.UUID) (model.Booking, error) {
	return s.transition(ctx, developerID, bookingID, model.BookingStatusApproved)
}

// Unapprove moves a future booking back to PENDING.
func (s *BookingService) Unapprove(ctx context.Context, developerID, bookingID uuid.UUID) (model.Booking, error) {
	return s.transition(ctx, developerID, bookingID, model.BookingStatusPending)
}

// DECLINED is terminal: approve and unapprove fail with model.ErrBookingDeclined.
func (s *BookingService) transition(ctx context.Context, developerID, bookingID uuid.UUID, status model.BookingStatus) (model.Booking, error) {
	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.loadActionable(ctx, developerID, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingStatusDeclined {
			return model.ErrBookingDeclined
		}
		// 読み取り後に辞退された場合は UpdateStatus が拒否する
		if err := s.bookings.UpdateStatus(ctx, b.ID, status); err != nil {
			return err
		}
		b.Status = status
		booking = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	logger.InfoContext(ctx, "booking status changed", "booking_id", booking.ID, "status", status)
	return *booking, nil
}

// Decline marks the booking DECLINED and restores the slots it consumed.
// Slots already present are left as they are.
func (s *BookingService) Decline(ctx context.Context, developerID, bookingID uuid.UUID) (model.Booking, error) {
	booking, err := s.loadActionable(ctx, developerID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if booking.Status == model.BookingStatusDeclined {
		return *booking, nil
	}

	restored := 0
	alreadyDeclined := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 状態を先に確定させ、同時に辞退された場合は枠を戻さない
		if err := s.bookings.UpdateStatus(ctx, booking.ID, model.BookingStatusDeclined); err != nil {
			if errors.Is(err, model.ErrBookingDeclined) {
				alreadyDeclined = true
				return nil
			}
			return err
		}
		for _, cursor := range booking.SlotStarts() {
			exists, err := s.slots.Exists(ctx, developerID, cursor)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			err = s.slots.Insert(ctx, model.NewAvailabilitySlot(developerID, cursor))
			if err != nil {
				// 同時に作成された枠は復元済みとみなす
				if errors.Is(err, model.ErrConflict) {
					continue
				}
				return err
			}
			restored++
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}

	booking.Status = model.BookingStatusDeclined
	if alreadyDeclined {
		return *booking, nil
	}
	logger.InfoContext(ctx, "booking declined", "booking_id", booking.ID, "restored_slots", restored)
	return *booking, nil
}

func (s *BookingService) loadActionable(ctx context.Context, developerID, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.FindByIDAndDeveloper(ctx, bookingID, developerID)
	if err != nil {
		return nil, err
	}
	if err := model.EnsureFuture(booking.StartAt, s.clock.Now(), "action not allowed in the past"); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListForDeveloper returns the developer's bookings with every field visible.
func (s *BookingService) ListForDeveloper(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.bookings.ListInRange(ctx, developerID, from, to)
}

// ListPublic returns bookings redacted for viewer.
func (s *BookingService) ListPublic(ctx context.Context, developerID uuid.UUID, from, to time.Time, viewer *model.Role) ([]model.PublicBooking, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListInRange(ctx, developerID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ToPublic(viewer))
	}
	return out, nil
}

// ApprovedStartingWithin returns approved bookings of every developer
// starting in [from, to].
func (s *BookingService) ApprovedStartingWithin(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	return s.bookings.ListByStatusInRange(ctx, model.BookingStatusApproved, from, to)
}

// ApprovedStartingWithinForDeveloper is ApprovedStartingWithin for one developer.
func (s *BookingService) ApprovedStartingWithinForDeveloper(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	return s.bookings.ListByDeveloperStatusInRange(ctx, developerID, model.BookingStatusApproved, from, to)
}

// FindByID is used by the reminder dispatcher to prune its dedup set.
func (s *BookingService) FindByID(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	return s.bookings.FindByID(ctx, bookingID)
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return model.InvalidArgument("from and to are required")
	}
	if to.Before(from) {
		return model.InvalidArgument("to must not be before from")
	}
	return nil
}
