package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

var (
	_ repository.Transactor             = (*Store)(nil)
	_ repository.AvailabilityRepository = (*Store)(nil)
	_ repository.BookingRepository      = BookingView{}
	_ repository.EventTypeRepository    = EventTypeView{}
	_ repository.UserRepository         = UserView{}
)

// Availability returns the store as an availability repository.
func (s *Store) Availability() *Store { return s }

func (s *Store) Bookings() BookingView { return BookingView{s: s} }

func (s *Store) EventTypes() EventTypeView { return EventTypeView{s: s} }

func (s *Store) Users() UserView { return UserView{s: s} }

// Stores returns every view of the store.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Tx:           s,
		Availability: s,
		Bookings:     s.Bookings(),
		EventTypes:   s.EventTypes(),
		Users:        s.Users(),
	}
}

// BookingView はStoreを予約リポジトリとして見せます
type BookingView struct{ s *Store }

func (v BookingView) Insert(ctx context.Context, booking model.Booking) error {
	return v.s.InsertBooking(ctx, booking)
}

func (v BookingView) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	return v.s.UpdateBookingStatus(ctx, id, status)
}

func (v BookingView) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return v.s.FindBookingByID(ctx, id)
}

func (v BookingView) FindByIDAndDeveloper(ctx context.Context, id, developerID uuid.UUID) (*model.Booking, error) {
	return v.s.FindBookingByIDAndDeveloper(ctx, id, developerID)
}

func (v BookingView) ListInRange(_ context.Context, developerID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	return v.s.listBookings(func(b model.Booking) bool {
		return b.DeveloperID == developerID
	}, from, to), nil
}

func (v BookingView) ListByStatusInRange(_ context.Context, status model.BookingStatus, from, to time.Time) ([]model.Booking, error) {
	return v.s.listBookings(func(b model.Booking) bool {
		return b.Status == status
	}, from, to), nil
}

func (v BookingView) ListByDeveloperStatusInRange(_ context.Context, developerID uuid.UUID, status model.BookingStatus, from, to time.Time) ([]model.Booking, error) {
	return v.s.listBookings(func(b model.Booking) bool {
		return b.DeveloperID == developerID && b.Status == status
	}, from, to), nil
}

// EventTypeView はStoreを面接種別リポジトリとして見せます
type EventTypeView struct{ s *Store }

func (v EventTypeView) ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.EventType, error) {
	return v.s.ListEventTypes(ctx, developerID)
}

func (v EventTypeView) FindByName(ctx context.Context, developerID uuid.UUID, name string) (*model.EventType, error) {
	return v.s.FindEventTypeByName(ctx, developerID, name)
}

func (v EventTypeView) Insert(ctx context.Context, eventType model.EventType) error {
	return v.s.InsertEventType(ctx, eventType)
}

// UserView はStoreを利用者リポジトリとして見せます
type UserView struct{ s *Store }

func (v UserView) FindByID(ctx context.Context, id uuid.UUID) (*model.Developer, error) {
	return v.s.FindUserByID(ctx, id)
}

func (v UserView) FindByPublicToken(ctx context.Context, token string) (*model.Developer, error) {
	return v.s.FindUserByPublicToken(ctx, token)
}
