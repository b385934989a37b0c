package service

import (
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// Services はAPIとバッチが共有するサービスの組です
type Services struct {
	Developers   *DeveloperService
	Availability *AvailabilityService
	Bookings     *BookingService
	EventTypes   *EventTypeService
}

// NewServices はリポジトリの組からサービスを組み立てます
func NewServices(stores repository.Stores, notifier NotificationPort, clk clock.Clock) *Services {
	allocator := NewSlotAllocator(stores.Tx, stores.Availability, clk)
	return &Services{
		Developers:   NewDeveloperService(stores.Users),
		Availability: NewAvailabilityService(stores.Availability, clk),
		Bookings:     NewBookingService(stores.Tx, allocator, stores.Availability, stores.Bookings, stores.EventTypes, notifier, clk),
		EventTypes:   NewEventTypeService(stores.EventTypes),
	}
}
