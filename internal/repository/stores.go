package repository

// Stores はサービス層が使うリポジトリの組です
type Stores struct {
	Tx           Transactor
	Availability AvailabilityRepository
	Bookings     BookingRepository
	EventTypes   EventTypeRepository
	Users        UserRepository
}

// NewStores は PostgreSQL 実装のリポジトリを組み立てます
func NewStores(db *DB) Stores {
	return Stores{
		Tx:           db,
		Availability: NewAvailabilityRepository(db),
		Bookings:     NewBookingRepository(db),
		EventTypes:   NewEventTypeRepository(db),
		Users:        NewUserRepository(db),
	}
}
