package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
	"github.com/uma-arai/sbcntr-calendar/internal/repository/memory"
)

var testNow = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns a UTC instant on 2030-01-02.
func at(hour, minute int) time.Time {
	return time.Date(2030, 1, 2, hour, minute, 0, 0, time.UTC)
}

// MockNotifier はテスト用の通知先です
type MockNotifier struct {
	mu        sync.Mutex
	created   []model.Booking
	reminders []reminderCall
	err       error
}

type reminderCall struct {
	developer  model.Developer
	booking    model.Booking
	untilStart time.Duration
}

func (m *MockNotifier) NotifyCreated(ctx context.Context, developer model.Developer, booking model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, booking)
	return m.err
}

func (m *MockNotifier) SendReminder(ctx context.Context, developer model.Developer, booking model.Booking, untilStart time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, reminderCall{developer: developer, booking: booking, untilStart: untilStart})
	return m.err
}

func (m *MockNotifier) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

// MockAvailabilityRepository は空き枠リポジトリに障害を注入します
type MockAvailabilityRepository struct {
	repository.AvailabilityRepository
	existsOverride *bool
	insertError    error
	deleteManyErr  error
	lockRangeErr   error
	insertCalled   int
}

func (m *MockAvailabilityRepository) LockRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	if m.lockRangeErr != nil {
		return nil, m.lockRangeErr
	}
	return m.AvailabilityRepository.LockRange(ctx, developerID, from, to)
}

func (m *MockAvailabilityRepository) Exists(ctx context.Context, developerID uuid.UUID, start time.Time) (bool, error) {
	if m.existsOverride != nil {
		return *m.existsOverride, nil
	}
	return m.AvailabilityRepository.Exists(ctx, developerID, start)
}

func (m *MockAvailabilityRepository) Insert(ctx context.Context, slot model.AvailabilitySlot) error {
	m.insertCalled++
	if m.insertError != nil {
		return m.insertError
	}
	return m.AvailabilityRepository.Insert(ctx, slot)
}

func (m *MockAvailabilityRepository) DeleteMany(ctx context.Context, slots []model.AvailabilitySlot) error {
	if m.deleteManyErr != nil {
		return m.deleteManyErr
	}
	return m.AvailabilityRepository.DeleteMany(ctx, slots)
}

// MockBookingRepository は予約リポジトリに障害を注入します
type MockBookingRepository struct {
	repository.BookingRepository
	insertError  error
	beforeUpdate func(ctx context.Context, id uuid.UUID)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(ctx, id)
	}
	return m.BookingRepository.UpdateStatus(ctx, id, status)
}

func (m *MockBookingRepository) Insert(ctx context.Context, booking model.Booking) error {
	if m.insertError != nil {
		return m.insertError
	}
	return m.BookingRepository.Insert(ctx, booking)
}

type testEnv struct {
	store     *memory.Store
	clock     *clock.Fixed
	developer model.Developer
	slots     *MockAvailabilityRepository
	bookings  *MockBookingRepository
	notifier  *MockNotifier
	allocator *SlotAllocator
	booking   *BookingService
	avail     *AvailabilityService
	eventType *EventTypeService
}

// newTestEnv はメモリストアで各サービスを組み立てます
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewFixed(testNow)
	dev := model.Developer{
		ID:          uuid.New(),
		Role:        model.RoleDev,
		DisplayName: "Dev One",
		Email:       "dev@example.com",
		PublicToken: "public-token",
	}
	store.AddDeveloper(dev)

	slots := &MockAvailabilityRepository{AvailabilityRepository: store.Availability()}
	bookings := &MockBookingRepository{BookingRepository: store.Bookings()}
	notifier := &MockNotifier{}
	allocator := NewSlotAllocator(store, slots, clk)

	env := &testEnv{
		store:     store,
		clock:     clk,
		developer: dev,
		slots:     slots,
		bookings:  bookings,
		notifier:  notifier,
		allocator: allocator,
		booking:   NewBookingService(store, allocator, slots, bookings, store.EventTypes(), notifier, clk),
		avail:     NewAvailabilityService(slots, clk),
		eventType: NewEventTypeService(store.EventTypes()),
	}

	if _, err := env.eventType.Create(context.Background(), dev.ID, "Tech Interview"); err != nil {
		t.Fatalf("failed to seed event type: %v", err)
	}
	return env
}

func (e *testEnv) publish(t *testing.T, starts ...time.Time) map[int64]model.AvailabilitySlot {
	t.Helper()
	out := make(map[int64]model.AvailabilitySlot, len(starts))
	for _, s := range starts {
		slot := model.NewAvailabilitySlot(e.developer.ID, s)
		if err := e.store.Insert(context.Background(), slot); err != nil {
			t.Fatalf("failed to publish slot %v: %v", s, err)
		}
		out[model.SlotKey(s)] = slot
	}
	return out
}

func (e *testEnv) slotsBetween(t *testing.T, from, to time.Time) []model.AvailabilitySlot {
	t.Helper()
	slots, err := e.store.ListInRange(context.Background(), e.developer.ID, from, to)
	if err != nil {
		t.Fatalf("ListInRange() error = %v", err)
	}
	return slots
}

func validRequest(start time.Time, duration int) CreateBookingRequest {
	return CreateBookingRequest{
		CreatedByRole:   "HR1",
		EventTypeName:   "  tech interview ",
		StartAt:         start,
		DurationMinutes: duration,
		Company:         "Acme",
		HRName:          "Alice",
		HREmail:         "alice@acme.example",
		MeetingLink:     "https://meet.example.com/abc",
	}
}
