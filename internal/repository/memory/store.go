// Package memory は単一プロセス向けのストア実装です。
// ローカル実行とテストで使います。
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// Store は空き枠・予約・面接種別・利用者をメモリに保持します
// LockRange は開発者単位のロックで、トランザクション終了まで保持されます
// トランザクション内の変更は即時反映され、失敗時は取り消し関数で巻き戻します
type Store struct {
	mu         sync.RWMutex
	slots      map[uuid.UUID]map[int64]model.AvailabilitySlot
	bookings   map[uuid.UUID]model.Booking
	eventTypes map[uuid.UUID]map[string]model.EventType
	users      map[uuid.UUID]model.Developer

	locks *keyedLock
}

type txKey struct{}

type tx struct {
	undo []func()
	held map[uuid.UUID]struct{}
}

func NewStore() *Store {
	return &Store{
		slots:      make(map[uuid.UUID]map[int64]model.AvailabilitySlot),
		bookings:   make(map[uuid.UUID]model.Booking),
		eventTypes: make(map[uuid.UUID]map[string]model.EventType),
		users:      make(map[uuid.UUID]model.Developer),
		locks:      newKeyedLock(),
	}
}

// WithinTx runs fn in a transaction. Nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	t := &tx{held: make(map[uuid.UUID]struct{})}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(t)
			s.releaseAll(t)
			panic(p)
		}
		if err != nil {
			s.rollback(t)
		}
		s.releaseAll(t)
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func (s *Store) rollback(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) releaseAll(t *tx) {
	for id := range t.held {
		s.locks.release(id)
	}
}

// onRollback registers undo for the transaction bound to ctx.
// Must be called with s.mu held.
func onRollback(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// AddDeveloper registers a user. Used for seeding.
func (s *Store) AddDeveloper(dev model.Developer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[dev.ID] = dev
}

// ---- availability

func (s *Store) ListInRange(_ context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.AvailabilitySlot{}
	for _, slot := range s.slots[developerID] {
		if !slot.StartAt.Before(from) && !slot.StartAt.After(to) {
			out = append(out, slot)
		}
	}
	model.SortSlots(out)
	return out, nil
}

func (s *Store) LockRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok {
		return nil, errors.New("lock range requires a transaction")
	}
	if _, held := t.held[developerID]; !held {
		if err := s.locks.acquire(ctx, developerID); err != nil {
			return nil, fmt.Errorf("failed to lock availability: %w", err)
		}
		t.held[developerID] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.AvailabilitySlot{}
	for _, slot := range s.slots[developerID] {
		if !slot.StartAt.Before(from) && slot.StartAt.Before(to) {
			out = append(out, slot)
		}
	}
	model.SortSlots(out)
	return out, nil
}

func (s *Store) Exists(_ context.Context, developerID uuid.UUID, start time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slots[developerID][model.SlotKey(start)]
	return ok, nil
}

func (s *Store) FindOne(_ context.Context, developerID uuid.UUID, start time.Time) (*model.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[developerID][model.SlotKey(start)]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s *Store) Insert(ctx context.Context, slot model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot.StartAt = slot.StartAt.UTC()
	key := model.SlotKey(slot.StartAt)
	bucket, ok := s.slots[slot.DeveloperID]
	if !ok {
		bucket = make(map[int64]model.AvailabilitySlot)
		s.slots[slot.DeveloperID] = bucket
	}
	if _, exists := bucket[key]; exists {
		return fmt.Errorf("%w: availability %s", model.ErrConflict, slot.StartAt.Format(time.RFC3339))
	}
	bucket[key] = slot
	onRollback(ctx, func() {
		if cur, ok := bucket[key]; ok && cur.ID == slot.ID {
			delete(bucket, key)
		}
	})
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, slot model.AvailabilitySlot) error {
	return s.DeleteMany(ctx, []model.AvailabilitySlot{slot})
}

func (s *Store) DeleteMany(ctx context.Context, slots []model.AvailabilitySlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range slots {
		cur, ok := s.slots[slot.DeveloperID][model.SlotKey(slot.StartAt)]
		if !ok || cur.ID != slot.ID {
			return fmt.Errorf("availability %s no longer exists", slot.ID)
		}
	}
	removed := make([]model.AvailabilitySlot, 0, len(slots))
	for _, slot := range slots {
		bucket := s.slots[slot.DeveloperID]
		key := model.SlotKey(slot.StartAt)
		removed = append(removed, bucket[key])
		delete(bucket, key)
	}
	onRollback(ctx, func() {
		for _, slot := range removed {
			bucket, ok := s.slots[slot.DeveloperID]
			if !ok {
				bucket = make(map[int64]model.AvailabilitySlot)
				s.slots[slot.DeveloperID] = bucket
			}
			bucket[model.SlotKey(slot.StartAt)] = slot
		}
	})
	return nil
}

// ---- bookings

func (s *Store) InsertBooking(ctx context.Context, booking model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[booking.ID]; exists {
		return fmt.Errorf("%w: booking %s", model.ErrConflict, booking.ID)
	}
	booking.StartAt = booking.StartAt.UTC()
	s.bookings[booking.ID] = booking
	onRollback(ctx, func() { delete(s.bookings, booking.ID) })
	return nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.bookings[id]
	if !ok {
		return model.NotFound("booking not found")
	}
	if prev.Status == model.BookingStatusDeclined {
		return model.ErrBookingDeclined
	}
	updated := prev
	updated.Status = status
	s.bookings[id] = updated
	onRollback(ctx, func() { s.bookings[id] = prev })
	return nil
}

func (s *Store) FindBookingByID(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.NotFound("booking not found")
	}
	return &b, nil
}

func (s *Store) FindBookingByIDAndDeveloper(ctx context.Context, id, developerID uuid.UUID) (*model.Booking, error) {
	b, err := s.FindBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.DeveloperID != developerID {
		return nil, model.NotFound("booking not found")
	}
	return b, nil
}

func (s *Store) listBookings(match func(model.Booking) bool, from, to time.Time) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Booking{}
	for _, b := range s.bookings {
		if match(b) && !b.StartAt.Before(from) && !b.StartAt.After(to) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b model.Booking) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return out
}

// ---- event types

func (s *Store) ListEventTypes(_ context.Context, developerID uuid.UUID) ([]model.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.EventType{}
	for _, et := range s.eventTypes[developerID] {
		out = append(out, et)
	}
	slices.SortFunc(out, func(a, b model.EventType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) FindEventTypeByName(_ context.Context, developerID uuid.UUID, name string) (*model.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	et, ok := s.eventTypes[developerID][strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	return &et, nil
}

func (s *Store) InsertEventType(ctx context.Context, eventType model.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(eventType.Name)
	bucket, ok := s.eventTypes[eventType.DeveloperID]
	if !ok {
		bucket = make(map[string]model.EventType)
		s.eventTypes[eventType.DeveloperID] = bucket
	}
	if _, exists := bucket[key]; exists {
		return fmt.Errorf("%w: event type %s", model.ErrConflict, eventType.Name)
	}
	bucket[key] = eventType
	onRollback(ctx, func() { delete(bucket, key) })
	return nil
}

// ---- users

func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (*model.Developer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.NotFound("developer not found")
	}
	return &u, nil
}

func (s *Store) FindUserByPublicToken(_ context.Context, token string) (*model.Developer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.PublicToken == token {
			return &u, nil
		}
	}
	return nil, model.NotFound("developer not found")
}
