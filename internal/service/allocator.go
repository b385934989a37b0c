package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// SlotAllocator は予約時間帯の空き枠を確保して消費します
// 二重予約を防ぐ唯一の仕組みは LockRange です
type SlotAllocator struct {
	tx    repository.Transactor
	slots repository.AvailabilityRepository
	clock clock.Clock
}

func NewSlotAllocator(tx repository.Transactor, slots repository.AvailabilityRepository, clk clock.Clock) *SlotAllocator {
	return &SlotAllocator{tx: tx, slots: slots, clock: clk}
}

// Reserve consumes every slot covering [start, start+durationMinutes).
// It joins the transaction bound to ctx when there is one.
func (a *SlotAllocator) Reserve(ctx context.Context, developerID uuid.UUID, start time.Time, durationMinutes int) ([]model.AvailabilitySlot, error) {
	if err := validateSpan(start, durationMinutes, a.clock.Now()); err != nil {
		return nil, err
	}

	var consumed []model.AvailabilitySlot
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		locked, err := a.slots.LockRange(ctx, developerID, start, end)
		if err != nil {
			return err
		}

		byStart := make(map[int64]model.AvailabilitySlot, len(locked))
		for _, slot := range locked {
			byStart[model.SlotKey(slot.StartAt)] = slot
		}

		required := make([]model.AvailabilitySlot, 0, durationMinutes/model.SlotMinutes)
		for _, cursor := range model.SlotStarts(start, durationMinutes) {
			slot, ok := byStart[model.SlotKey(cursor)]
			if !ok {
				return model.ErrSlotUnavailable
			}
			required = append(required, slot)
		}

		if err := a.slots.DeleteMany(ctx, required); err != nil {
			return fmt.Errorf("%w: %w", model.ErrReservationFailed, err)
		}
		consumed = required
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}
