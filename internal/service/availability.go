package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// BulkAvailabilityRequest は日付範囲と1日の時間帯で枠をまとめて作成します
// 時刻はUTCで解釈します
type BulkAvailabilityRequest struct {
	StartDate  time.Time
	EndDate    time.Time
	DailyStart time.Duration
	DailyEnd   time.Duration
}

// AvailabilityService は開発者の空き枠を管理します
type AvailabilityService struct {
	slots repository.AvailabilityRepository
	clock clock.Clock
}

func NewAvailabilityService(slots repository.AvailabilityRepository, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{slots: slots, clock: clk}
}

func (s *AvailabilityService) List(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.slots.ListInRange(ctx, developerID, from, to)
}

// Add publishes one slot. A racing duplicate surfaces as model.ErrConflict.
func (s *AvailabilityService) Add(ctx context.Context, developerID uuid.UUID, start time.Time) (model.AvailabilitySlot, error) {
	if err := model.ValidateStart(start); err != nil {
		return model.AvailabilitySlot{}, err
	}
	if err := model.EnsureFuture(start, s.clock.Now(), "cannot add availability in the past"); err != nil {
		return model.AvailabilitySlot{}, err
	}
	exists, err := s.slots.Exists(ctx, developerID, start)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	if exists {
		return model.AvailabilitySlot{}, model.InvalidArgument("availability already exists")
	}

	slot := model.NewAvailabilitySlot(developerID, start)
	if err := s.slots.Insert(ctx, slot); err != nil {
		return model.AvailabilitySlot{}, err
	}
	return slot, nil
}

// Remove deletes the slot at start if it is still published.
func (s *AvailabilityService) Remove(ctx context.Context, developerID uuid.UUID, start time.Time) error {
	if err := model.EnsureFuture(start, s.clock.Now(), "cannot remove availability in the past"); err != nil {
		return err
	}
	slot, err := s.slots.FindOne(ctx, developerID, start)
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}
	return s.slots.DeleteOne(ctx, *slot)
}

// BulkAdd creates every missing future slot in the daily window of each day
// between StartDate and EndDate inclusive.
func (s *AvailabilityService) BulkAdd(ctx context.Context, developerID uuid.UUID, req BulkAvailabilityRequest) ([]model.AvailabilitySlot, error) {
	startDate := truncateDay(req.StartDate)
	endDate := truncateDay(req.EndDate)
	if endDate.Before(startDate) {
		return nil, model.InvalidArgument("end date must not be before start date")
	}
	if req.DailyEnd <= req.DailyStart {
		return nil, model.InvalidArgument("daily end must be after daily start")
	}
	if req.DailyStart < 0 || req.DailyEnd > 24*time.Hour {
		return nil, model.InvalidArgument("daily window must be within one day")
	}
	if req.DailyStart%model.SlotDuration != 0 || req.DailyEnd%model.SlotDuration != 0 {
		return nil, model.InvalidArgument("daily window must be aligned to 30 minutes")
	}

	now := s.clock.Now()
	var candidates []time.Time
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		last := day.Add(req.DailyEnd - model.SlotDuration)
		for cursor := day.Add(req.DailyStart); !cursor.After(last); cursor = cursor.Add(model.SlotDuration) {
			if !cursor.After(now) {
				continue
			}
			candidates = append(candidates, cursor)
		}
	}

	created := []model.AvailabilitySlot{}
	for _, cursor := range candidates {
		exists, err := s.slots.Exists(ctx, developerID, cursor)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		slot := model.NewAvailabilitySlot(developerID, cursor)
		if err := s.slots.Insert(ctx, slot); err != nil {
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			return nil, err
		}
		created = append(created, slot)
	}

	logger.InfoContext(ctx, "bulk availability created", "developer_id", developerID, "created", len(created))
	return created, nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
