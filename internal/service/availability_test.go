package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

func TestAvailabilityService_Add(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	slot, err := env.avail.Add(ctx, env.developer.ID, at(9, 0))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if slot.DurationMinutes != model.SlotMinutes {
		t.Errorf("DurationMinutes = %d, want %d", slot.DurationMinutes, model.SlotMinutes)
	}

	tests := []struct {
		name    string
		start   time.Time
		wantMsg string
	}{
		{name: "重複", start: at(9, 0), wantMsg: "availability already exists"},
		{name: "30分境界でない", start: at(9, 10)},
		{name: "過去", start: testNow.Add(-time.Hour), wantMsg: "cannot add availability in the past"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.avail.Add(ctx, env.developer.ID, tt.start)
			if !errors.Is(err, model.ErrInvalidArgument) {
				t.Fatalf("Add() error = %v, want ErrInvalidArgument", err)
			}
			if tt.wantMsg != "" && model.ErrorMessage(err) != tt.wantMsg {
				t.Errorf("ErrorMessage() = %q, want %q", model.ErrorMessage(err), tt.wantMsg)
			}
		})
	}
}

func TestAvailabilityService_Remove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, at(9, 0), at(9, 30))

	if err := env.avail.Remove(ctx, env.developer.ID, at(9, 0)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// 存在しない枠の削除は何もしない
	if err := env.avail.Remove(ctx, env.developer.ID, at(9, 0)); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}

	slots, err := env.avail.List(ctx, env.developer.ID, at(0, 0), at(23, 30))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(slots) != 1 || !slots[0].StartAt.Equal(at(9, 30)) {
		t.Errorf("List() = %+v, want only 09:30", slots)
	}

	env.clock.Set(at(12, 0))
	if err := env.avail.Remove(ctx, env.developer.ID, at(9, 30)); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Remove() past error = %v, want ErrInvalidArgument", err)
	}
}

func TestAvailabilityService_BulkAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.publish(t, at(9, 30))

	req := BulkAvailabilityRequest{
		StartDate:  at(0, 0),
		EndDate:    at(0, 0).AddDate(0, 0, 1),
		DailyStart: 9 * time.Hour,
		DailyEnd:   11 * time.Hour,
	}
	created, err := env.avail.BulkAdd(ctx, env.developer.ID, req)
	if err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}
	// 2日 x 4枠から既存の1枠を除く
	if len(created) != 7 {
		t.Errorf("created = %d, want 7", len(created))
	}

	all := env.slotsBetween(t, at(0, 0), at(0, 0).AddDate(0, 0, 2))
	if len(all) != 8 {
		t.Errorf("total slots = %d, want 8", len(all))
	}
	for _, s := range all {
		h := s.StartAt.Hour()
		if h < 9 || h >= 11 {
			t.Errorf("slot %v outside the daily window", s.StartAt)
		}
	}

	// 再実行は何も作らない
	again, err := env.avail.BulkAdd(ctx, env.developer.ID, req)
	if err != nil {
		t.Fatalf("second BulkAdd() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second BulkAdd() created %d", len(again))
	}
}

func TestAvailabilityService_BulkAddSkipsPast(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(at(10, 0))

	created, err := env.avail.BulkAdd(context.Background(), env.developer.ID, BulkAvailabilityRequest{
		StartDate:  at(0, 0),
		EndDate:    at(0, 0),
		DailyStart: 9 * time.Hour,
		DailyEnd:   11 * time.Hour,
	})
	if err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}
	if len(created) != 1 || !created[0].StartAt.Equal(at(10, 30)) {
		t.Errorf("created = %+v, want only 10:30", created)
	}
}

func TestAvailabilityService_BulkAddInsertErrors(t *testing.T) {
	req := BulkAvailabilityRequest{
		StartDate:  at(0, 0),
		EndDate:    at(0, 0),
		DailyStart: 9 * time.Hour,
		DailyEnd:   10 * time.Hour,
	}

	t.Run("競合は無視する", func(t *testing.T) {
		env := newTestEnv(t)
		env.slots.insertError = fmt.Errorf("%w: availability", model.ErrConflict)

		created, err := env.avail.BulkAdd(context.Background(), env.developer.ID, req)
		if err != nil {
			t.Fatalf("BulkAdd() error = %v", err)
		}
		if len(created) != 0 {
			t.Errorf("created = %d, want 0", len(created))
		}
		if env.slots.insertCalled != 2 {
			t.Errorf("Insert called %d times, want 2", env.slots.insertCalled)
		}
	})

	t.Run("その他のエラーは返す", func(t *testing.T) {
		env := newTestEnv(t)
		env.slots.insertError = errors.New("connection refused")

		if _, err := env.avail.BulkAdd(context.Background(), env.developer.ID, req); err == nil {
			t.Fatal("BulkAdd() error = nil")
		}
	})
}

func TestAvailabilityService_BulkAddValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  BulkAvailabilityRequest
	}{
		{
			name: "終了日が開始日より前",
			req:  BulkAvailabilityRequest{StartDate: at(0, 0), EndDate: at(0, 0).AddDate(0, 0, -1), DailyStart: 9 * time.Hour, DailyEnd: 10 * time.Hour},
		},
		{
			name: "時間帯が逆",
			req:  BulkAvailabilityRequest{StartDate: at(0, 0), EndDate: at(0, 0), DailyStart: 10 * time.Hour, DailyEnd: 9 * time.Hour},
		},
		{
			name: "30分境界でない",
			req:  BulkAvailabilityRequest{StartDate: at(0, 0), EndDate: at(0, 0), DailyStart: 9*time.Hour + 15*time.Minute, DailyEnd: 10 * time.Hour},
		},
		{
			name: "1日を超える",
			req:  BulkAvailabilityRequest{StartDate: at(0, 0), EndDate: at(0, 0), DailyStart: 23 * time.Hour, DailyEnd: 25 * time.Hour},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.avail.BulkAdd(context.Background(), env.developer.ID, tt.req)
			if !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("BulkAdd() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestEventTypeService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "新規", input: "  System Design ", wantErr: false},
		{name: "大文字小文字違いの重複", input: "TECH INTERVIEW", wantErr: true},
		{name: "空文字", input: "   ", wantErr: true},
		{name: "長すぎる", input: "abcdefghijklmnopqrs", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.eventType.Create(ctx, env.developer.ID, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("Create() error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	list, err := env.eventType.List(ctx, env.developer.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "System Design" || list[1].Name != "Tech Interview" {
		t.Errorf("List() = %+v", list)
	}
}
