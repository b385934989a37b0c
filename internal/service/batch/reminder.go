package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/common/clock"
	"github.com/uma-arai/sbcntr-calendar/internal/common/logger"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// Horizon はリマインドを送る開始前の時間です
type Horizon time.Duration

const (
	Horizon24h = Horizon(24 * time.Hour)
	Horizon1h  = Horizon(time.Hour)
)

// Horizons は1回の実行で確認するリマインドの種類です
var Horizons = []Horizon{Horizon24h, Horizon1h}

func (h Horizon) String() string {
	return model.FormatUntil(time.Duration(h))
}

const (
	// horizonTolerance は horizon の前後に許容する幅です
	horizonTolerance = 15 * time.Minute
	// pruneAfter を過ぎて開始済みの予約は送信済み記録から外します
	pruneAfter = 30 * time.Minute
)

// BookingFinder はリマインド対象の予約を検索します
type BookingFinder interface {
	ApprovedStartingWithin(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	FindByID(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error)
}

// DeveloperFinder は予約の所有者を取得します
type DeveloperFinder interface {
	GetDeveloper(ctx context.Context, id uuid.UUID) (model.Developer, error)
}

// ReminderSender はリマインドの送信先です
type ReminderSender interface {
	SendReminder(ctx context.Context, developer model.Developer, booking model.Booking, untilStart time.Duration) error
}

// ReminderSummary は1回の実行結果です
type ReminderSummary struct {
	Pruned  int
	Sent    int
	Failed  int
	Skipped int
}

// ReminderBatchService は承認済み予約のリマインドを送信します
// 送信済みの (予約, horizon) はプロセス内で保持し、同じ組を二度送りません
type ReminderBatchService struct {
	bookings   BookingFinder
	developers DeveloperFinder
	sender     ReminderSender
	clock      clock.Clock

	// runMu は実行を1つに制限します
	runMu      sync.Mutex
	mu         sync.RWMutex
	dispatched map[uuid.UUID]map[Horizon]struct{}
}

// NewReminderBatchService は新しいReminderBatchServiceを作成します
func NewReminderBatchService(bookings BookingFinder, developers DeveloperFinder, sender ReminderSender, clk clock.Clock) *ReminderBatchService {
	return &ReminderBatchService{
		bookings:   bookings,
		developers: developers,
		sender:     sender,
		clock:      clk,
		dispatched: make(map[uuid.UUID]map[Horizon]struct{}),
	}
}

// Run はリマインドバッチ処理を実行します
func (s *ReminderBatchService) Run(ctx context.Context) error {
	_, err := s.Dispatch(ctx)
	return err
}

// Dispatch prunes the dedup set and sends every due reminder once.
func (s *ReminderBatchService) Dispatch(ctx context.Context) (ReminderSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.Run")
	defer seg.Close(nil)

	startTime := time.Now()
	now := s.clock.Now()
	var summary ReminderSummary

	pruned, err := s.prune(ctx, now)
	if err != nil {
		seg.Close(err)
		return summary, err
	}
	summary.Pruned = pruned

	for _, h := range Horizons {
		target := now.Add(time.Duration(h))
		bookings, err := s.bookings.ApprovedStartingWithin(ctx, target.Add(-horizonTolerance), target.Add(horizonTolerance))
		if err != nil {
			seg.Close(err)
			return summary, fmt.Errorf("failed to find bookings for %s reminder: %w", h, err)
		}

		for _, booking := range bookings {
			untilStart := booking.StartAt.Sub(now)
			if untilStart < 0 || s.isDispatched(booking.ID, h) {
				summary.Skipped++
				continue
			}

			developer, err := s.developers.GetDeveloper(ctx, booking.DeveloperID)
			if err != nil {
				// 次回の実行で再試行する
				logger.WarnContext(ctx, "failed to load developer for reminder",
					"booking_id", booking.ID, "developer_id", booking.DeveloperID, "error", err)
				summary.Failed++
				continue
			}

			if err := s.sender.SendReminder(ctx, developer, booking, untilStart); err != nil {
				logger.WarnContext(ctx, "failed to send reminder",
					"booking_id", booking.ID, "horizon", h.String(), "error", err)
				summary.Failed++
			} else {
				summary.Sent++
			}
			s.markDispatched(booking.ID, h)
		}
	}

	duration := time.Since(startTime)
	if seg != nil {
		if err := seg.AddMetadata("sent", summary.Sent); err != nil {
			logger.WarnContext(ctx, "failed to add sent metadata", "error", err)
		}
		if err := seg.AddMetadata("duration", duration.String()); err != nil {
			logger.WarnContext(ctx, "failed to add duration metadata", "error", err)
		}
	}

	logger.InfoContext(ctx, "reminder batch completed",
		"sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped,
		"pruned", summary.Pruned, "duration", duration.String())
	return summary, nil
}

// prune は削除済み、または開始から pruneAfter 以上経過した予約を送信済み記録から外します
func (s *ReminderBatchService) prune(ctx context.Context, now time.Time) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReminderBatchService.prune")
	defer seg.Close(nil)

	cutoff := now.Add(-pruneAfter)
	var stale []uuid.UUID
	for _, id := range s.trackedIDs() {
		booking, err := s.bookings.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				stale = append(stale, id)
				continue
			}
			seg.Close(err)
			return 0, fmt.Errorf("failed to prune reminders: %w", err)
		}
		if booking.StartAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}

	s.mu.Lock()
	for _, id := range stale {
		delete(s.dispatched, id)
	}
	s.mu.Unlock()
	return len(stale), nil
}

func (s *ReminderBatchService) trackedIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.dispatched))
	for id := range s.dispatched {
		ids = append(ids, id)
	}
	return ids
}

func (s *ReminderBatchService) isDispatched(id uuid.UUID, h Horizon) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dispatched[id][h]
	return ok
}

func (s *ReminderBatchService) markDispatched(id uuid.UUID, h Horizon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.dispatched[id]
	if !ok {
		set = make(map[Horizon]struct{}, len(Horizons))
		s.dispatched[id] = set
	}
	set[h] = struct{}{}
}

// Dispatched returns a copy of the dedup set for diagnostics.
func (s *ReminderBatchService) Dispatched() map[uuid.UUID][]Horizon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID][]Horizon, len(s.dispatched))
	for id, set := range s.dispatched {
		for _, h := range Horizons {
			if _, ok := set[h]; ok {
				out[id] = append(out[id], h)
			}
		}
	}
	return out
}
