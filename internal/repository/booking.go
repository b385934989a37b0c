package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// BookingRepository は予約の永続化を担当するインターフェースです
type BookingRepository interface {
	Insert(ctx context.Context, booking model.Booking) error
	// UpdateStatus は辞退済みの予約を変更せず model.ErrBookingDeclined を返します
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error
	// FindByID は予約が無い場合 model.ErrNotFound を返します
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	FindByIDAndDeveloper(ctx context.Context, id, developerID uuid.UUID) (*model.Booking, error)
	ListInRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	// ListByStatusInRange は全開発者を対象に検索します
	ListByStatusInRange(ctx context.Context, status model.BookingStatus, from, to time.Time) ([]model.Booking, error)
	ListByDeveloperStatusInRange(ctx context.Context, developerID uuid.UUID, status model.BookingStatus, from, to time.Time) ([]model.Booking, error)
}

// BookingRepositoryImpl は予約の永続化を担当します
type BookingRepositoryImpl struct {
	db *DB
}

// NewBookingRepository は新しいBookingRepositoryを作成します
func NewBookingRepository(db *DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{
		db: db,
	}
}

const bookingColumns = `id, developer_id, created_by_role, event_type_name, start_at, duration_minutes,
	status, company, hr_name, hr_email, meeting_link, created_at`

// Insert は予約を作成します
func (r *BookingRepositoryImpl) Insert(ctx context.Context, booking model.Booking) error {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.Insert")
	defer seg.Close(nil)

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (
			:id, :developer_id, :created_by_role, :event_type_name, :start_at, :duration_minutes,
			:status, :company, :hr_name, :hr_email, :meeting_link, :created_at
		)`

	booking.StartAt = booking.StartAt.UTC()
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		err = translateError(err)
		seg.Close(err)
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// UpdateStatus は予約のステータスを更新します
func (r *BookingRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.UpdateStatus")
	defer seg.Close(nil)

	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $1 WHERE id = $2 AND status <> $3`,
		status, id, model.BookingStatusDeclined)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 存在しないのか辞退済みなのかを区別する
		var current model.BookingStatus
		if err := r.db.GetContext(ctx, &current, `SELECT status FROM bookings WHERE id = $1`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.NotFound("booking not found")
			}
			seg.Close(err)
			return fmt.Errorf("failed to get booking status: %w", err)
		}
		return model.ErrBookingDeclined
	}
	return nil
}

// FindByID は予約を取得します
func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.FindByID")
	defer seg.Close(nil)

	return r.get(ctx, seg, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// FindByIDAndDeveloper は開発者に属する予約を取得します
func (r *BookingRepositoryImpl) FindByIDAndDeveloper(ctx context.Context, id, developerID uuid.UUID) (*model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.FindByIDAndDeveloper")
	defer seg.Close(nil)

	return r.get(ctx, seg, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND developer_id = $2`, id, developerID)
}

// ListInRange は開発者の指定期間の予約を取得します
func (r *BookingRepositoryImpl) ListInRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.ListInRange")
	defer seg.Close(nil)

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE developer_id = $1 AND start_at BETWEEN $2 AND $3
		ORDER BY start_at`

	return r.selectBookings(ctx, seg, query, developerID, from.UTC(), to.UTC())
}

// ListByStatusInRange は全開発者の指定ステータスの予約を取得します
func (r *BookingRepositoryImpl) ListByStatusInRange(ctx context.Context, status model.BookingStatus, from, to time.Time) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.ListByStatusInRange")
	defer seg.Close(nil)

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND start_at BETWEEN $2 AND $3
		ORDER BY start_at`

	return r.selectBookings(ctx, seg, query, status, from.UTC(), to.UTC())
}

// ListByDeveloperStatusInRange は開発者の指定ステータスの予約を取得します
func (r *BookingRepositoryImpl) ListByDeveloperStatusInRange(ctx context.Context, developerID uuid.UUID, status model.BookingStatus, from, to time.Time) ([]model.Booking, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "BookingRepository.ListByDeveloperStatusInRange")
	defer seg.Close(nil)

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE developer_id = $1 AND status = $2 AND start_at BETWEEN $3 AND $4
		ORDER BY start_at`

	return r.selectBookings(ctx, seg, query, developerID, status, from.UTC(), to.UTC())
}

func (r *BookingRepositoryImpl) get(ctx context.Context, seg *xray.Segment, query string, args ...interface{}) (*model.Booking, error) {
	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("booking not found")
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	booking.StartAt = booking.StartAt.UTC()
	return &booking, nil
}

func (r *BookingRepositoryImpl) selectBookings(ctx context.Context, seg *xray.Segment, query string, args ...interface{}) ([]model.Booking, error) {
	bookings := []model.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	for i := range bookings {
		bookings[i].StartAt = bookings[i].StartAt.UTC()
	}
	return bookings, nil
}
