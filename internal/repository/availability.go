package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// AvailabilityRepository は空き枠の永続化を担当するインターフェースです
type AvailabilityRepository interface {
	// ListInRange は from 以上 to 以下の枠を開始時刻順に返します
	ListInRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error)
	// LockRange は [from, to) の枠をトランザクション終了までロックして返します
	LockRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error)
	Exists(ctx context.Context, developerID uuid.UUID, start time.Time) (bool, error)
	// FindOne は枠が無い場合 nil を返します
	FindOne(ctx context.Context, developerID uuid.UUID, start time.Time) (*model.AvailabilitySlot, error)
	// Insert は同じ開始時刻の枠が既にある場合 model.ErrConflict を返します
	Insert(ctx context.Context, slot model.AvailabilitySlot) error
	DeleteOne(ctx context.Context, slot model.AvailabilitySlot) error
	// DeleteMany は全件削除するか、1件も削除しないかのどちらかです
	DeleteMany(ctx context.Context, slots []model.AvailabilitySlot) error
}

// AvailabilityRepositoryImpl は空き枠の永続化を担当します
// (developer_id, start_at) の一意インデックスを前提とします
type AvailabilityRepositoryImpl struct {
	db *DB
}

// NewAvailabilityRepository は新しいAvailabilityRepositoryを作成します
func NewAvailabilityRepository(db *DB) *AvailabilityRepositoryImpl {
	return &AvailabilityRepositoryImpl{
		db: db,
	}
}

const availabilityColumns = `id, developer_id, start_at, duration_minutes`

// ListInRange は指定期間の空き枠を取得します
func (r *AvailabilityRepositoryImpl) ListInRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.ListInRange")
	defer seg.Close(nil)

	query := `
		SELECT ` + availabilityColumns + `
		FROM availability_slots
		WHERE developer_id = $1 AND start_at BETWEEN $2 AND $3
		ORDER BY start_at`

	var slots []model.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, developerID, from.UTC(), to.UTC()); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	return normalizeSlots(slots), nil
}

// LockRange は指定範囲の空き枠を行ロック付きで取得します
// 先行するトランザクションが枠を削除してコミットした場合、待機後の結果から除かれます
func (r *AvailabilityRepositoryImpl) LockRange(ctx context.Context, developerID uuid.UUID, from, to time.Time) ([]model.AvailabilitySlot, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.LockRange")
	defer seg.Close(nil)

	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); !ok {
		err := errors.New("lock range requires a transaction")
		seg.Close(err)
		return nil, err
	}

	query := `
		SELECT ` + availabilityColumns + `
		FROM availability_slots
		WHERE developer_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at
		FOR UPDATE`

	var slots []model.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, developerID, from.UTC(), to.UTC()); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to lock availability: %w", err)
	}
	return normalizeSlots(slots), nil
}

// Exists は指定開始時刻の空き枠が存在するか確認します
func (r *AvailabilityRepositoryImpl) Exists(ctx context.Context, developerID uuid.UUID, start time.Time) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.Exists")
	defer seg.Close(nil)

	query := `
		SELECT EXISTS(
			SELECT 1 FROM availability_slots WHERE developer_id = $1 AND start_at = $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, developerID, start.UTC()); err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return exists, nil
}

// FindOne は指定開始時刻の空き枠を取得します
func (r *AvailabilityRepositoryImpl) FindOne(ctx context.Context, developerID uuid.UUID, start time.Time) (*model.AvailabilitySlot, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.FindOne")
	defer seg.Close(nil)

	query := `
		SELECT ` + availabilityColumns + `
		FROM availability_slots
		WHERE developer_id = $1 AND start_at = $2`

	var slot model.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, developerID, start.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to find availability: %w", err)
	}
	slot.StartAt = slot.StartAt.UTC()
	return &slot, nil
}

// Insert は空き枠を作成します
func (r *AvailabilityRepositoryImpl) Insert(ctx context.Context, slot model.AvailabilitySlot) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.Insert")
	defer seg.Close(nil)

	query := `
		INSERT INTO availability_slots (` + availabilityColumns + `)
		VALUES (:id, :developer_id, :start_at, :duration_minutes)`

	slot.StartAt = slot.StartAt.UTC()
	err := r.db.withSavepoint(ctx, "availability_insert", func() error {
		_, err := r.db.NamedExecContext(ctx, query, slot)
		return err
	})
	if err != nil {
		err = translateError(err)
		if errors.Is(err, model.ErrConflict) {
			return err
		}
		seg.Close(err)
		return fmt.Errorf("failed to insert availability: %w", err)
	}
	return nil
}

// DeleteOne は空き枠を1件削除します
func (r *AvailabilityRepositoryImpl) DeleteOne(ctx context.Context, slot model.AvailabilitySlot) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.DeleteOne")
	defer seg.Close(nil)

	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = $1`, slot.ID); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	return nil
}

// DeleteMany は複数の空き枠を1文で削除します
// 件数が一致しない場合はエラーとし、呼び出し側のトランザクションをロールバックさせます
func (r *AvailabilityRepositoryImpl) DeleteMany(ctx context.Context, slots []model.AvailabilitySlot) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AvailabilityRepository.DeleteMany")
	defer seg.Close(nil)

	if len(slots) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}

	query, args, err := sqlx.In(`DELETE FROM availability_slots WHERE id IN (?)`, ids)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to delete availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != int64(len(slots)) {
		err := fmt.Errorf("deleted %d of %d availability slots", rowsAffected, len(slots))
		seg.Close(err)
		return err
	}
	return nil
}

func normalizeSlots(slots []model.AvailabilitySlot) []model.AvailabilitySlot {
	for i := range slots {
		slots[i].StartAt = slots[i].StartAt.UTC()
	}
	if slots == nil {
		return []model.AvailabilitySlot{}
	}
	return slots
}
