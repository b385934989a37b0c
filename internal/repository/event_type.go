package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// EventTypeRepository は面接種別の永続化を担当するインターフェースです
type EventTypeRepository interface {
	ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.EventType, error)
	// FindByName は大文字小文字を区別せずに検索し、無い場合 nil を返します
	FindByName(ctx context.Context, developerID uuid.UUID, name string) (*model.EventType, error)
	Insert(ctx context.Context, eventType model.EventType) error
}

// EventTypeRepositoryImpl は面接種別の永続化を担当します
type EventTypeRepositoryImpl struct {
	db *DB
}

// NewEventTypeRepository は新しいEventTypeRepositoryを作成します
func NewEventTypeRepository(db *DB) *EventTypeRepositoryImpl {
	return &EventTypeRepositoryImpl{
		db: db,
	}
}

func (r *EventTypeRepositoryImpl) ListByDeveloper(ctx context.Context, developerID uuid.UUID) ([]model.EventType, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "EventTypeRepository.ListByDeveloper")
	defer seg.Close(nil)

	eventTypes := []model.EventType{}
	query := `SELECT id, developer_id, name FROM event_types WHERE developer_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &eventTypes, query, developerID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	return eventTypes, nil
}

func (r *EventTypeRepositoryImpl) FindByName(ctx context.Context, developerID uuid.UUID, name string) (*model.EventType, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "EventTypeRepository.FindByName")
	defer seg.Close(nil)

	var eventType model.EventType
	query := `SELECT id, developer_id, name FROM event_types WHERE developer_id = $1 AND lower(name) = $2`
	if err := r.db.GetContext(ctx, &eventType, query, developerID, strings.ToLower(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to find event type: %w", err)
	}
	return &eventType, nil
}

// Insert は (developer_id, lower(name)) の一意インデックス違反を model.ErrConflict にします
func (r *EventTypeRepositoryImpl) Insert(ctx context.Context, eventType model.EventType) error {
	ctx, seg := xray.BeginSubsegment(ctx, "EventTypeRepository.Insert")
	defer seg.Close(nil)

	query := `INSERT INTO event_types (id, developer_id, name) VALUES (:id, :developer_id, :name)`
	if _, err := r.db.NamedExecContext(ctx, query, eventType); err != nil {
		err = translateError(err)
		seg.Close(err)
		return fmt.Errorf("failed to insert event type: %w", err)
	}
	return nil
}
