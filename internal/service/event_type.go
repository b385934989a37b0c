package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// EventTypeService は面接種別を管理します
type EventTypeService struct {
	eventTypes repository.EventTypeRepository
}

func NewEventTypeService(eventTypes repository.EventTypeRepository) *EventTypeService {
	return &EventTypeService{eventTypes: eventTypes}
}

func (s *EventTypeService) List(ctx context.Context, developerID uuid.UUID) ([]model.EventType, error) {
	return s.eventTypes.ListByDeveloper(ctx, developerID)
}

// Create adds a uniquely named event type (case-insensitive).
func (s *EventTypeService) Create(ctx context.Context, developerID uuid.UUID, name string) (model.EventType, error) {
	trimmed, err := model.NormalizeEventTypeName(name)
	if err != nil {
		return model.EventType{}, err
	}

	existing, err := s.eventTypes.FindByName(ctx, developerID, trimmed)
	if err != nil {
		return model.EventType{}, err
	}
	if existing != nil {
		return model.EventType{}, model.InvalidArgument("event type already exists")
	}

	eventType := model.EventType{
		ID:          uuid.New(),
		DeveloperID: developerID,
		Name:        trimmed,
	}
	if err := s.eventTypes.Insert(ctx, eventType); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return model.EventType{}, model.InvalidArgument("event type already exists")
		}
		return model.EventType{}, err
	}
	return eventType, nil
}
