package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) *EventRepo {
	return &EventRepo{db}
}

// Get returns an event by its ID
func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("event")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("find", "event", err)
	}
	return &event, nil
}
