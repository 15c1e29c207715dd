package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alpenclub/tour-report-backend/errs"
)

type ParticipationRepo struct {
	db *gorm.DB
}

func NewParticipationRepo(db *gorm.DB) *ParticipationRepo {
	return &ParticipationRepo{db}
}

// EventIDsForMember returns the ids of events starting inside [from, to] that
// the member took part in, as leader or as participant.
func (r *ParticipationRepo) EventIDsForMember(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("event_participations").
		Select("event_participations.event_id").
		Joins("JOIN events ON events.id = event_participations.event_id").
		Where("event_participations.member_id = ?", memberID).
		Where("events.start_date >= ? AND events.start_date <= ?", from, to).
		Scan(&ids).Error
	if err != nil {
		return nil, errs.NewDatabaseError("list", "event participations", err)
	}
	return ids, nil
}
