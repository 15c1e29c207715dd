package models

import (
	"github.com/google/uuid"
)

const (
	ParticipationRoleLeader      = "leader"
	ParticipationRoleParticipant = "participant"
)

// EventParticipation is one roster entry: a member took part in an event
// either as leader or as participant. Both roles may write a report.
type EventParticipation struct {
	ID       uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();not null"`
	EventID  uuid.UUID `json:"eventId" db:"event_id" gorm:"type:uuid;not null;index"`
	MemberID uuid.UUID `json:"memberId" db:"member_id" gorm:"type:uuid;not null;index"`
	Role     string    `json:"role" db:"role" gorm:"type:text;not null"`
}
