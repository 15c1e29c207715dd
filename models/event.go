package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event execution states. Only the substituted state has an effect on
// reports: its substitution text is copied into the event snapshot.
const (
	ExecutionStateExecutedAsPlanned    = "event_executed_as_planned"
	ExecutionStateNotExecutedAsPlanned = "event_not_executed_as_planned"
)

// Event is the calendar event a report refers to. The report service only
// reads events; they are owned by the surrounding calendar system.
type Event struct {
	ID               uuid.UUID                   `json:"id" db:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();not null"`
	Title            string                      `json:"title" db:"title" gorm:"type:text;not null"`
	StartDate        time.Time                   `json:"startDate" db:"start_date" gorm:"type:timestamp;not null"`
	EndDate          time.Time                   `json:"endDate" db:"end_date" gorm:"type:timestamp;not null"`
	Dates            datatypes.JSONSlice[int64]  `json:"dates" db:"dates"`
	Organizers       datatypes.JSONSlice[string] `json:"organizers" db:"organizers"`
	ExecutionState   string                      `json:"executionState" db:"execution_state" gorm:"type:text;not null;default:''"`
	SubstitutionText string                      `json:"substitutionText" db:"substitution_text" gorm:"type:text;not null;default:''"`
	InstructorName   string                      `json:"instructorName" db:"instructor_name" gorm:"type:text;not null;default:''"`
	InstructorEmail  string                      `json:"instructorEmail" db:"instructor_email" gorm:"type:text;not null;default:''"`
}
