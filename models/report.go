package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PublishState is the workflow rank of a report. It only ever moves forward
// under normal member action; admins may set any value.
type PublishState int

const (
	PublishStateInProgress         PublishState = 1
	PublishStateSubmittedForReview PublishState = 2
	PublishStatePublished          PublishState = 3
)

func (s PublishState) Valid() bool {
	return s >= PublishStateInProgress && s <= PublishStatePublished
}

func (s PublishState) String() string {
	switch s {
	case PublishStateInProgress:
		return "in_progress"
	case PublishStateSubmittedForReview:
		return "submitted_for_review"
	case PublishStatePublished:
		return "published"
	default:
		return "unknown"
	}
}

// Report is one member-authored trip report tied to one calendar event.
// Event fields are denormalized at creation time and refreshed by the
// maintenance job so the report stays renderable after the event is deleted.
type Report struct {
	ID             uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();not null"`
	EventID        uuid.UUID `json:"eventId" db:"event_id" gorm:"type:uuid;not null;uniqueIndex:idx_reports_author_event"`
	AuthorMemberID uuid.UUID `json:"authorMemberId" db:"author_member_id" gorm:"type:uuid;not null;uniqueIndex:idx_reports_author_event"`
	AuthorName     string    `json:"authorName" db:"author_name" gorm:"type:text;not null"`

	PublishState        PublishState `json:"publishState" db:"publish_state" gorm:"type:integer;not null;default:1"`
	CheckedByInstructor bool         `json:"checkedByInstructor" db:"checked_by_instructor" gorm:"type:boolean;not null;default:false"`

	Title                   string `json:"title" db:"title" gorm:"type:text;not null"`
	Text                    string `json:"text" db:"text" gorm:"type:text;not null;default:''"`
	TourWaypoints           string `json:"tourWaypoints" db:"tour_waypoints" gorm:"type:text;not null;default:''"`
	TourProfile             string `json:"tourProfile" db:"tour_profile" gorm:"type:text;not null;default:''"`
	TourTechDifficulty      string `json:"tourTechDifficulty" db:"tour_tech_difficulty" gorm:"type:text;not null;default:''"`
	TourHighlights          string `json:"tourHighlights" db:"tour_highlights" gorm:"type:text;not null;default:''"`
	TourPublicTransportInfo string `json:"tourPublicTransportInfo" db:"tour_public_transport_info" gorm:"type:text;not null;default:''"`
	YouTubeID               string `json:"youTubeId" db:"youtube_id" gorm:"type:text;not null;default:''"`

	// Images holds stored-image ids in upload order. CustomImageOrder, when
	// non-empty, overrides the presentation order; entries not present in
	// Images are ignored at render time.
	Images           datatypes.JSONSlice[string] `json:"images" db:"images"`
	CustomImageOrder datatypes.JSONSlice[string] `json:"customImageOrder,omitempty" db:"custom_image_order"`

	// SecurityToken grants preview access to the unpublished report without
	// authentication. Set once at creation, never rotated.
	SecurityToken string `json:"-" db:"security_token" gorm:"type:text;not null"`

	EventTitle            string                      `json:"eventTitle" db:"event_title" gorm:"type:text;not null;default:''"`
	EventStartDate        time.Time                   `json:"eventStartDate" db:"event_start_date" gorm:"type:timestamp"`
	EventEndDate          time.Time                   `json:"eventEndDate" db:"event_end_date" gorm:"type:timestamp"`
	EventDates            datatypes.JSONSlice[int64]  `json:"eventDates" db:"event_dates"`
	EventOrganizers       datatypes.JSONSlice[string] `json:"eventOrganizers" db:"event_organizers"`
	EventSubstitutionText string                      `json:"eventSubstitutionText" db:"event_substitution_text" gorm:"type:text;not null;default:''"`

	DateAdded    time.Time `json:"dateAdded" db:"date_added" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
	LastModified time.Time `json:"lastModified" db:"last_modified" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

// IsEmpty reports whether the entry carries no member-authored content yet.
// Empty entries have a shorter retention window than merely unpublished ones.
func (r *Report) IsEmpty() bool {
	return r.Text == "" && r.YouTubeID == "" && len(r.Images) == 0
}

// HasImage reports whether id is part of the gallery.
func (r *Report) HasImage(id string) bool {
	for _, existing := range r.Images {
		if existing == id {
			return true
		}
	}
	return false
}
