package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alpenclub/tour-report-backend/models"
)

// Store contracts consumed by the report services. The database package
// provides the gorm-backed implementations; tests use in-memory fakes.

type ReportStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
	GetByAuthorAndEvent(ctx context.Context, memberID, eventID uuid.UUID) (*models.Report, error)
	Insert(ctx context.Context, report *models.Report) error
	// Update loads the report under a write lock, applies the mutation and
	// persists the result in the same transaction. The apply func returns
	// false to skip the write when nothing changed.
	Update(ctx context.Context, id uuid.UUID, apply func(*models.Report) (bool, error)) (*models.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Report, error)
	ListPublished(ctx context.Context, organizer string, offset, limit int) ([]*models.Report, int64, error)
	AttachImage(ctx context.Context, reportID uuid.UUID, img *models.StoredImage) error
}

type EventStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

type ParticipationStore interface {
	EventIDsForMember(ctx context.Context, memberID uuid.UUID, from, to time.Time) ([]uuid.UUID, error)
}

type ImageStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.StoredImage, error)
	GetMany(ctx context.Context, ids []string) ([]*models.StoredImage, error)
	Save(ctx context.Context, img *models.StoredImage) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByReport(ctx context.Context, reportID uuid.UUID) error
}

// NewSubmission carries the contact and link data of a freshly submitted
// report to the notification dispatcher.
type NewSubmission struct {
	ReportID        uuid.UUID
	ReportTitle     string
	ReportText      string
	EventID         uuid.UUID
	EventTitle      string
	AuthorName      string
	InstructorName  string
	InstructorEmail string
	WebmasterEmails []string
	PreviewLink     string
}

// Notifier dispatches the fire-and-forget "new report submitted" event.
// Failures are logged by the caller and never block the state transition.
type Notifier interface {
	NotifyNewSubmission(ctx context.Context, n NewSubmission) error
}
