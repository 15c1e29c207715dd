package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

// In-memory store fakes. The maintenance job hits them from several
// goroutines, so every method takes the mutex.

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*models.Report
	saves   int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[uuid.UUID]*models.Report)}
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	c.Images = append(datatypes.JSONSlice[string]{}, r.Images...)
	c.CustomImageOrder = append(datatypes.JSONSlice[string]{}, r.CustomImageOrder...)
	c.EventDates = append(datatypes.JSONSlice[int64]{}, r.EventDates...)
	c.EventOrganizers = append(datatypes.JSONSlice[string]{}, r.EventOrganizers...)
	return &c
}

func (s *fakeReportStore) put(r *models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = cloneReport(r)
}

func (s *fakeReportStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeReportStore) Get(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, errs.NewNotFound("report")
	}
	return cloneReport(r), nil
}

func (s *fakeReportStore) GetByAuthorAndEvent(_ context.Context, memberID, eventID uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.AuthorMemberID == memberID && r.EventID == eventID {
			return cloneReport(r), nil
		}
	}
	return nil, errs.NewNotFound("report")
}

func (s *fakeReportStore) Insert(_ context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.AuthorMemberID == report.AuthorMemberID && r.EventID == report.EventID {
			return errs.NewConflict("report for this event")
		}
	}
	s.reports[report.ID] = cloneReport(report)
	return nil
}

func (s *fakeReportStore) Update(_ context.Context, id uuid.UUID, apply func(*models.Report) (bool, error)) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.reports[id]
	if !ok {
		return nil, errs.NewNotFound("report")
	}
	working := cloneReport(stored)
	save, err := apply(working)
	if err != nil {
		return nil, err
	}
	if save {
		s.reports[id] = cloneReport(working)
		s.saves++
	}
	return working, nil
}

func (s *fakeReportStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, id)
	return nil
}

func (s *fakeReportStore) List(_ context.Context) ([]*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, cloneReport(r))
	}
	return out, nil
}

func (s *fakeReportStore) ListPublished(_ context.Context, organizer string, offset, limit int) ([]*models.Report, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matching := make([]*models.Report, 0)
	for _, r := range s.reports {
		if r.PublishState != models.PublishStatePublished {
			continue
		}
		if organizer != "" && !containsString(r.EventOrganizers, organizer) {
			continue
		}
		matching = append(matching, cloneReport(r))
	}
	total := int64(len(matching))
	if offset >= len(matching) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], total, nil
}

func (s *fakeReportStore) AttachImage(_ context.Context, reportID uuid.UUID, img *models.StoredImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return errs.NewNotFound("report")
	}
	r.Images = append(r.Images, img.ID.String())
	r.LastModified = img.DateAdded
	return nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

type fakeEventStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[uuid.UUID]*models.Event)}
}

func (s *fakeEventStore) put(e *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.events[e.ID] = &c
}

func (s *fakeEventStore) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

func (s *fakeEventStore) Get(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, errs.NewNotFound("event")
	}
	c := *e
	return &c, nil
}

type fakeParticipationStore struct {
	mu       sync.Mutex
	byMember map[uuid.UUID][]uuid.UUID
}

func newFakeParticipationStore() *fakeParticipationStore {
	return &fakeParticipationStore{byMember: make(map[uuid.UUID][]uuid.UUID)}
}

func (s *fakeParticipationStore) add(memberID, eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMember[memberID] = append(s.byMember[memberID], eventID)
}

func (s *fakeParticipationStore) EventIDsForMember(_ context.Context, memberID uuid.UUID, _, _ time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID{}, s.byMember[memberID]...), nil
}

type fakeImageStore struct {
	mu     sync.Mutex
	images map[uuid.UUID]*models.StoredImage
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{images: make(map[uuid.UUID]*models.StoredImage)}
}

func (s *fakeImageStore) put(img *models.StoredImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *img
	s.images[img.ID] = &c
}

func (s *fakeImageStore) Get(_ context.Context, id uuid.UUID) (*models.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return nil, errs.NewNotFound("image")
	}
	c := *img
	return &c, nil
}

func (s *fakeImageStore) GetMany(_ context.Context, ids []string) ([]*models.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.StoredImage, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if img, ok := s.images[id]; ok {
			c := *img
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *fakeImageStore) Save(_ context.Context, img *models.StoredImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *img
	s.images[img.ID] = &c
	return nil
}

func (s *fakeImageStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, id)
	return nil
}

func (s *fakeImageStore) DeleteByReport(_ context.Context, reportID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, img := range s.images {
		if img.ReportID == reportID {
			delete(s.images, id)
		}
	}
	return nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	submissions []NewSubmission
	err         error
}

func (n *fakeNotifier) NotifyNewSubmission(_ context.Context, sub NewSubmission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.submissions = append(n.submissions, sub)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.submissions)
}
