package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpenclub/tour-report-backend/config"
	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

type lifecycleFixture struct {
	lifecycle *Lifecycle
	reports   *fakeReportStore
	events    *fakeEventStore
	roster    *fakeParticipationStore
	images    *fakeImageStore
	notifier  *fakeNotifier
	now       time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		reports:  newFakeReportStore(),
		events:   newFakeEventStore(),
		roster:   newFakeParticipationStore(),
		images:   newFakeImageStore(),
		notifier: &fakeNotifier{},
		now:      time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC),
	}

	cfg := config.Report{
		CreationWindowDays: 30,
		PageSize:           10,
		Locale:             "en",
		ReaderBaseURL:      "https://reports.example.org",
		WebmasterEmails:    []string{"webmaster@example.org"},
	}

	f.lifecycle = NewLifecycle(cfg, f.reports, f.events, f.roster, f.images, f.notifier)
	f.lifecycle.now = func() time.Time { return f.now }
	f.lifecycle.removeFile = func(string) error { return nil }
	return f
}

// addEvent registers an event that ended the given number of days before the
// fixture clock, with the member on the roster.
func (f *lifecycleFixture) addEvent(memberID uuid.UUID, endedDaysAgo int) *models.Event {
	event := &models.Event{
		ID:         uuid.New(),
		Title:      "Piz Palü traverse",
		StartDate:  f.now.AddDate(0, 0, -endedDaysAgo-1),
		EndDate:    f.now.AddDate(0, 0, -endedDaysAgo),
		Organizers: []string{"section-zurich"},
	}
	f.events.put(event)
	f.roster.add(memberID, event.ID)
	return event
}

func TestLifecycle_Create(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PublishStateInProgress, report.PublishState)
	assert.Equal(t, event.Title, report.Title)
	assert.Equal(t, event.Title, report.EventTitle)
	assert.Equal(t, []string{"section-zurich"}, []string(report.EventOrganizers))
	assert.NotEmpty(t, report.SecurityToken)
	assert.Contains(t, report.SecurityToken, strings.ReplaceAll(report.ID.String(), "-", ""))
}

func TestLifecycle_Create_DuplicateConflicts(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	_, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestLifecycle_Create_WindowExpired(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 31)

	_, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.Error(t, err)
	assert.True(t, errs.IsWindowExpired(err))
}

func TestLifecycle_Create_NonParticipantDenied(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	stranger := uuid.New()
	_, err := f.lifecycle.Create(context.Background(), stranger, "No Show", event.ID)
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestLifecycle_Create_SubstitutionTextOnlyWhenNotExecutedAsPlanned(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()

	event := f.addEvent(member, 2)
	event.ExecutionState = models.ExecutionStateExecutedAsPlanned
	event.SubstitutionText = "went to the Bernina instead"
	f.events.put(event)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)
	assert.Empty(t, report.EventSubstitutionText)

	other := f.addEvent(member, 2)
	other.ExecutionState = models.ExecutionStateNotExecutedAsPlanned
	other.SubstitutionText = "went to the Bernina instead"
	f.events.put(other)

	report, err = f.lifecycle.Create(context.Background(), member, "Eva Keller", other.ID)
	require.NoError(t, err)
	assert.Equal(t, "went to the Bernina instead", report.EventSubstitutionText)
}

func TestLifecycle_RequestStateChange_ForwardOnly(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	report, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, member)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStateSubmittedForReview, report.PublishState)

	// Backward is refused even for the author
	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateInProgress, member)
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))

	// Same state is a no-op
	report, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, member)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStateSubmittedForReview, report.PublishState)
}

func TestLifecycle_RequestStateChange_OnlyAuthor(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, uuid.New())
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestLifecycle_RequestStateChange_InvalidState(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishState(9), member)
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestLifecycle_RequestStateChange_NotifiesExactlyOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)
	event.InstructorEmail = "guide@example.org"
	event.InstructorName = "Reto Baumann"
	f.events.put(event)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, member)
	require.NoError(t, err)
	require.Equal(t, 1, f.notifier.count())

	sub := f.notifier.submissions[0]
	assert.Equal(t, "Reto Baumann", sub.InstructorName)
	assert.Equal(t, []string{"webmaster@example.org"}, sub.WebmasterEmails)
	assert.Contains(t, sub.PreviewLink, "securityToken=")

	// Re-requesting the same state must not notify again
	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, member)
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count())

	// Neither does the move into Published
	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStatePublished, member)
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count())
}

func TestLifecycle_RequestStateChange_NotifierFailureIsSwallowed(t *testing.T) {
	f := newLifecycleFixture(t)
	f.notifier.err = context.DeadlineExceeded
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	report, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStateSubmittedForReview, member)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStateSubmittedForReview, report.PublishState)
}

func TestLifecycle_PublishGatedOnImageCompleteness(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	complete := &models.StoredImage{ID: uuid.New(), ReportID: report.ID}
	complete.SetMetaFor("en", models.ImageMeta{Caption: "Summit ridge", Photographer: "Eva Keller"})
	f.images.put(complete)

	incomplete := &models.StoredImage{ID: uuid.New(), ReportID: report.ID}
	incomplete.SetMetaFor("en", models.ImageMeta{Caption: "Crossing the bergschrund"})
	f.images.put(incomplete)

	report, err = f.lifecycle.AppendImage(context.Background(), report.ID, complete.ID.String())
	require.NoError(t, err)
	report, err = f.lifecycle.AppendImage(context.Background(), report.ID, incomplete.ID.String())
	require.NoError(t, err)

	_, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStatePublished, member)
	require.Error(t, err)
	assert.True(t, errs.IsIncompleteImageMetadata(err))

	// Completing the second image unblocks the transition
	incomplete.SetMetaFor("en", models.ImageMeta{Caption: "Crossing the bergschrund", Photographer: "Eva Keller"})
	f.images.put(incomplete)

	report, err = f.lifecycle.RequestStateChange(context.Background(), report.ID, models.PublishStatePublished, member)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStatePublished, report.PublishState)
}

func TestLifecycle_AdminSetState_BypassesGates(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	report, err = f.lifecycle.AdminSetState(context.Background(), report.ID, models.PublishStatePublished)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStatePublished, report.PublishState)

	// And backward again
	report, err = f.lifecycle.AdminSetState(context.Background(), report.ID, models.PublishStateInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStateInProgress, report.PublishState)
}

func TestLifecycle_CanEdit_WindowBoundary(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()

	report := &models.Report{
		ID:             uuid.New(),
		AuthorMemberID: member,
		PublishState:   models.PublishStateInProgress,
		EventEndDate:   time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC),
	}

	deadline := report.EventEndDate.Add(30 * 24 * time.Hour)

	assert.True(t, f.lifecycle.CanEdit(report, member, deadline.Add(-time.Second)))
	// The boundary second itself is still editable
	assert.True(t, f.lifecycle.CanEdit(report, member, deadline))
	assert.False(t, f.lifecycle.CanEdit(report, member, deadline.Add(time.Second)))

	// Non-authors and published reports never pass
	assert.False(t, f.lifecycle.CanEdit(report, uuid.New(), deadline.Add(-time.Hour)))
	report.PublishState = models.PublishStatePublished
	assert.False(t, f.lifecycle.CanEdit(report, member, deadline.Add(-time.Hour)))
}

func TestLifecycle_CanEdit_ShortWindow(t *testing.T) {
	cfg := config.Report{CreationWindowDays: 5, PageSize: 10, Locale: "en"}
	lifecycle := NewLifecycle(cfg, newFakeReportStore(), newFakeEventStore(), newFakeParticipationStore(), newFakeImageStore(), &fakeNotifier{})

	member := uuid.New()
	t0 := time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)
	report := &models.Report{
		ID:             uuid.New(),
		AuthorMemberID: member,
		PublishState:   models.PublishStateInProgress,
		EventEndDate:   t0.AddDate(0, 0, -1),
	}

	assert.True(t, lifecycle.CanEdit(report, member, t0.AddDate(0, 0, 4)))
	assert.False(t, lifecycle.CanEdit(report, member, t0.AddDate(0, 0, 6)))
}

func TestLifecycle_ResolveVisibility(t *testing.T) {
	f := newLifecycleFixture(t)

	report := &models.Report{
		PublishState:  models.PublishStateInProgress,
		SecurityToken: "abc123token",
	}

	assert.Equal(t, VisibilityDenied, f.lifecycle.ResolveVisibility(report, ""))
	assert.Equal(t, VisibilityDenied, f.lifecycle.ResolveVisibility(report, "wrong"))
	assert.Equal(t, VisibilityPreviewViaToken, f.lifecycle.ResolveVisibility(report, "abc123token"))

	report.PublishState = models.PublishStatePublished
	assert.Equal(t, VisibilityPublic, f.lifecycle.ResolveVisibility(report, ""))
}

func TestLifecycle_GetForRead_DeniedReadsAsNotFound(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	_, _, err = f.lifecycle.GetForRead(context.Background(), report.ID, "")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	got, vis, err := f.lifecycle.GetForRead(context.Background(), report.ID, report.SecurityToken)
	require.NoError(t, err)
	assert.Equal(t, VisibilityPreviewViaToken, vis)
	assert.Equal(t, report.ID, got.ID)
}

func TestLifecycle_UpdateContent(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	title := "Traverse in perfect conditions"
	text := "We started at 4am from the hut."
	report, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{
		Title: &title,
		Text:  &text,
	})
	require.NoError(t, err)
	assert.Equal(t, title, report.Title)
	assert.Equal(t, text, report.Text)

	// Nil fields stay untouched
	waypoints := "Hut - Fuorcla - Summit"
	report, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{
		TourWaypoints: &waypoints,
	})
	require.NoError(t, err)
	assert.Equal(t, title, report.Title)
	assert.Equal(t, waypoints, report.TourWaypoints)
}

func TestLifecycle_UpdateContent_Validation(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	tooLong := strings.Repeat("x", 251)
	_, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{Title: &tooLong})
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))

	empty := ""
	_, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{Title: &empty})
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))

	longYouTube := "abcdefghijkl"
	_, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{YouTubeID: &longYouTube})
	require.Error(t, err)
	assert.True(t, errs.IsValidationFailed(err))
}

func TestLifecycle_UpdateContent_AfterWindowExpired(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, 40)

	text := "too late"
	_, err = f.lifecycle.UpdateContent(context.Background(), report.ID, member, ContentUpdate{Text: &text})
	require.Error(t, err)
	assert.True(t, errs.IsWindowExpired(err))
}

// pausingReportStore parks every Update call until the gate channel closes,
// letting a test slot a competing write in between.
type pausingReportStore struct {
	*fakeReportStore
	gate chan struct{}
}

func (s *pausingReportStore) Update(ctx context.Context, id uuid.UUID, apply func(*models.Report) (bool, error)) (*models.Report, error) {
	<-s.gate
	return s.fakeReportStore.Update(ctx, id, apply)
}

func TestLifecycle_UpdateContent_ConcurrentPublishNotOverwritten(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	gate := make(chan struct{})
	editor := *f.lifecycle
	editor.reports = &pausingReportStore{fakeReportStore: f.reports, gate: gate}

	done := make(chan error, 1)
	go func() {
		title := "Traverse in perfect conditions"
		_, err := editor.UpdateContent(context.Background(), report.ID, member, ContentUpdate{Title: &title})
		done <- err
	}()

	// The edit is parked before its locked read; a reviewer publishes now.
	_, err = f.lifecycle.AdminSetState(context.Background(), report.ID, models.PublishStatePublished)
	require.NoError(t, err)

	close(gate)
	err = <-done
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))

	stored, err := f.reports.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishStatePublished, stored.PublishState)
	assert.Equal(t, event.Title, stored.Title)
}

func TestLifecycle_RemoveImage(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	img := &models.StoredImage{ID: uuid.New(), ReportID: report.ID, Path: "/nonexistent/img.jpg"}
	f.images.put(img)
	_, err = f.lifecycle.AppendImage(context.Background(), report.ID, img.ID.String())
	require.NoError(t, err)

	var removedPaths []string
	f.lifecycle.removeFile = func(path string) error {
		removedPaths = append(removedPaths, path)
		return nil
	}

	require.NoError(t, f.lifecycle.RemoveImage(context.Background(), report.ID, member, img.ID))

	got, err := f.reports.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Images)
	assert.Equal(t, []string{"/nonexistent/img.jpg"}, removedPaths)

	_, err = f.images.Get(context.Background(), img.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestLifecycle_OrderedImages(t *testing.T) {
	f := newLifecycleFixture(t)

	report := &models.Report{
		Images:           []string{"a", "b", "c"},
		CustomImageOrder: []string{"c", "ghost", "a", "c"},
	}

	// Orphans are skipped, duplicates collapse, unordered images follow
	assert.Equal(t, []string{"c", "a", "b"}, f.lifecycle.OrderedImages(report))

	report.CustomImageOrder = nil
	assert.Equal(t, []string{"a", "b", "c"}, f.lifecycle.OrderedImages(report))
}

func TestLifecycle_Gallery(t *testing.T) {
	f := newLifecycleFixture(t)
	member := uuid.New()
	event := f.addEvent(member, 2)

	report, err := f.lifecycle.Create(context.Background(), member, "Eva Keller", event.ID)
	require.NoError(t, err)

	img := &models.StoredImage{ID: uuid.New(), ReportID: report.ID, Name: "summit.jpg", RotationDeg: 90}
	img.SetMetaFor("en", models.ImageMeta{Caption: "On the summit", Photographer: "Eva Keller", Alt: "rope team"})
	f.images.put(img)

	report, err = f.lifecycle.AppendImage(context.Background(), report.ID, img.ID.String())
	require.NoError(t, err)
	// A dangling reference must not break rendering
	report, err = f.lifecycle.AppendImage(context.Background(), report.ID, uuid.NewString())
	require.NoError(t, err)

	gallery, err := f.lifecycle.Gallery(context.Background(), report)
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	assert.Equal(t, "On the summit", gallery[0].Caption)
	assert.Equal(t, "Eva Keller", gallery[0].Photographer)
	assert.Equal(t, 90, gallery[0].RotationDeg)
}

func TestLifecycle_ListPublished_Paging(t *testing.T) {
	f := newLifecycleFixture(t)

	for i := 0; i < 12; i++ {
		f.reports.put(&models.Report{
			ID:              uuid.New(),
			EventID:         uuid.New(),
			AuthorMemberID:  uuid.New(),
			PublishState:    models.PublishStatePublished,
			EventOrganizers: []string{"section-zurich"},
		})
	}

	page1, total, err := f.lifecycle.ListPublished(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, page1, 10)

	page2, _, err := f.lifecycle.ListPublished(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	none, total, err := f.lifecycle.ListPublished(context.Background(), "section-uto", 1)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestLifecycle_PreviewLink(t *testing.T) {
	f := newLifecycleFixture(t)

	report := &models.Report{ID: uuid.New(), SecurityToken: "tok123"}
	link := f.lifecycle.PreviewLink(report)
	assert.Equal(t, "https://reports.example.org/report/"+report.ID.String()+"?securityToken=tok123", link)
}
