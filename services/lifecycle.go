package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alpenclub/tour-report-backend/config"
	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

// Visibility is the outcome of resolving read access to a report.
type Visibility int

const (
	VisibilityDenied Visibility = iota
	VisibilityPublic
	VisibilityPreviewViaToken
)

// Content length bounds, matching the write form limits.
const (
	maxTitleLen            = 250
	maxTextLen             = 1700
	maxWaypointsLen        = 300
	maxYouTubeIDLen        = 11
	maxSubstitutionTextLen = 250
)

// Lifecycle owns the publish-state machine of a report: creation gating,
// forward-only state transitions, edit-window and image-completeness gates,
// and gallery mutation while the report is still editable.
type Lifecycle struct {
	cfg      config.Report
	reports  ReportStore
	events   EventStore
	roster   ParticipationStore
	images   ImageStore
	notifier Notifier
	logger   zerolog.Logger

	// overridable in tests
	now        func() time.Time
	removeFile func(path string) error
}

func NewLifecycle(cfg config.Report, reports ReportStore, events EventStore, roster ParticipationStore, images ImageStore, notifier Notifier) *Lifecycle {
	return &Lifecycle{
		cfg:        cfg,
		reports:    reports,
		events:     events,
		roster:     roster,
		images:     images,
		notifier:   notifier,
		logger:     log.With().Str("service", "lifecycle").Logger(),
		now:        time.Now,
		removeFile: os.Remove,
	}
}

// Create opens a new report for (member, event). The event must still exist,
// its end date plus the creation window must not have passed, and the member
// must appear in the event roster. At most one report per (member, event)
// exists; a duplicate attempt fails with Conflict.
func (l *Lifecycle) Create(ctx context.Context, memberID uuid.UUID, memberName string, eventID uuid.UUID) (*models.Report, error) {
	event, err := l.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if now.After(event.EndDate.Add(l.cfg.CreationWindow())) {
		return nil, errs.NewWindowExpired("the deadline for writing a report for this event has passed")
	}

	from := now
	if l.cfg.CreationWindowDays > 0 {
		from = now.Add(-l.cfg.CreationWindow())
	}
	allowed, err := l.roster.EventIDsForMember(ctx, memberID, from, now)
	if err != nil {
		return nil, err
	}
	participated := false
	for _, id := range allowed {
		if id == eventID {
			participated = true
			break
		}
	}
	if !participated {
		return nil, errs.NewPermissionDenied("only event participants and leaders may write a report")
	}

	report := &models.Report{
		ID:             uuid.New(),
		EventID:        eventID,
		AuthorMemberID: memberID,
		AuthorName:     memberName,
		PublishState:   models.PublishStateInProgress,
		Title:          event.Title,
		DateAdded:      now,
		LastModified:   now,
	}
	applyEventSnapshot(report, event)
	report.SecurityToken = newSecurityToken(report.ID)

	if err := l.reports.Insert(ctx, report); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("reportId", report.ID.String()).
		Str("eventId", eventID.String()).
		Msg("report created")

	return report, nil
}

// GetForAuthor returns the member's own report for an event.
func (l *Lifecycle) GetForAuthor(ctx context.Context, memberID, eventID uuid.UUID) (*models.Report, error) {
	return l.reports.GetByAuthorAndEvent(ctx, memberID, eventID)
}

// RequestStateChange moves the report forward in the workflow on behalf of
// its author. The transition into Published is gated on image completeness.
// Crossing into SubmittedForReview from below fires the submission
// notification exactly once; a dispatch failure is logged and swallowed.
func (l *Lifecycle) RequestStateChange(ctx context.Context, reportID uuid.UUID, requested models.PublishState, actingMemberID uuid.UUID) (*models.Report, error) {
	if !requested.Valid() {
		return nil, errs.NewValidationFailed("publishState", "unknown publish state")
	}

	var crossedIntoReview bool
	report, err := l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		if report.AuthorMemberID != actingMemberID {
			return false, errs.NewPermissionDenied("only the author may change the publish state")
		}

		if requested < report.PublishState {
			return false, errs.NewPermissionDenied("the publish state never moves backward")
		}

		if requested == report.PublishState {
			return false, nil
		}

		if requested == models.PublishStatePublished {
			complete, err := l.ImageCompleteness(ctx, report)
			if err != nil {
				return false, err
			}
			if !complete {
				return false, errs.NewIncompleteImageMetadata()
			}
		}

		crossedIntoReview = requested == models.PublishStateSubmittedForReview &&
			report.PublishState < models.PublishStateSubmittedForReview

		report.PublishState = requested
		report.LastModified = l.now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if crossedIntoReview {
		l.notifySubmission(ctx, report)
	}

	return report, nil
}

// AdminSetState sets any publish state without the author and forward-only
// gates. Backend use only.
func (l *Lifecycle) AdminSetState(ctx context.Context, reportID uuid.UUID, state models.PublishState) (*models.Report, error) {
	if !state.Valid() {
		return nil, errs.NewValidationFailed("publishState", "unknown publish state")
	}

	return l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		if report.PublishState == state {
			return false, nil
		}
		report.PublishState = state
		report.LastModified = l.now()
		return true, nil
	})
}

// ImageCompleteness reports whether every gallery image carries a non-empty
// caption and photographer name for the configured locale. An empty gallery
// passes.
func (l *Lifecycle) ImageCompleteness(ctx context.Context, report *models.Report) (bool, error) {
	if len(report.Images) == 0 {
		return true, nil
	}

	imgs, err := l.images.GetMany(ctx, report.Images)
	if err != nil {
		return false, err
	}

	for _, img := range imgs {
		if !img.MetaFor(l.cfg.Locale).Complete() {
			return false, nil
		}
	}
	return true, nil
}

// CanEdit reports whether the member may still mutate the report content:
// author only, not yet published, and inside the edit window. The window
// closes strictly after eventEndDate + creationWindowDays; the boundary
// second itself is still editable.
func (l *Lifecycle) CanEdit(report *models.Report, memberID uuid.UUID, now time.Time) bool {
	if report.AuthorMemberID != memberID {
		return false
	}
	if report.PublishState >= models.PublishStatePublished {
		return false
	}
	deadline := report.EventEndDate.Add(l.cfg.CreationWindow())
	return !now.After(deadline)
}

// ResolveVisibility decides read access: published reports are public;
// unpublished ones are visible only through an exact security-token match.
func (l *Lifecycle) ResolveVisibility(report *models.Report, requestToken string) Visibility {
	if report.PublishState == models.PublishStatePublished {
		return VisibilityPublic
	}
	if requestToken != "" && requestToken == report.SecurityToken {
		return VisibilityPreviewViaToken
	}
	return VisibilityDenied
}

// GetForRead loads a report for the reader page. Denied visibility is
// reported as NotFound so unpublished reports stay unguessable.
func (l *Lifecycle) GetForRead(ctx context.Context, reportID uuid.UUID, requestToken string) (*models.Report, Visibility, error) {
	report, err := l.reports.Get(ctx, reportID)
	if err != nil {
		return nil, VisibilityDenied, err
	}

	vis := l.ResolveVisibility(report, requestToken)
	if vis == VisibilityDenied {
		return nil, VisibilityDenied, errs.NewNotFound("report")
	}
	return report, vis, nil
}

// ListPublished returns one page of published reports.
func (l *Lifecycle) ListPublished(ctx context.Context, organizer string, page int) ([]*models.Report, int64, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * l.cfg.PageSize
	return l.reports.ListPublished(ctx, organizer, offset, l.cfg.PageSize)
}

// ContentUpdate carries the mutable text fields; nil fields stay untouched.
type ContentUpdate struct {
	Title                   *string `json:"title"`
	Text                    *string `json:"text"`
	TourWaypoints           *string `json:"tourWaypoints"`
	TourProfile             *string `json:"tourProfile"`
	TourTechDifficulty      *string `json:"tourTechDifficulty"`
	TourHighlights          *string `json:"tourHighlights"`
	TourPublicTransportInfo *string `json:"tourPublicTransportInfo"`
	YouTubeID               *string `json:"youTubeId"`
}

// UpdateContent applies an edit by the author inside the edit window.
func (l *Lifecycle) UpdateContent(ctx context.Context, reportID, actingMemberID uuid.UUID, upd ContentUpdate) (*models.Report, error) {
	if err := validateContent(upd); err != nil {
		return nil, err
	}

	return l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		if report.AuthorMemberID != actingMemberID {
			return false, errs.NewPermissionDenied("only the author may edit the report")
		}
		if report.PublishState >= models.PublishStatePublished {
			return false, errs.NewPermissionDenied("published reports can no longer be edited")
		}
		if now := l.now(); !l.CanEdit(report, actingMemberID, now) {
			return false, errs.NewWindowExpired("the editing window for this report has closed")
		}

		setIfPresent(&report.Title, upd.Title)
		setIfPresent(&report.Text, upd.Text)
		setIfPresent(&report.TourWaypoints, upd.TourWaypoints)
		setIfPresent(&report.TourProfile, upd.TourProfile)
		setIfPresent(&report.TourTechDifficulty, upd.TourTechDifficulty)
		setIfPresent(&report.TourHighlights, upd.TourHighlights)
		setIfPresent(&report.TourPublicTransportInfo, upd.TourPublicTransportInfo)
		setIfPresent(&report.YouTubeID, upd.YouTubeID)

		report.LastModified = l.now()
		return true, nil
	})
}

// AppendImage appends a stored-image id to the gallery, preserving insertion
// order. The explicit custom order is left untouched.
func (l *Lifecycle) AppendImage(ctx context.Context, reportID uuid.UUID, imageID string) (*models.Report, error) {
	return l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		report.Images = append(report.Images, imageID)
		report.LastModified = l.now()
		return true, nil
	})
}

// RemoveImage drops the first matching gallery entry, removes the id from
// the custom order if present, and deletes the stored file. File removal is
// best effort; a missing file never fails the operation.
func (l *Lifecycle) RemoveImage(ctx context.Context, reportID, actingMemberID, imageID uuid.UUID) error {
	idStr := imageID.String()
	_, err := l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		if report.AuthorMemberID != actingMemberID {
			return false, errs.NewPermissionDenied("only the author may remove images")
		}
		if report.PublishState >= models.PublishStatePublished {
			return false, errs.NewPermissionDenied("the gallery of a published report is frozen")
		}

		for i, existing := range report.Images {
			if existing == idStr {
				report.Images = append(report.Images[:i], report.Images[i+1:]...)
				break
			}
		}
		for i, existing := range report.CustomImageOrder {
			if existing == idStr {
				report.CustomImageOrder = append(report.CustomImageOrder[:i], report.CustomImageOrder[i+1:]...)
				break
			}
		}

		report.LastModified = l.now()
		return true, nil
	})
	if err != nil {
		return err
	}

	img, err := l.images.Get(ctx, imageID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := l.images.Delete(ctx, imageID); err != nil {
		return err
	}

	if err := l.removeFile(img.Path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn().Err(err).Str("path", img.Path).Msg("could not remove image file")
	}

	return nil
}

// Reorder replaces the custom presentation order wholesale. Ids that do not
// belong to the gallery are accepted and ignored at render time; gallery
// images missing from the order are appended after the ordered ones.
func (l *Lifecycle) Reorder(ctx context.Context, reportID, actingMemberID uuid.UUID, order []string) error {
	_, err := l.reports.Update(ctx, reportID, func(report *models.Report) (bool, error) {
		if report.AuthorMemberID != actingMemberID {
			return false, errs.NewPermissionDenied("only the author may reorder the gallery")
		}

		report.CustomImageOrder = order
		report.LastModified = l.now()
		return true, nil
	})
	return err
}

// OrderedImages resolves the presentation order of the gallery: the custom
// order first (orphaned entries skipped), then the remaining images in
// insertion order.
func (l *Lifecycle) OrderedImages(report *models.Report) []string {
	if len(report.CustomImageOrder) == 0 {
		return report.Images
	}

	seen := make(map[string]bool, len(report.CustomImageOrder))
	ordered := make([]string, 0, len(report.Images))
	for _, id := range report.CustomImageOrder {
		if report.HasImage(id) && !seen[id] {
			ordered = append(ordered, id)
			seen[id] = true
		}
	}
	for _, id := range report.Images {
		if !seen[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// GalleryImage is one resolved gallery entry, ready for rendering.
type GalleryImage struct {
	ID           uuid.UUID `json:"id"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Caption      string    `json:"caption"`
	Photographer string    `json:"photographer"`
	Alt          string    `json:"alt"`
	RotationDeg  int       `json:"rotationDeg"`
}

// Gallery resolves the report's images in presentation order. Dangling
// references are skipped.
func (l *Lifecycle) Gallery(ctx context.Context, report *models.Report) ([]GalleryImage, error) {
	ordered := l.OrderedImages(report)
	if len(ordered) == 0 {
		return nil, nil
	}

	imgs, err := l.images.GetMany(ctx, ordered)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.StoredImage, len(imgs))
	for _, img := range imgs {
		byID[img.ID.String()] = img
	}

	gallery := make([]GalleryImage, 0, len(ordered))
	for _, id := range ordered {
		img, ok := byID[id]
		if !ok {
			continue
		}
		meta := img.MetaFor(l.cfg.Locale)
		gallery = append(gallery, GalleryImage{
			ID:           img.ID,
			Path:         img.Path,
			Name:         img.Name,
			Caption:      meta.Caption,
			Photographer: meta.Photographer,
			Alt:          meta.Alt,
			RotationDeg:  img.RotationDeg,
		})
	}
	return gallery, nil
}

// PreviewLink builds the tokenized reader link for an unpublished report.
func (l *Lifecycle) PreviewLink(report *models.Report) string {
	if l.cfg.ReaderBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/report/%s?securityToken=%s",
		strings.TrimSuffix(l.cfg.ReaderBaseURL, "/"), report.ID, report.SecurityToken)
}

func (l *Lifecycle) notifySubmission(ctx context.Context, report *models.Report) {
	n := NewSubmission{
		ReportID:        report.ID,
		ReportTitle:     report.Title,
		ReportText:      report.Text,
		EventID:         report.EventID,
		EventTitle:      report.EventTitle,
		AuthorName:      report.AuthorName,
		WebmasterEmails: l.cfg.WebmasterEmails,
		PreviewLink:     l.PreviewLink(report),
	}

	// The live event record carries the instructor contact; fall back to the
	// snapshot-only payload if the event is gone.
	if event, err := l.events.Get(ctx, report.EventID); err == nil {
		n.EventTitle = event.Title
		n.InstructorName = event.InstructorName
		n.InstructorEmail = event.InstructorEmail
	}

	if err := l.notifier.NotifyNewSubmission(ctx, n); err != nil {
		l.logger.Error().Err(err).
			Str("reportId", report.ID.String()).
			Msg("could not dispatch new-submission notification")
	}
}

func applyEventSnapshot(report *models.Report, event *models.Event) {
	report.EventTitle = event.Title
	report.EventStartDate = event.StartDate
	report.EventEndDate = event.EndDate
	report.EventDates = event.Dates
	report.EventOrganizers = event.Organizers

	report.EventSubstitutionText = ""
	if event.ExecutionState == models.ExecutionStateNotExecutedAsPlanned && event.SubstitutionText != "" {
		report.EventSubstitutionText = truncate(event.SubstitutionText, maxSubstitutionTextLen)
	}
}

func newSecurityToken(reportID uuid.UUID) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in no state to serve
		panic(fmt.Sprintf("security token generation: %v", err))
	}
	return hex.EncodeToString(b) + strings.ReplaceAll(reportID.String(), "-", "")
}

func validateContent(upd ContentUpdate) error {
	checks := []struct {
		field string
		value *string
		max   int
	}{
		{"title", upd.Title, maxTitleLen},
		{"text", upd.Text, maxTextLen},
		{"tourWaypoints", upd.TourWaypoints, maxWaypointsLen},
		{"youTubeId", upd.YouTubeID, maxYouTubeIDLen},
	}

	for _, c := range checks {
		if c.value != nil && utf8.RuneCountInString(*c.value) > c.max {
			return errs.NewValidationFailed(c.field, fmt.Sprintf("must not exceed %d characters", c.max))
		}
	}
	if upd.Title != nil && *upd.Title == "" {
		return errs.NewValidationFailed("title", "must not be empty")
	}
	return nil
}

func setIfPresent(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
