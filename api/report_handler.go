package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
	"github.com/alpenclub/tour-report-backend/services"
)

type reportHandler struct {
	responder Responder
	logger    zerolog.Logger
	lifecycle *services.Lifecycle
}

func newReportHandler(lifecycle *services.Lifecycle) reportHandler {
	logger := log.With().Str("handlerName", "reportHandler").Logger()

	return reportHandler{
		responder: NewResponder(logger),
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// ReportWithGallery is a report together with its resolved image gallery.
type ReportWithGallery struct {
	Report      models.Report           `json:"report"`
	Gallery     []services.GalleryImage `json:"gallery"`
	Preview     bool                    `json:"preview,omitempty"`
	PreviewLink string                  `json:"previewLink,omitempty"`
}

// ReportCollection is one page of published reports.
type ReportCollection struct {
	Reports []*models.Report `json:"reports"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
}

// createReport opens a new report for the authenticated member and event.
func (h reportHandler) createReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var body struct {
			EventID string `json:"eventId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed request body"))
			return
		}

		eventID, err := uuid.Parse(body.EventID)
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("eventId", "must be a valid id"))
			return
		}

		report, err := h.lifecycle.Create(r.Context(), member.ID, member.Name, eventID)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		h.responder.WriteJSON(w, ReportWithGallery{
			Report:      *report,
			PreviewLink: h.lifecycle.PreviewLink(report),
		})
	}
}

// getMyReport returns the member's own report for an event, with the
// tokenized preview link for the write dashboard.
func (h reportHandler) getMyReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		eventID, err := uuid.Parse(r.URL.Query().Get("eventId"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("eventId", "must be a valid id"))
			return
		}

		report, err := h.lifecycle.GetForAuthor(r.Context(), member.ID, eventID)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		gallery, err := h.lifecycle.Gallery(r.Context(), report)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, ReportWithGallery{
			Report:      *report,
			Gallery:     gallery,
			PreviewLink: h.lifecycle.PreviewLink(report),
		})
	}
}

// getReport serves the reader view: published reports are public, otherwise
// an exact security-token match grants a preview.
func (h reportHandler) getReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("reportID", "must be a valid id"))
			return
		}

		token := r.URL.Query().Get("securityToken")

		report, visibility, err := h.lifecycle.GetForRead(r.Context(), reportID, token)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		gallery, err := h.lifecycle.Gallery(r.Context(), report)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, ReportWithGallery{
			Report:  *report,
			Gallery: gallery,
			Preview: visibility == services.VisibilityPreviewViaToken,
		})
	}
}

// updateReport applies a content edit by the author.
func (h reportHandler) updateReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("reportID", "must be a valid id"))
			return
		}

		var upd services.ContentUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed request body"))
			return
		}

		report, err := h.lifecycle.UpdateContent(r.Context(), reportID, member.ID, upd)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, ReportWithGallery{Report: *report})
	}
}

// setPublishState requests a workflow transition. Admins bypass the author
// and forward-only gates.
func (h reportHandler) setPublishState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("reportID", "must be a valid id"))
			return
		}

		var body struct {
			PublishState models.PublishState `json:"publishState"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed request body"))
			return
		}

		var report *models.Report
		if member.Admin {
			report, err = h.lifecycle.AdminSetState(r.Context(), reportID, body.PublishState)
		} else {
			report, err = h.lifecycle.RequestStateChange(r.Context(), reportID, body.PublishState, member.ID)
		}
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]any{
			"status":       "success",
			"publishState": report.PublishState,
		})
	}
}

// listReports returns one page of published reports, optionally filtered by
// organizer.
func (h reportHandler) listReports() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				h.responder.WriteError(w, errs.NewValidationFailed("page", "must be a positive integer"))
				return
			}
			page = parsed
		}

		organizer := r.URL.Query().Get("organizer")

		reports, total, err := h.lifecycle.ListPublished(r.Context(), organizer, page)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, ReportCollection{
			Reports: reports,
			Total:   total,
			Page:    page,
		})
	}
}
