package api

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/services"
)

// uploads larger than this are rejected before spooling to disk
const maxUploadMemory = 32 << 20

type galleryHandler struct {
	responder Responder
	logger    zerolog.Logger
	lifecycle *services.Lifecycle
	uploader  *services.Uploader
	metadata  *services.ImageMetadata
	tmpDir    string
}

func newGalleryHandler(lifecycle *services.Lifecycle, uploader *services.Uploader, metadata *services.ImageMetadata, tmpDir string) galleryHandler {
	logger := log.With().Str("handlerName", "galleryHandler").Logger()

	return galleryHandler{
		responder: NewResponder(logger),
		logger:    logger,
		lifecycle: lifecycle,
		uploader:  uploader,
		metadata:  metadata,
		tmpDir:    tmpDir,
	}
}

// uploadImages accepts a multipart batch, spools each part to the tmp dir and
// hands the files to the uploader. Per-file failures are reported in the
// response, not as a request failure.
func (h galleryHandler) uploadImages() http.HandlerFunc {
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

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed multipart request"))
			return
		}

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			h.responder.WriteError(w, errs.NewValidationFailed("files", "at least one file is required"))
			return
		}

		if err := os.MkdirAll(h.tmpDir, 0o755); err != nil {
			h.responder.WriteError(w, errs.NewInternalWithCause("preparing upload directory", err))
			return
		}

		var uploads []services.Upload
		for _, header := range files {
			tmpPath, err := h.spool(header)
			if err != nil {
				h.logger.Warn().Err(err).Str("file", header.Filename).Msg("could not spool upload")
				continue
			}
			uploads = append(uploads, services.Upload{TempPath: tmpPath, Name: header.Filename})
		}

		results, err := h.uploader.StoreBatch(r.Context(), reportID, member.ID, member.Name, uploads)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]any{"results": results})
	}
}

func (h galleryHandler) spool(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.tmpDir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// removeImage detaches an image from the report and deletes its record.
func (h galleryHandler) removeImage() http.HandlerFunc {
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

		imageID, err := uuid.Parse(chi.URLParam(r, "imageID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("imageID", "must be a valid id"))
			return
		}

		if err := h.lifecycle.RemoveImage(r.Context(), reportID, member.ID, imageID); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]string{"status": "success"})
	}
}

// reorderImages replaces the custom display order wholesale.
func (h galleryHandler) reorderImages() http.HandlerFunc {
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
			Order []string `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed request body"))
			return
		}

		if err := h.lifecycle.Reorder(r.Context(), reportID, member.ID, body.Order); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]string{"status": "success"})
	}
}

// getCaption returns the caption and photographer for the configured locale,
// falling back to the requesting member's name as photographer.
func (h galleryHandler) getCaption() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		imageID, err := uuid.Parse(chi.URLParam(r, "imageID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("imageID", "must be a valid id"))
			return
		}

		caption, photographer, err := h.metadata.Caption(r.Context(), imageID, member.Name)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]string{
			"caption":      caption,
			"photographer": photographer,
		})
	}
}

// setCaption writes the caption and photographer for the configured locale.
func (h galleryHandler) setCaption() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		imageID, err := uuid.Parse(chi.URLParam(r, "imageID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("imageID", "must be a valid id"))
			return
		}

		var body struct {
			Caption      string `json:"caption"`
			Photographer string `json:"photographer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("body", "malformed request body"))
			return
		}

		if err := h.metadata.SetCaption(r.Context(), imageID, member.Name, body.Caption, body.Photographer); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]string{"status": "success"})
	}
}

// rotateImage advances the stored rotation hint by 90 degrees
// counter-clockwise.
func (h galleryHandler) rotateImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := ctxGetMember(r.Context()); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		imageID, err := uuid.Parse(chi.URLParam(r, "imageID"))
		if err != nil {
			h.responder.WriteError(w, errs.NewValidationFailed("imageID", "must be a valid id"))
			return
		}

		img, err := h.metadata.Rotate(r.Context(), imageID)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, map[string]any{
			"status":      "success",
			"rotationDeg": img.RotationDeg,
		})
	}
}
