package services

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register the decoders the upload form accepts.
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"github.com/alpenclub/tour-report-backend/config"
	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

// Upload is one file of an upload batch, already spooled to a temp location.
type Upload struct {
	TempPath string
	Name     string
}

// UploadResult reports the outcome for a single file of a batch.
type UploadResult struct {
	Name    string    `json:"name"`
	ImageID uuid.UUID `json:"imageId,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Uploader validates uploaded gallery images and attaches them to a report.
// A batch is best effort: one bad file is reported and skipped, the rest go
// through. Each accepted file is attached in its own transaction; a moved
// file orphaned by a failed attach is tolerated and swept up by maintenance.
type Uploader struct {
	cfg     config.Report
	reports ReportStore
	logger  zerolog.Logger

	now func() time.Time
}

func NewUploader(cfg config.Report, reports ReportStore) *Uploader {
	return &Uploader{
		cfg:     cfg,
		reports: reports,
		logger:  log.With().Str("service", "uploader").Logger(),
		now:     time.Now,
	}
}

// StoreBatch processes an upload batch for the member's report.
func (u *Uploader) StoreBatch(ctx context.Context, reportID, actingMemberID uuid.UUID, memberName string, uploads []Upload) ([]UploadResult, error) {
	report, err := u.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if report.AuthorMemberID != actingMemberID {
		return nil, errs.NewPermissionDenied("only the author may upload images")
	}
	if report.PublishState >= models.PublishStatePublished {
		return nil, errs.NewPermissionDenied("the gallery of a published report is frozen")
	}

	destDir := filepath.Join(u.cfg.ImageDir, report.ID.String())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errs.NewInternalWithCause("could not create the image directory", err)
	}

	results := make([]UploadResult, 0, len(uploads))
	for _, upload := range uploads {
		result := UploadResult{Name: upload.Name}

		imageID, err := u.storeOne(ctx, report, destDir, memberName, upload)
		if err != nil {
			u.logger.Warn().Err(err).Str("file", upload.Name).Msg("image upload rejected")
			result.Error = err.Error()
		} else {
			result.ImageID = imageID
		}

		results = append(results, result)
	}

	return results, nil
}

func (u *Uploader) storeOne(ctx context.Context, report *models.Report, destDir, memberName string, upload Upload) (uuid.UUID, error) {
	if err := u.validate(upload); err != nil {
		return uuid.Nil, err
	}

	imageID := uuid.New()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Name), "."))
	if ext == "" {
		ext = "jpg"
	}
	targetPath := filepath.Join(destDir, fmt.Sprintf("report-%s-img-%s.%s", report.ID, imageID, ext))

	if err := moveFile(upload.TempPath, targetPath); err != nil {
		return uuid.Nil, errs.NewValidationFailed("fileUpload",
			fmt.Sprintf("could not move %q into the gallery", upload.Name))
	}

	now := u.now()
	img := &models.StoredImage{
		ID:           imageID,
		ReportID:     report.ID,
		Path:         targetPath,
		Name:         upload.Name,
		DateAdded:    now,
		LastModified: now,
	}
	img.Meta = datatypes.NewJSONType(map[string]models.ImageMeta{
		u.cfg.Locale: {Photographer: memberName},
	})

	if err := u.reports.AttachImage(ctx, report.ID, img); err != nil {
		// The moved file stays behind; the maintenance sweep reclaims it.
		return uuid.Nil, err
	}

	report.Images = append(report.Images, imageID.String())
	return imageID, nil
}

// validate applies the upload checks in order: existence, decodable image
// and dimensions, file size.
func (u *Uploader) validate(upload Upload) error {
	info, err := os.Stat(upload.TempPath)
	if err != nil {
		return errs.NewValidationFailed("fileUpload", fmt.Sprintf("could not find uploaded file %q", upload.Name))
	}

	f, err := os.Open(upload.TempPath)
	if err != nil {
		return errs.NewValidationFailed("fileUpload", fmt.Sprintf("could not read uploaded file %q", upload.Name))
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return errs.NewValidationFailed("fileUpload", fmt.Sprintf("uploaded file %q is not an image", upload.Name))
	}

	if u.cfg.MaxImageWidth > 0 && cfg.Width > u.cfg.MaxImageWidth {
		return errs.NewValidationFailed("fileUpload",
			fmt.Sprintf("image %q exceeds the maximum width of %d px", upload.Name, u.cfg.MaxImageWidth))
	}
	if u.cfg.MaxImageHeight > 0 && cfg.Height > u.cfg.MaxImageHeight {
		return errs.NewValidationFailed("fileUpload",
			fmt.Sprintf("image %q exceeds the maximum height of %d px", upload.Name, u.cfg.MaxImageHeight))
	}

	if u.cfg.MaxImageFileSize > 0 && info.Size() > u.cfg.MaxImageFileSize {
		return errs.NewValidationFailed("fileUpload",
			fmt.Sprintf("image %q exceeds the maximum file size of %d bytes", upload.Name, u.cfg.MaxImageFileSize))
	}

	return nil
}

// moveFile renames when possible and falls back to copy-and-remove for
// cross-device moves out of the upload spool.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}
