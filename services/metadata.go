package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/alpenclub/tour-report-backend/config"
	"github.com/alpenclub/tour-report-backend/models"
)

// ImageMetadata reads and writes the locale-scoped caption block of stored
// images. The photographer name falls back to the acting member's name so a
// gallery is publishable without every uploader typing their own name.
type ImageMetadata struct {
	cfg    config.Report
	images ImageStore
}

func NewImageMetadata(cfg config.Report, images ImageStore) *ImageMetadata {
	return &ImageMetadata{cfg: cfg, images: images}
}

// Caption returns the caption and photographer for the active locale. An
// unset photographer is presented as the acting member's name.
func (s *ImageMetadata) Caption(ctx context.Context, imageID uuid.UUID, memberName string) (caption, photographer string, err error) {
	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return "", "", err
	}

	meta := img.MetaFor(s.cfg.Locale)
	photographer = meta.Photographer
	if photographer == "" {
		photographer = memberName
	}
	return meta.Caption, photographer, nil
}

// SetCaption stores caption and photographer for the active locale.
func (s *ImageMetadata) SetCaption(ctx context.Context, imageID uuid.UUID, memberName, caption, photographer string) error {
	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return err
	}

	if photographer == "" {
		photographer = memberName
	}

	meta := img.MetaFor(s.cfg.Locale)
	meta.Caption = caption
	meta.Photographer = photographer
	img.SetMetaFor(s.cfg.Locale, meta)

	return s.images.Save(ctx, img)
}

// Rotate turns the image a quarter turn counter-clockwise, recorded as a
// presentation hint on the stored metadata.
func (s *ImageMetadata) Rotate(ctx context.Context, imageID uuid.UUID) (*models.StoredImage, error) {
	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}

	img.RotationDeg = (img.RotationDeg + 270) % 360
	if err := s.images.Save(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}
