package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

type StoredImageRepo struct {
	db *gorm.DB
}

func NewStoredImageRepo(db *gorm.DB) *StoredImageRepo {
	return &StoredImageRepo{db}
}

// Get returns a stored image by its ID
func (r *StoredImageRepo) Get(ctx context.Context, id uuid.UUID) (*models.StoredImage, error) {
	var img models.StoredImage
	err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("image")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("find", "image", err)
	}
	return &img, nil
}

// GetMany resolves a list of gallery ids. Ids without a stored record are
// silently skipped; the gallery tolerates dangling references.
func (r *StoredImageRepo) GetMany(ctx context.Context, ids []string) ([]*models.StoredImage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var imgs []*models.StoredImage
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&imgs).Error; err != nil {
		return nil, errs.NewDatabaseError("find", "images", err)
	}
	return imgs, nil
}

// Save updates an existing stored image record
func (r *StoredImageRepo) Save(ctx context.Context, img *models.StoredImage) error {
	if err := r.db.WithContext(ctx).Save(img).Error; err != nil {
		return errs.NewDatabaseError("update", "image", err)
	}
	return nil
}

// Delete removes a stored image record by id
func (r *StoredImageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.StoredImage{}, "id = ?", id).Error; err != nil {
		return errs.NewDatabaseError("delete", "image", err)
	}
	return nil
}

// DeleteByReport removes all stored image records belonging to a report
func (r *StoredImageRepo) DeleteByReport(ctx context.Context, reportID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.StoredImage{}, "report_id = ?", reportID).Error; err != nil {
		return errs.NewDatabaseError("delete", "images", err)
	}
	return nil
}
