package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

type ReportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) *ReportRepo {
	return &ReportRepo{db}
}

// Get returns a report by its ID
func (r *ReportRepo) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("report")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("find", "report", err)
	}
	return &report, nil
}

// GetByAuthorAndEvent returns the single report a member wrote for an event
func (r *ReportRepo) GetByAuthorAndEvent(ctx context.Context, memberID, eventID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		First(&report, "author_member_id = ? AND event_id = ?", memberID, eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("report")
	}
	if err != nil {
		return nil, errs.NewDatabaseError("find", "report", err)
	}
	return &report, nil
}

// Insert creates a new report. The check-then-insert runs inside a
// transaction and the (author, event) unique index backs it up, so a
// concurrent duplicate creation surfaces as Conflict either way.
func (r *ReportRepo) Insert(ctx context.Context, report *models.Report) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Report{}).
			Where("author_member_id = ? AND event_id = ?", report.AuthorMemberID, report.EventID).
			Count(&count).Error; err != nil {
			return errs.NewDatabaseError("count", "report", err)
		}
		if count > 0 {
			return errs.NewConflict("report")
		}
		return tx.Create(report).Error
	})
	if err != nil {
		var apiErr *errs.ApiErr
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return errs.NewDatabaseError("create", "report", err)
	}
	return nil
}

// Update re-reads the report under a row lock, applies the mutation and
// writes the result in the same transaction, so concurrent edits never
// overwrite each other's columns with stale values.
func (r *ReportRepo) Update(ctx context.Context, id uuid.UUID, apply func(*models.Report) (bool, error)) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&report, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewNotFound("report")
		}
		if err != nil {
			return err
		}

		save, err := apply(&report)
		if err != nil {
			return err
		}
		if !save {
			return nil
		}
		return tx.Save(&report).Error
	})
	if err != nil {
		var apiErr *errs.ApiErr
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, errs.NewDatabaseError("update", "report", err)
	}
	return &report, nil
}

// Delete removes a report from the database by id
func (r *ReportRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Report{}, "id = ?", id).Error; err != nil {
		return errs.NewDatabaseError("delete", "report", err)
	}
	return nil
}

// List returns all reports, used by the maintenance job's bulk scan
func (r *ReportRepo) List(ctx context.Context) ([]*models.Report, error) {
	var reports []*models.Report
	if err := r.db.WithContext(ctx).Order("date_added ASC").Find(&reports).Error; err != nil {
		return nil, errs.NewDatabaseError("list", "reports", err)
	}
	return reports, nil
}

// ListPublished returns one page of published reports, newest first, with an
// optional organizer filter against the snapshot's organizer list.
func (r *ReportRepo) ListPublished(ctx context.Context, organizer string, offset, limit int) ([]*models.Report, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("publish_state = ?", models.PublishStatePublished)

	if organizer != "" {
		q = q.Where("event_organizers @> ?", datatypes.JSON(fmt.Sprintf("[%q]", organizer)))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errs.NewDatabaseError("count", "reports", err)
	}

	var reports []*models.Report
	err := q.Order("event_start_date DESC").Offset(offset).Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, 0, errs.NewDatabaseError("list", "reports", err)
	}
	return reports, total, nil
}

// AttachImage stores the image record and appends it to the report gallery in
// one transaction, so a failed insert never leaves a dangling gallery entry.
func (r *ReportRepo) AttachImage(ctx context.Context, reportID uuid.UUID, img *models.StoredImage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NewNotFound("report")
			}
			return err
		}

		if err := tx.Create(img).Error; err != nil {
			return err
		}

		report.Images = append(report.Images, img.ID.String())
		report.LastModified = img.DateAdded
		return tx.Save(&report).Error
	})
	if err != nil {
		var apiErr *errs.ApiErr
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return errs.NewDatabaseError("attach image to", "report", err)
	}
	return nil
}
