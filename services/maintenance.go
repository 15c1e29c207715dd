package services

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/models"
)

// Retention windows. Unpublished entries go stale after 30 days without a
// modification; entries that never received any content go after 14 days
// regardless of state.
const (
	staleUnpublishedAfter = 30 * 24 * time.Hour
	staleEmptyAfter       = 14 * 24 * time.Hour
)

const refreshWorkers = 4

// MaintenanceSummary reports what one run changed.
type MaintenanceSummary struct {
	Purged            int `json:"purged"`
	Refreshed         int `json:"refreshed"`
	OrphanDirsRemoved int `json:"orphanDirsRemoved"`
}

// Maintenance is the periodic reconciliation job: it purges stale entries,
// refreshes the event snapshot of the survivors and removes image
// directories no report owns anymore. Running it twice in a row without
// elapsed time or new writes changes nothing on the second run.
type Maintenance struct {
	reports  ReportStore
	events   EventStore
	images   ImageStore
	imageDir string
	logger   zerolog.Logger

	now func() time.Time
}

func NewMaintenance(reports ReportStore, events EventStore, images ImageStore, imageDir string) *Maintenance {
	return &Maintenance{
		reports:  reports,
		events:   events,
		images:   images,
		imageDir: imageDir,
		logger:   log.With().Str("service", "maintenance").Logger(),
		now:      time.Now,
	}
}

func (m *Maintenance) Run(ctx context.Context) (MaintenanceSummary, error) {
	var summary MaintenanceSummary

	reports, err := m.reports.List(ctx)
	if err != nil {
		return summary, err
	}

	now := m.now()
	surviving := make([]*models.Report, 0, len(reports))
	for _, report := range reports {
		if !m.eligibleForPurge(report, now) {
			surviving = append(surviving, report)
			continue
		}

		if err := m.purge(ctx, report); err != nil {
			return summary, err
		}
		summary.Purged++
	}

	refreshed, err := m.refreshSnapshots(ctx, surviving)
	if err != nil {
		return summary, err
	}
	summary.Refreshed = refreshed

	summary.OrphanDirsRemoved = m.removeOrphanDirs(surviving)

	return summary, nil
}

func (m *Maintenance) eligibleForPurge(report *models.Report, now time.Time) bool {
	idle := now.Sub(report.LastModified)
	if report.IsEmpty() && idle >= staleEmptyAfter {
		return true
	}
	return report.PublishState < models.PublishStatePublished && idle >= staleUnpublishedAfter
}

func (m *Maintenance) purge(ctx context.Context, report *models.Report) error {
	if err := m.images.DeleteByReport(ctx, report.ID); err != nil {
		return err
	}
	if err := m.reports.Delete(ctx, report.ID); err != nil {
		return err
	}

	dir := filepath.Join(m.imageDir, report.ID.String())
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn().Err(err).Str("dir", dir).Msg("could not remove report media directory")
	}

	m.logger.Info().
		Str("reportId", report.ID.String()).
		Str("publishState", report.PublishState.String()).
		Msg("purged stale report")
	return nil
}

// refreshSnapshots copies the current event fields back into each surviving
// report. Reports whose event is gone are left untouched; the snapshot is
// what keeps them renderable. Saving only on an actual change keeps the run
// idempotent and the retention clock unaffected.
func (m *Maintenance) refreshSnapshots(ctx context.Context, reports []*models.Report) (int, error) {
	var refreshed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshWorkers)

	for _, report := range reports {
		report := report
		g.Go(func() error {
			event, err := m.events.Get(ctx, report.EventID)
			if err != nil {
				if errs.IsNotFound(err) {
					return nil
				}
				return err
			}

			var updated bool
			_, err = m.reports.Update(ctx, report.ID, func(report *models.Report) (bool, error) {
				before := snapshotOf(report)
				applyEventSnapshot(report, event)
				updated = snapshotOf(report) != before
				return updated, nil
			})
			if err != nil {
				// a concurrent purge may have removed the row since the scan
				if errs.IsNotFound(err) {
					return nil
				}
				return err
			}
			if updated {
				refreshed.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(refreshed.Load()), err
	}
	return int(refreshed.Load()), nil
}

type snapshot struct {
	title            string
	start, end       time.Time
	dates            string
	organizers       string
	substitutionText string
}

func snapshotOf(r *models.Report) snapshot {
	return snapshot{
		title:            r.EventTitle,
		start:            r.EventStartDate,
		end:              r.EventEndDate,
		dates:            joinInt64(r.EventDates),
		organizers:       joinStrings(r.EventOrganizers),
		substitutionText: r.EventSubstitutionText,
	}
}

// removeOrphanDirs deletes per-report media directories whose report no
// longer exists, and drains the upload spool.
func (m *Maintenance) removeOrphanDirs(surviving []*models.Report) int {
	entries, err := os.ReadDir(m.imageDir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("dir", m.imageDir).Msg("could not scan image directory")
		}
		return 0
	}

	known := make(map[string]bool, len(surviving))
	for _, report := range surviving {
		known[report.ID.String()] = true
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "tmp" {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		if known[entry.Name()] {
			continue
		}

		path := filepath.Join(m.imageDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn().Err(err).Str("dir", path).Msg("could not remove orphaned media directory")
			continue
		}
		m.logger.Info().Str("dir", path).Msg("removed orphaned media directory")
		removed++
	}

	m.purgeTmpDir()

	return removed
}

func (m *Maintenance) purgeTmpDir() {
	tmpDir := filepath.Join(m.imageDir, "tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		_ = os.RemoveAll(filepath.Join(tmpDir, entry.Name()))
	}
}

func joinStrings(values []string) string {
	return strings.Join(values, "\x00")
}

func joinInt64(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, "\x00")
}
