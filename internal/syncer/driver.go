package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbisync/internal/feed"
	"orbisync/internal/images"
	"orbisync/internal/models"
	"orbisync/internal/stats"
)

// ListingSource abstracts the remote feed so the driver can be exercised
// against a stub in tests.
type ListingSource interface {
	FetchListings(ctx context.Context) ([]feed.RawListing, error)
}

// Options narrows a run for operational use: Ref syncs a single listing,
// Limit caps how many listings are processed.
type Options struct {
	Limit int
	Ref   string
}

// Driver owns a full sync pass: fetch, filter exclusions, process each
// listing in isolation and report the run summary. One bad listing never
// aborts the run; only a failed fetch or a failed exclusion load does.
type Driver struct {
	db         *gorm.DB
	source     ListingSource
	processor  *Processor
	reconciler *images.Reconciler
	collector  *stats.Collector
	logger     *logrus.Logger
}

func NewDriver(db *gorm.DB, source ListingSource, processor *Processor,
	reconciler *images.Reconciler, collector *stats.Collector, logger *logrus.Logger) *Driver {
	return &Driver{
		db:         db,
		source:     source,
		processor:  processor,
		reconciler: reconciler,
		collector:  collector,
		logger:     logger,
	}
}

// exclusionSet indexes the exclusion table by identifier type for O(1)
// membership checks during the run.
type exclusionSet struct {
	byID       map[string]struct{}
	byRef      map[string]struct{}
	bySyncCode map[string]struct{}
}

func (s exclusionSet) matches(l feed.Listing) bool {
	if l.SourceID != "" {
		if _, ok := s.byID[l.SourceID]; ok {
			return true
		}
	}
	if l.Ref != "" {
		if _, ok := s.byRef[l.Ref]; ok {
			return true
		}
	}
	if l.SyncCode != "" {
		if _, ok := s.bySyncCode[l.SyncCode]; ok {
			return true
		}
	}
	return false
}

// Run executes one sync pass and returns its summary. Fetch and exclusion
// load failures are fatal; per-listing failures are counted and logged.
func (d *Driver) Run(ctx context.Context, opts Options) (stats.Summary, error) {
	d.logger.WithFields(logrus.Fields{
		"run_id": d.collector.RunID(),
		"limit":  opts.Limit,
		"ref":    opts.Ref,
	}).Info("Starting sync run")

	raws, err := d.source.FetchListings(ctx)
	if err != nil {
		return d.collector.Snapshot(), fmt.Errorf("failed to fetch listings: %w", err)
	}
	d.logger.WithField("count", len(raws)).Debug("Feed payload decoded")

	exclusions, err := d.loadExclusions()
	if err != nil {
		return d.collector.Snapshot(), fmt.Errorf("failed to load exclusions: %w", err)
	}

	if err := d.purgeExcluded(); err != nil {
		return d.collector.Snapshot(), fmt.Errorf("failed to purge excluded listings: %w", err)
	}

	processed := 0
	for _, raw := range raws {
		if ctx.Err() != nil {
			d.logger.Warn("Sync run cancelled")
			break
		}
		if opts.Limit > 0 && processed >= opts.Limit {
			break
		}

		listing := feed.Normalize(raw)

		if opts.Ref != "" && listing.Ref != opts.Ref {
			continue
		}
		if exclusions.matches(listing) {
			d.logger.WithField("ref", listing.Ref).Debug("Listing excluded, skipping")
			continue
		}

		processed++
		if err := d.processor.Process(listing); err != nil {
			d.collector.AddError()
			d.logger.WithError(err).WithField("ref", listing.Ref).Error("Failed to process listing")
		}
	}

	summary := d.collector.Snapshot()
	d.logger.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"processed": summary.Processed,
		"created":   summary.Created,
		"updated":   summary.Updated,
		"unchanged": summary.Unchanged,
		"errors":    summary.Errors,
		"duration":  summary.Duration,
	}).Info("Sync run finished")
	return summary, nil
}

// saveFlagState snapshots the owner flags of a row about to be dropped, so
// a later recreate under the same external identity can revive them.
func saveFlagState(tx *gorm.DB, property *models.Property) error {
	if property.SyncCode == "" {
		return nil
	}
	state := models.PropertyFlagState{
		Ref:      property.Ref,
		SyncCode: property.SyncCode,
	}
	if err := tx.Where("ref = ? AND sync_code = ?", property.Ref, property.SyncCode).
		FirstOrCreate(&state).Error; err != nil {
		return err
	}
	return tx.Model(&state).Updates(map[string]interface{}{
		"is_active":   property.IsActive,
		"is_featured": property.IsFeatured,
		"is_hot":      property.IsHot,
	}).Error
}

func (d *Driver) loadExclusions() (exclusionSet, error) {
	set := exclusionSet{
		byID:       make(map[string]struct{}),
		byRef:      make(map[string]struct{}),
		bySyncCode: make(map[string]struct{}),
	}

	var rows []models.ExcludedProperty
	if err := d.db.Find(&rows).Error; err != nil {
		return set, err
	}
	for _, row := range rows {
		switch row.IdentifierType {
		case models.ExcludeByID:
			set.byID[row.Identifier] = struct{}{}
		case models.ExcludeByRef:
			set.byRef[row.Identifier] = struct{}{}
		case models.ExcludeBySyncCode:
			set.bySyncCode[row.Identifier] = struct{}{}
		default:
			d.logger.WithFields(logrus.Fields{
				"identifier": row.Identifier,
				"type":       row.IdentifierType,
			}).Warn("Unknown exclusion identifier type, ignoring")
		}
	}
	return set, nil
}

// purgeExcluded removes stored rows that match an exclusion entry, along
// with their characteristics, image rows and image files. Row-level
// children go away through foreign key cascades; files need the
// reconciler.
func (d *Driver) purgeExcluded() error {
	var rows []models.ExcludedProperty
	if err := d.db.Find(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		var matches []models.Property
		query := d.db
		switch row.IdentifierType {
		case models.ExcludeByID:
			query = query.Where("id = ?", row.Identifier)
		case models.ExcludeByRef:
			query = query.Where("ref = ?", row.Identifier)
		case models.ExcludeBySyncCode:
			query = query.Where("sync_code = ?", row.Identifier)
		default:
			continue
		}
		if err := query.Find(&matches).Error; err != nil {
			return err
		}

		for _, property := range matches {
			err := d.db.Transaction(func(tx *gorm.DB) error {
				if err := saveFlagState(tx, &property); err != nil {
					return err
				}
				if _, err := d.reconciler.DeleteAll(tx, property.ID, property.Ref); err != nil {
					return err
				}
				if err := tx.Where("property_id = ?", property.ID).Delete(&models.PropertyCharacteristic{}).Error; err != nil {
					return err
				}
				if err := tx.Where("property_id = ?", property.ID).Delete(&models.PropertyChange{}).Error; err != nil {
					return err
				}
				return tx.Delete(&models.Property{}, property.ID).Error
			})
			if err != nil {
				return fmt.Errorf("failed to drop excluded listing %s: %w", property.Ref, err)
			}
			d.logger.WithFields(logrus.Fields{
				"ref":        property.Ref,
				"identifier": row.Identifier,
				"type":       row.IdentifierType,
			}).Info("Dropped excluded listing")
		}
	}
	return nil
}
