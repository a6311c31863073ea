// Package syncer contains the per-listing upsert engine and the run driver
// that feeds it.
package syncer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbisync/internal/catalog"
	"orbisync/internal/feed"
	"orbisync/internal/fingerprint"
	"orbisync/internal/images"
	"orbisync/internal/models"
	"orbisync/internal/stats"
)

// Processor is the upsert engine: given one normalized listing it decides
// create, update or no-op against the stored row, writes the minimal set of
// changes and keeps the change log. All row work for one listing runs in a
// single transaction so a mid-listing failure leaves no partial state.
type Processor struct {
	db             *gorm.DB
	resolver       *catalog.Resolver
	reconciler     *images.Reconciler
	collector      *stats.Collector
	logger         *logrus.Logger
	downloadImages bool
	trackChanges   bool
}

func NewProcessor(db *gorm.DB, resolver *catalog.Resolver, reconciler *images.Reconciler,
	collector *stats.Collector, logger *logrus.Logger, downloadImages, trackChanges bool) *Processor {
	return &Processor{
		db:             db,
		resolver:       resolver,
		reconciler:     reconciler,
		collector:      collector,
		logger:         logger,
		downloadImages: downloadImages,
		trackChanges:   trackChanges,
	}
}

// Process syncs one listing. Listings are matched to stored rows by ref;
// sync_code is stored but only feeds slug generation and flag-state
// revival (see DESIGN.md on the canonical external key).
func (p *Processor) Process(listing feed.Listing) error {
	p.collector.AddProcessed()

	if listing.Ref == "" {
		return fmt.Errorf("listing has no ref")
	}
	log := p.logger.WithField("ref", listing.Ref)

	var existing models.Property
	err := p.db.Where("ref = ?", listing.Ref).First(&existing).Error
	isNew := err == gorm.ErrRecordNotFound
	if err != nil && !isNew {
		return fmt.Errorf("failed to look up listing %s: %w", listing.Ref, err)
	}

	candidate := p.buildCandidate(listing)

	if isNew {
		if err := p.reviveFlagState(&candidate); err != nil {
			return fmt.Errorf("failed to look up flag state for %s: %w", listing.Ref, err)
		}
	} else {
		preserveOwnerFields(&candidate, &existing)
	}

	hash, err := fingerprint.Compute(fingerprintFields(&candidate))
	if err != nil {
		return fmt.Errorf("failed to fingerprint listing %s: %w", listing.Ref, err)
	}

	return p.db.Transaction(func(tx *gorm.DB) error {
		var propertyID uint

		switch {
		case isNew:
			if err := p.create(tx, &candidate, hash); err != nil {
				return fmt.Errorf("failed to create listing %s: %w", listing.Ref, err)
			}
			propertyID = candidate.ID
			log.WithField("id", propertyID).Info("Listing created")
			p.collector.AddCreated()

		case existing.DataHash == hash:
			propertyID = existing.ID
			log.Debug("Listing unchanged")
			p.collector.AddUnchanged()

		default:
			if err := p.update(tx, &existing, &candidate, hash); err != nil {
				return fmt.Errorf("failed to update listing %s: %w", listing.Ref, err)
			}
			propertyID = existing.ID
			log.WithField("id", propertyID).Info("Listing updated")
			p.collector.AddUpdated()
		}

		if err := replaceCharacteristics(tx, propertyID, listing.Characteristics); err != nil {
			return fmt.Errorf("failed to replace characteristics for %s: %w", listing.Ref, err)
		}

		if p.downloadImages {
			if _, err := p.reconciler.Reconcile(tx, propertyID, listing.Ref, listing.ImageURLs); err != nil {
				return fmt.Errorf("failed to reconcile images for %s: %w", listing.Ref, err)
			}
		}
		return nil
	})
}

// buildCandidate maps the normalized listing onto the storage row shape,
// resolving catalog names to ids. The resolver runs outside the listing
// transaction on purpose: catalog rows are shared across listings and must
// survive a listing rollback.
func (p *Processor) buildCandidate(l feed.Listing) models.Property {
	cityID := p.resolver.City(l.City)

	return models.Property{
		Ref:      l.Ref,
		SyncCode: l.SyncCode,

		Title:            l.Title,
		Description:      l.Description,
		ShortDescription: l.ShortDescription(),
		Address:          l.Address,

		SalePrice:         l.SalePrice,
		RentPrice:         l.RentPrice,
		AdministrationFee: l.AdministrationFee,

		BuiltArea:   l.BuiltArea,
		PrivateArea: l.PrivateArea,
		TotalArea:   l.TotalArea,
		LandArea:    l.LandArea,

		Bedrooms:  l.Bedrooms,
		Bathrooms: l.Bathrooms,
		Garages:   l.Garages,
		Stratum:   l.Stratum,
		Age:       l.Age,
		Floor:     l.Floor,

		HasElevator: l.HasElevator,
		IsActive:    true,

		Latitude:  l.Latitude,
		Longitude: l.Longitude,

		CityID:            cityID,
		NeighborhoodID:    p.resolver.Neighborhood(l.Neighborhood, cityID),
		PropertyTypeID:    p.resolver.PropertyType(l.PropertyType),
		PropertyUseID:     p.resolver.PropertyUse(l.PropertyUse),
		PropertyStatusID:  p.resolver.PropertyStatus(l.PropertyStatus),
		ConsignmentTypeID: p.resolver.ConsignmentType(l.ConsignmentType),
		AdvisorID:         catalog.DefaultID,
	}
}

// preserveOwnerFields overrides the freshly resolved values with the stored
// ones for every owner-editable field: once a listing exists, the sync
// never overwrites its relations, flags or advisor from the feed.
func preserveOwnerFields(candidate, existing *models.Property) {
	candidate.CityID = existing.CityID
	candidate.NeighborhoodID = existing.NeighborhoodID
	candidate.PropertyTypeID = existing.PropertyTypeID
	candidate.PropertyUseID = existing.PropertyUseID
	candidate.PropertyStatusID = existing.PropertyStatusID
	candidate.ConsignmentTypeID = existing.ConsignmentTypeID
	candidate.AdvisorID = existing.AdvisorID
	candidate.IsActive = existing.IsActive
	candidate.IsFeatured = existing.IsFeatured
	candidate.IsHot = existing.IsHot

	if candidate.Description == "" && existing.ShortDescription != "" {
		candidate.ShortDescription = existing.ShortDescription
	}
}

// fingerprintFields is the normalized record the content hash covers:
// everything except the storage id, timestamps, the previous digest, the
// slug (derived) and the image list (reconciled independently).
func fingerprintFields(p *models.Property) map[string]interface{} {
	fields := p.TrackedFields()
	fields["ref"] = p.Ref
	fields["sync_code"] = p.SyncCode
	fields["short_description"] = p.ShortDescription
	fields["land_area"] = p.LandArea
	fields["is_active"] = p.IsActive
	fields["is_featured"] = p.IsFeatured
	fields["is_hot"] = p.IsHot
	return fields
}

// reviveFlagState restores owner flags saved under the same external
// identity, so they survive a delete-then-recreate cycle. Must run before
// fingerprinting; the digest covers the revived values.
func (p *Processor) reviveFlagState(candidate *models.Property) error {
	if candidate.SyncCode == "" {
		return nil
	}
	var state models.PropertyFlagState
	err := p.db.Where("ref = ? AND sync_code = ?", candidate.Ref, candidate.SyncCode).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	candidate.IsActive = state.IsActive
	candidate.IsFeatured = state.IsFeatured
	candidate.IsHot = state.IsHot
	return nil
}

func (p *Processor) create(tx *gorm.DB, candidate *models.Property, hash string) error {
	candidate.DataHash = hash
	candidate.Slug = generateSlug(candidate.SyncCode, 0)

	if err := tx.Create(candidate).Error; err != nil {
		return err
	}

	// Without a sync code the slug needs the row id, which only exists
	// after the insert.
	if candidate.Slug == "" {
		candidate.Slug = generateSlug("", candidate.ID)
		if err := tx.Model(candidate).Update("slug", candidate.Slug).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) update(tx *gorm.DB, existing, candidate *models.Property, hash string) error {
	if p.trackChanges {
		if err := recordChanges(tx, existing, candidate); err != nil {
			return err
		}
	}

	slug := existing.Slug
	if slug == "" || candidate.SyncCode != existing.SyncCode {
		slug = generateSlug(candidate.SyncCode, existing.ID)
	}

	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.Slug = slug
	candidate.DataHash = hash

	return tx.Save(candidate).Error
}

// recordChanges appends one change-log row per tracked field whose value
// actually differs between the stored row and the incoming one.
func recordChanges(tx *gorm.DB, existing, candidate *models.Property) error {
	oldFields := existing.TrackedFields()
	newFields := candidate.TrackedFields()

	names := make([]string, 0, len(oldFields))
	for name := range oldFields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oldValue := fmt.Sprint(oldFields[name])
		newValue := fmt.Sprint(newFields[name])
		if oldValue == newValue {
			continue
		}
		change := models.PropertyChange{
			PropertyID: existing.ID,
			Field:      name,
			OldValue:   oldValue,
			NewValue:   newValue,
		}
		if err := tx.Create(&change).Error; err != nil {
			return err
		}
	}
	return nil
}

// generateSlug derives the human-readable identifier: from the sync code
// when present, else from the row id once known.
func generateSlug(syncCode string, id uint) string {
	syncCode = strings.TrimSpace(syncCode)
	if syncCode != "" {
		return "inmueble-" + syncCode
	}
	if id > 0 {
		return fmt.Sprintf("inmueble-sin-codigo-sincronizacion-%d", id)
	}
	return ""
}
