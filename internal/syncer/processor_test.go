package syncer

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"orbisync/internal/catalog"
	"orbisync/internal/database"
	"orbisync/internal/feed"
	"orbisync/internal/images"
	"orbisync/internal/models"
	"orbisync/internal/stats"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestProcessor wires a processor against a fresh in-memory store with
// image handling off, so listing logic can be tested without a network.
func newTestProcessor(t *testing.T, trackChanges bool) (*Processor, *gorm.DB, *stats.Collector) {
	t.Helper()

	db, err := database.NewTestDB()
	require.NoError(t, err)

	logger := newTestLogger()
	collector := stats.NewCollector()
	resolver := catalog.NewResolver(db, logger)
	reconciler := images.NewReconciler(t.TempDir(), 5*time.Second, collector, logger)

	p := NewProcessor(db, resolver, reconciler, collector, logger, false, trackChanges)
	return p, db, collector
}

func sampleListing(ref, syncCode string) feed.Listing {
	return feed.Listing{
		Ref:             ref,
		SyncCode:        syncCode,
		Title:           "Apartamento en El Poblado",
		Description:     "Amplio apartamento con vista a la ciudad",
		Address:         "Calle 10 # 43-12",
		SalePrice:       350000000,
		Bedrooms:        3,
		Bathrooms:       2,
		City:            "Medellín",
		Neighborhood:    "El Poblado",
		PropertyType:    "Apartamento",
		PropertyUse:     "Vivienda",
		PropertyStatus:  "Usado",
		ConsignmentType: "Venta",
	}
}

func loadProperty(t *testing.T, db *gorm.DB, ref string) models.Property {
	t.Helper()
	var p models.Property
	require.NoError(t, db.Where("ref = ?", ref).First(&p).Error)
	return p
}

func changeRows(t *testing.T, db *gorm.DB, propertyID uint) []models.PropertyChange {
	t.Helper()
	var rows []models.PropertyChange
	require.NoError(t, db.Where("property_id = ?", propertyID).Order("field").Find(&rows).Error)
	return rows
}

func TestProcessCreatesListing(t *testing.T) {
	p, db, collector := newTestProcessor(t, true)

	require.NoError(t, p.Process(sampleListing("REF-1", "SC-1")))

	row := loadProperty(t, db, "REF-1")
	assert.Equal(t, "SC-1", row.SyncCode)
	assert.Equal(t, "inmueble-SC-1", row.Slug)
	assert.Equal(t, "Apartamento en El Poblado", row.Title)
	assert.Equal(t, int64(350000000), row.SalePrice)
	assert.Len(t, row.DataHash, 32)
	assert.True(t, row.IsActive)
	assert.False(t, row.IsFeatured)

	// Catalog names resolve to real rows, not the fallback.
	assert.NotEqual(t, catalog.DefaultID, row.CityID)
	assert.NotEqual(t, catalog.DefaultID, row.NeighborhoodID)
	assert.Equal(t, catalog.DefaultID, row.AdvisorID)

	summary := collector.Snapshot()
	assert.Equal(t, int64(1), summary.Processed)
	assert.Equal(t, int64(1), summary.Created)
}

func TestProcessCreateWithoutSyncCode(t *testing.T) {
	p, db, _ := newTestProcessor(t, true)

	require.NoError(t, p.Process(sampleListing("REF-2", "")))

	row := loadProperty(t, db, "REF-2")
	assert.Equal(t, fmt.Sprintf("inmueble-sin-codigo-sincronizacion-%d", row.ID), row.Slug)
}

func TestProcessSecondPassIsNoOp(t *testing.T) {
	p, db, collector := newTestProcessor(t, true)
	listing := sampleListing("REF-3", "SC-3")

	require.NoError(t, p.Process(listing))
	first := loadProperty(t, db, "REF-3")

	require.NoError(t, p.Process(listing))
	second := loadProperty(t, db, "REF-3")

	assert.Equal(t, first.DataHash, second.DataHash)
	assert.Empty(t, changeRows(t, db, first.ID))

	summary := collector.Snapshot()
	assert.Equal(t, int64(1), summary.Created)
	assert.Equal(t, int64(1), summary.Unchanged)
	assert.Equal(t, int64(0), summary.Updated)
}

func TestProcessUpdateRecordsChanges(t *testing.T) {
	p, db, collector := newTestProcessor(t, true)

	require.NoError(t, p.Process(sampleListing("REF-4", "SC-4")))

	changed := sampleListing("REF-4", "SC-4")
	changed.SalePrice = 360000000
	changed.Title = "Apartamento remodelado en El Poblado"
	require.NoError(t, p.Process(changed))

	row := loadProperty(t, db, "REF-4")
	assert.Equal(t, int64(360000000), row.SalePrice)

	rows := changeRows(t, db, row.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, "sale_price", rows[0].Field)
	assert.Equal(t, "350000000", rows[0].OldValue)
	assert.Equal(t, "360000000", rows[0].NewValue)
	assert.Equal(t, "title", rows[1].Field)

	assert.Equal(t, int64(1), collector.Snapshot().Updated)
}

func TestProcessUpdateWithTrackingDisabled(t *testing.T) {
	p, db, collector := newTestProcessor(t, false)

	require.NoError(t, p.Process(sampleListing("REF-5", "SC-5")))

	changed := sampleListing("REF-5", "SC-5")
	changed.SalePrice = 1
	require.NoError(t, p.Process(changed))

	row := loadProperty(t, db, "REF-5")
	assert.Equal(t, int64(1), row.SalePrice)
	assert.Empty(t, changeRows(t, db, row.ID))
	assert.Equal(t, int64(1), collector.Snapshot().Updated)
}

func TestProcessPreservesOwnerFields(t *testing.T) {
	p, db, collector := newTestProcessor(t, true)

	require.NoError(t, p.Process(sampleListing("REF-6", "SC-6")))
	row := loadProperty(t, db, "REF-6")

	// Simulate owner edits made between sync passes.
	var altCity models.City
	require.NoError(t, db.Create(&models.City{Name: "Ciudad del dueño"}).Error)
	require.NoError(t, db.Where("name = ?", "Ciudad del dueño").First(&altCity).Error)
	require.NoError(t, db.Model(&row).Updates(map[string]interface{}{
		"city_id":     altCity.ID,
		"is_active":   false,
		"is_featured": true,
		"advisor_id":  7,
	}).Error)

	// The feed now disagrees on the city; the owner's value must win.
	changed := sampleListing("REF-6", "SC-6")
	changed.City = "Bogotá"
	require.NoError(t, p.Process(changed))

	after := loadProperty(t, db, "REF-6")
	assert.Equal(t, altCity.ID, after.CityID)
	assert.False(t, after.IsActive)
	assert.True(t, after.IsFeatured)
	assert.Equal(t, uint(7), after.AdvisorID)
	assert.Empty(t, changeRows(t, db, after.ID), "preserved fields never produce change records")

	// A third pass converges: the digest now covers the owner's values.
	require.NoError(t, p.Process(changed))
	assert.Equal(t, int64(1), collector.Snapshot().Unchanged)
}

func TestProcessRevivesFlagState(t *testing.T) {
	p, db, _ := newTestProcessor(t, true)

	state := models.PropertyFlagState{
		Ref:        "REF-7",
		SyncCode:   "SC-7",
		IsActive:   false,
		IsFeatured: true,
		IsHot:      true,
	}
	require.NoError(t, db.Create(&state).Error)

	require.NoError(t, p.Process(sampleListing("REF-7", "SC-7")))

	row := loadProperty(t, db, "REF-7")
	assert.False(t, row.IsActive)
	assert.True(t, row.IsFeatured)
	assert.True(t, row.IsHot)
}

func TestProcessReplacesCharacteristics(t *testing.T) {
	p, db, _ := newTestProcessor(t, true)

	listing := sampleListing("REF-8", "SC-8")
	listing.Characteristics = []feed.Characteristic{
		{Name: "Piscina", Value: "Si"},
		{Name: "Pisos", Value: "3"},
	}
	require.NoError(t, p.Process(listing))

	row := loadProperty(t, db, "REF-8")

	var rows []models.PropertyCharacteristic
	require.NoError(t, db.Where("property_id = ?", row.ID).Find(&rows).Error)
	require.Len(t, rows, 2)

	numericByValue := map[string]bool{}
	for _, r := range rows {
		numericByValue[r.Value] = r.IsNumeric
	}
	assert.False(t, numericByValue["Si"])
	assert.True(t, numericByValue["3"])

	// The next pass replaces the set wholesale, even when the listing
	// itself is otherwise unchanged.
	listing.Characteristics = []feed.Characteristic{{Name: "Balcón", Value: "Si"}}
	require.NoError(t, p.Process(listing))

	require.NoError(t, db.Where("property_id = ?", row.ID).Find(&rows).Error)
	require.Len(t, rows, 1)

	var defCount int64
	require.NoError(t, db.Model(&models.Characteristic{}).Count(&defCount).Error)
	assert.Equal(t, int64(3), defCount, "characteristic definitions only ever grow")
}

func TestProcessSlugFollowsSyncCodeChange(t *testing.T) {
	p, db, _ := newTestProcessor(t, true)

	require.NoError(t, p.Process(sampleListing("REF-9", "SC-OLD")))
	assert.Equal(t, "inmueble-SC-OLD", loadProperty(t, db, "REF-9").Slug)

	require.NoError(t, p.Process(sampleListing("REF-9", "SC-NEW")))
	assert.Equal(t, "inmueble-SC-NEW", loadProperty(t, db, "REF-9").Slug)
}

func TestProcessRejectsMissingRef(t *testing.T) {
	p, _, collector := newTestProcessor(t, true)

	err := p.Process(feed.Listing{Title: "sin referencia"})
	assert.Error(t, err)
	assert.Equal(t, int64(1), collector.Snapshot().Processed)
	assert.Equal(t, int64(0), collector.Snapshot().Created)
}
