package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbisync/internal/models"
)

func TestNewTestDBMigratesAndSeeds(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)

	// Every catalog carries the id-1 fallback row.
	var city models.City
	require.NoError(t, db.First(&city, 1).Error)
	assert.Equal(t, "Sin especificar", city.Name)

	var advisor models.Advisor
	require.NoError(t, db.First(&advisor, 1).Error)
	assert.Equal(t, "Sin especificar", advisor.Name)

	var typeCount int64
	require.NoError(t, db.Model(&models.PropertyType{}).Count(&typeCount).Error)
	assert.Greater(t, typeCount, int64(1), "property type vocabulary must be seeded")
}

func TestMigrateSchemaIsIdempotent(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)

	require.NoError(t, MigrateSchema(db))

	var count int64
	require.NoError(t, db.Model(&models.City{}).Where("id = 1").Count(&count).Error)
	assert.Equal(t, int64(1), count, "re-running migrations must not duplicate seed rows")
}

func TestImageRowsCascadeWithProperty(t *testing.T) {
	db, err := NewTestDB()
	require.NoError(t, err)

	property := models.Property{Ref: "REF-CASCADE", Slug: "inmueble-ref-cascade"}
	require.NoError(t, db.Create(&property).Error)
	require.NoError(t, db.Create(&models.Image{PropertyID: property.ID, URL: "http://img/1.jpg"}).Error)

	require.NoError(t, db.Delete(&models.Property{}, property.ID).Error)

	var count int64
	require.NoError(t, db.Model(&models.Image{}).Where("property_id = ?", property.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
