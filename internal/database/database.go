package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"orbisync/internal/models"
)

// Open connects to the sqlite database at dbPath. The connection is opened
// through database/sql first so the foreign-keys pragma is set before gorm
// sees it; cascade deletion of images and characteristics depends on it.
func Open(dbPath string) (*gorm.DB, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return db, nil
}

// NewTestDB returns an isolated in-memory database for tests.
func NewTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}

	// A shared-cache in-memory database disappears once its last connection
	// closes; a single pooled connection keeps it alive for the test.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := MigrateSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

// MigrateSchema creates or updates every table and seeds the catalog rows
// the resolver depends on.
func MigrateSchema(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.City{},
		&models.Neighborhood{},
		&models.PropertyType{},
		&models.PropertyUse{},
		&models.PropertyStatus{},
		&models.ConsignmentType{},
		&models.Advisor{},
		&models.Property{},
		&models.Image{},
		&models.PropertyChange{},
		&models.Characteristic{},
		&models.PropertyCharacteristic{},
		&models.PropertyFlagState{},
		&models.ExcludedProperty{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := seedCatalogs(db); err != nil {
		return fmt.Errorf("failed to seed catalogs: %w", err)
	}
	return nil
}

// defaultCatalogName is the id-1 fallback row present in every catalog
// table; the resolver returns id 1 whenever a name is missing or cannot be
// resolved.
const defaultCatalogName = "Sin especificar"

func seedCatalogs(db *gorm.DB) error {
	defaults := []interface{}{
		&models.City{ID: 1, Name: defaultCatalogName},
		&models.Neighborhood{ID: 1, Name: defaultCatalogName, CityID: 1},
		&models.PropertyType{ID: 1, Name: defaultCatalogName},
		&models.PropertyUse{ID: 1, Name: defaultCatalogName},
		&models.PropertyStatus{ID: 1, Name: defaultCatalogName},
		&models.ConsignmentType{ID: 1, Name: defaultCatalogName},
		&models.Advisor{ID: 1, Name: defaultCatalogName},
	}
	for _, row := range defaults {
		if err := db.Where("id = 1").FirstOrCreate(row).Error; err != nil {
			return err
		}
	}

	for _, name := range []string{"Apartamento", "Casa", "Local", "Oficina", "Bodega", "Lote", "Finca", "Casa Campestre"} {
		if err := db.Where("name = ?", name).FirstOrCreate(&models.PropertyType{Name: name}).Error; err != nil {
			return err
		}
	}
	for _, name := range []string{"Vivienda", "Comercial", "Industrial", "Mixto"} {
		if err := db.Where("name = ?", name).FirstOrCreate(&models.PropertyUse{Name: name}).Error; err != nil {
			return err
		}
	}
	for _, name := range []string{"Venta", "Arriendo", "Mixto"} {
		if err := db.Where("name = ?", name).FirstOrCreate(&models.ConsignmentType{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
