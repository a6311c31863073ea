// Package catalog resolves free-text catalog names (city, neighborhood,
// property type, use, status, consignment type, advisor) to foreign-key
// ids, creating rows on demand.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbisync/internal/models"
)

// DefaultID is the pre-seeded "Sin especificar" row present in every
// catalog table, returned whenever a name is empty or resolution fails.
const DefaultID uint = 1

const cacheTTL = 5 * time.Minute

// Resolver maps normalized catalog names to row ids. Lookups are cached in
// process because the same city or type name repeats across most listings
// of a run. Resolution never fails a listing: any lookup or insert error
// degrades to DefaultID with a warning.
type Resolver struct {
	db     *gorm.DB
	cache  *ccache.Cache[uint]
	logger *logrus.Logger
}

func NewResolver(db *gorm.DB, logger *logrus.Logger) *Resolver {
	return &Resolver{
		db:     db,
		cache:  ccache.New(ccache.Configure[uint]().MaxSize(2000)),
		logger: logger,
	}
}

func (r *Resolver) City(name string) uint {
	return r.resolve("city", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.City{Name: name}, "name = ?", name)
	})
}

// Neighborhood is scoped by city: the same name in two cities is two rows.
func (r *Resolver) Neighborhood(name string, cityID uint) uint {
	if strings.TrimSpace(name) == "" {
		return DefaultID
	}
	key := fmt.Sprintf("%d:%s", cityID, name)
	return r.resolve("neighborhood", key, func(string) (uint, error) {
		return r.findOrCreate(&models.Neighborhood{Name: strings.TrimSpace(name), CityID: cityID},
			"name = ? AND city_id = ?", strings.TrimSpace(name), cityID)
	})
}

func (r *Resolver) PropertyType(name string) uint {
	return r.resolve("property_type", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.PropertyType{Name: name}, "name = ?", name)
	})
}

func (r *Resolver) PropertyUse(name string) uint {
	return r.resolve("property_use", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.PropertyUse{Name: name}, "name = ?", name)
	})
}

func (r *Resolver) PropertyStatus(name string) uint {
	return r.resolve("property_status", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.PropertyStatus{Name: name}, "name = ?", name)
	})
}

func (r *Resolver) ConsignmentType(name string) uint {
	return r.resolve("consignment_type", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.ConsignmentType{Name: name}, "name = ?", name)
	})
}

func (r *Resolver) Advisor(name string) uint {
	return r.resolve("advisor", name, func(name string) (uint, error) {
		return r.findOrCreate(&models.Advisor{Name: name}, "name = ?", name)
	})
}

func (r *Resolver) resolve(kind, rawName string, lookup func(string) (uint, error)) uint {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return DefaultID
	}

	cacheKey := kind + ":" + name
	if item := r.cache.Get(cacheKey); item != nil && !item.Expired() {
		return item.Value()
	}

	id, err := lookup(name)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"kind": kind,
			"name": name,
		}).Warn("Catalog resolution failed, using default id")
		return DefaultID
	}

	r.cache.Set(cacheKey, id, cacheTTL)
	return id
}

// findOrCreate looks the row up by its normalized name (plus scope key),
// inserting it when absent. A concurrent resolver may win the insert race;
// the unique constraint rejects the loser, which re-queries the winner's
// row instead of erroring.
func (r *Resolver) findOrCreate(row interface{}, query string, args ...interface{}) (uint, error) {
	if err := r.db.Where(query, args...).First(row).Error; err == nil {
		return rowID(row), nil
	} else if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	if err := r.db.Create(row).Error; err != nil {
		// Lost an insert race; the winner's row must exist now.
		if requery := r.db.Where(query, args...).First(row).Error; requery == nil {
			return rowID(row), nil
		}
		return 0, err
	}
	return rowID(row), nil
}

func rowID(row interface{}) uint {
	switch v := row.(type) {
	case *models.City:
		return v.ID
	case *models.Neighborhood:
		return v.ID
	case *models.PropertyType:
		return v.ID
	case *models.PropertyUse:
		return v.ID
	case *models.PropertyStatus:
		return v.ID
	case *models.ConsignmentType:
		return v.ID
	case *models.Advisor:
		return v.ID
	}
	return 0
}
