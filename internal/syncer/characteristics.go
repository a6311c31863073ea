package syncer

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"orbisync/internal/feed"
	"orbisync/internal/models"
)

// replaceCharacteristics rewrites the listing's attribute set wholesale:
// the feed is authoritative, so the stored rows are dropped and rebuilt
// from the incoming pairs on every pass. Catalog rows in characteristics
// are shared across listings and only ever grow.
func replaceCharacteristics(tx *gorm.DB, propertyID uint, chars []feed.Characteristic) error {
	if err := tx.Where("property_id = ?", propertyID).Delete(&models.PropertyCharacteristic{}).Error; err != nil {
		return err
	}

	for _, ch := range chars {
		name := strings.TrimSpace(ch.Name)
		value := strings.TrimSpace(ch.Value)
		if name == "" {
			continue
		}

		var def models.Characteristic
		err := tx.Where("name = ?", name).First(&def).Error
		if err == gorm.ErrRecordNotFound {
			def = models.Characteristic{Name: name}
			if err := tx.Create(&def).Error; err != nil {
				// Concurrent pass may have created it; requery.
				if reErr := tx.Where("name = ?", name).First(&def).Error; reErr != nil {
					return err
				}
			}
		} else if err != nil {
			return err
		}

		row := models.PropertyCharacteristic{
			PropertyID:       propertyID,
			CharacteristicID: def.ID,
			Value:            value,
			IsNumeric:        isNumeric(value),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
