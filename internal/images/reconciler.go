// Package images reconciles a listing's stored image set against the URL
// list the feed currently advertises.
package images

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbisync/internal/models"
	"orbisync/internal/stats"
)

// Result counts the row-level operations of one reconciliation.
type Result struct {
	Added   int
	Updated int
	Deleted int
}

// Reconciler computes and applies the add/update/delete diff between the
// desired URL list and the stored rows/files of a listing. A failed single
// image download is logged and skipped; it never aborts the rest of the
// reconciliation.
type Reconciler struct {
	client    *http.Client
	imagesDir string
	collector *stats.Collector
	logger    *logrus.Logger
}

func NewReconciler(imagesDir string, timeout time.Duration, collector *stats.Collector, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		client:    &http.Client{Timeout: timeout},
		imagesDir: imagesDir,
		collector: collector,
		logger:    logger,
	}
}

func (r *Reconciler) propertyDir(ref string) string {
	return filepath.Join(r.imagesDir, "property_"+ref)
}

// Reconcile brings the stored image set of one listing in line with
// desiredURLs. An empty desired list means the listing currently has no
// images: every stored image is removed.
func (r *Reconciler) Reconcile(tx *gorm.DB, propertyID uint, ref string, desiredURLs []string) (Result, error) {
	var existing []models.Image
	if err := tx.Where("property_id = ?", propertyID).Order("order_num").Find(&existing).Error; err != nil {
		return Result{}, err
	}

	if len(desiredURLs) == 0 {
		if len(existing) == 0 {
			return Result{}, nil
		}
		deleted, err := r.DeleteAll(tx, propertyID, ref)
		return Result{Deleted: deleted}, err
	}

	existingByURL := make(map[string]*models.Image, len(existing))
	for i := range existing {
		existingByURL[existing[i].URL] = &existing[i]
	}
	desiredSet := make(map[string]bool, len(desiredURLs))

	var result Result

	for i, imageURL := range desiredURLs {
		if imageURL == "" {
			continue
		}
		desiredSet[imageURL] = true

		img, known := existingByURL[imageURL]
		if known {
			r.refreshExisting(tx, ref, img, i, imageURL, &result)
			continue
		}
		r.addNew(tx, propertyID, ref, i, imageURL, &result)
	}

	// Stored rows absent from the desired list are obsolete.
	featuredDeleted := false
	for i := range existing {
		img := &existing[i]
		if desiredSet[img.URL] {
			continue
		}
		if img.LocalPath != "" {
			if err := os.Remove(img.LocalPath); err != nil && !os.IsNotExist(err) {
				r.logger.WithError(err).WithField("path", img.LocalPath).Warn("Failed to remove image file")
			}
		}
		if err := tx.Delete(img).Error; err != nil {
			return result, err
		}
		if img.Featured {
			featuredDeleted = true
		}
		result.Deleted++
		r.collector.AddImagesDeleted(1)
	}

	if featuredDeleted {
		if err := r.reassignFeatured(tx, propertyID, ref); err != nil {
			return result, err
		}
	}

	r.cleanEmptyDir(ref)
	return result, nil
}

// refreshExisting handles a desired URL that already has a stored row:
// keep, re-download a missing file, or detect a content swap at the same
// URL by comparing hashes against a fresh copy of the remote bytes.
func (r *Reconciler) refreshExisting(tx *gorm.DB, ref string, img *models.Image, position int, imageURL string, result *Result) {
	log := r.logger.WithFields(logrus.Fields{"ref": ref, "url": imageURL})

	if img.LocalPath == "" || !fileExists(img.LocalPath) {
		// Row exists but the file is gone; download again in place.
		data, err := r.fetch(imageURL)
		if err != nil {
			log.WithError(err).Warn("Failed to re-download missing image file")
			return
		}
		localPath := img.LocalPath
		if localPath == "" {
			localPath = filepath.Join(r.propertyDir(ref), localFilename(ref, position, imageURL))
		}
		if err := writeFile(localPath, data); err != nil {
			log.WithError(err).Warn("Failed to write image file")
			return
		}
		if err := tx.Model(img).Updates(map[string]interface{}{
			"local_path": localPath,
			"order_num":  position,
			"downloaded": true,
			"hash":       hashBytes(data),
		}).Error; err != nil {
			log.WithError(err).Warn("Failed to update image row")
			return
		}
		r.collector.AddImagesDownloaded(1)
		return
	}

	// Sameness of URL does not imply sameness of content: fetch the remote
	// bytes and compare hashes to catch a silent replacement.
	data, err := r.fetch(imageURL)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch image for comparison, keeping stored copy")
		return
	}
	newHash := hashBytes(data)

	currentHash := img.Hash
	if currentHash == "" {
		if fileData, err := os.ReadFile(img.LocalPath); err == nil {
			currentHash = hashBytes(fileData)
		}
	}

	if newHash != currentHash {
		if err := writeFile(img.LocalPath, data); err != nil {
			log.WithError(err).Warn("Failed to overwrite changed image file")
			return
		}
		if err := tx.Model(img).Updates(map[string]interface{}{
			"hash":      newHash,
			"order_num": position,
		}).Error; err != nil {
			log.WithError(err).Warn("Failed to update image row")
			return
		}
		log.WithFields(logrus.Fields{"old_hash": currentHash, "new_hash": newHash}).Info("Image content changed, replaced in place")
		result.Updated++
		r.collector.AddImagesUpdated(1)
		return
	}

	if img.OrderNum != position {
		if err := tx.Model(img).Update("order_num", position).Error; err != nil {
			log.WithError(err).Warn("Failed to update image order")
		}
	}
}

func (r *Reconciler) addNew(tx *gorm.DB, propertyID uint, ref string, position int, imageURL string, result *Result) {
	log := r.logger.WithFields(logrus.Fields{"ref": ref, "url": imageURL})

	data, err := r.fetch(imageURL)
	if err != nil {
		log.WithError(err).Warn("Failed to download new image, skipping")
		return
	}

	localPath := filepath.Join(r.propertyDir(ref), localFilename(ref, position, imageURL))
	if err := writeFile(localPath, data); err != nil {
		log.WithError(err).Warn("Failed to write image file, skipping")
		return
	}

	img := models.Image{
		PropertyID: propertyID,
		URL:        imageURL,
		LocalPath:  localPath,
		OrderNum:   position,
		Downloaded: true,
		Hash:       hashBytes(data),
	}

	if position == 0 {
		var featuredCount int64
		if err := tx.Model(&models.Image{}).
			Where("property_id = ? AND featured = ?", propertyID, true).
			Count(&featuredCount).Error; err == nil && featuredCount == 0 {
			img.Featured = true
		}
	}

	if err := tx.Create(&img).Error; err != nil {
		log.WithError(err).Warn("Failed to insert image row")
		return
	}
	result.Added++
	r.collector.AddImagesDownloaded(1)
}

// DeleteAll removes every stored image of the listing, rows and files, and
// the listing's image directory. Used for the empty-desired-list case and
// for the exclusion drop path.
func (r *Reconciler) DeleteAll(tx *gorm.DB, propertyID uint, ref string) (int, error) {
	var imgs []models.Image
	if err := tx.Where("property_id = ?", propertyID).Find(&imgs).Error; err != nil {
		return 0, err
	}
	if len(imgs) == 0 {
		return 0, nil
	}

	for _, img := range imgs {
		if img.LocalPath == "" {
			continue
		}
		if err := os.Remove(img.LocalPath); err != nil && !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("path", img.LocalPath).Warn("Failed to remove image file")
		}
	}

	if err := tx.Where("property_id = ?", propertyID).Delete(&models.Image{}).Error; err != nil {
		return 0, err
	}

	r.collector.AddImagesDeleted(len(imgs))
	r.cleanEmptyDir(ref)
	return len(imgs), nil
}

// reassignFeatured picks the deterministic replacement after the featured
// row was deleted: order 0 first, else lowest order, else lowest id. No
// remaining rows is not an error.
func (r *Reconciler) reassignFeatured(tx *gorm.DB, propertyID uint, ref string) error {
	var candidate models.Image
	err := tx.Where("property_id = ?", propertyID).
		Order("(order_num = 0) DESC, order_num ASC, id ASC").
		First(&candidate).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := tx.Model(&candidate).Update("featured", true).Error; err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{"ref": ref, "image_id": candidate.ID}).Info("Reassigned featured image")
	return nil
}

func (r *Reconciler) cleanEmptyDir(ref string) {
	dir := r.propertyDir(ref)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		r.logger.WithError(err).WithField("dir", dir).Warn("Failed to remove empty image directory")
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
