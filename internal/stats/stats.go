// Package stats accumulates run-level counters. Counters are atomic so a
// parallelized driver can share one collector across listings.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Collector gathers the counters of one sync run.
type Collector struct {
	runID   string
	started time.Time

	processed int64
	created   int64
	updated   int64
	unchanged int64

	imagesDownloaded int64
	imagesUpdated    int64
	imagesDeleted    int64

	errors int64
}

func NewCollector() *Collector {
	return &Collector{
		runID:   uuid.NewString(),
		started: time.Now(),
	}
}

func (c *Collector) RunID() string { return c.runID }

func (c *Collector) AddProcessed() { atomic.AddInt64(&c.processed, 1) }
func (c *Collector) AddCreated()   { atomic.AddInt64(&c.created, 1) }
func (c *Collector) AddUpdated()   { atomic.AddInt64(&c.updated, 1) }
func (c *Collector) AddUnchanged() { atomic.AddInt64(&c.unchanged, 1) }
func (c *Collector) AddError()     { atomic.AddInt64(&c.errors, 1) }

func (c *Collector) AddImagesDownloaded(n int) { atomic.AddInt64(&c.imagesDownloaded, int64(n)) }
func (c *Collector) AddImagesUpdated(n int)    { atomic.AddInt64(&c.imagesUpdated, int64(n)) }
func (c *Collector) AddImagesDeleted(n int)    { atomic.AddInt64(&c.imagesDeleted, int64(n)) }

// Summary is the end-of-run report surfaced to the caller and the log.
type Summary struct {
	RunID string `json:"run_id"`

	Processed int64 `json:"properties_processed"`
	Created   int64 `json:"properties_new"`
	Updated   int64 `json:"properties_updated"`
	Unchanged int64 `json:"properties_unchanged"`

	ImagesDownloaded int64 `json:"images_downloaded"`
	ImagesUpdated    int64 `json:"images_updated"`
	ImagesDeleted    int64 `json:"images_deleted"`

	Errors int64 `json:"errors"`

	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// Snapshot freezes the counters into a summary. The run always produces a
// summary, even when some listings failed.
func (c *Collector) Snapshot() Summary {
	end := time.Now()
	return Summary{
		RunID:            c.runID,
		Processed:        atomic.LoadInt64(&c.processed),
		Created:          atomic.LoadInt64(&c.created),
		Updated:          atomic.LoadInt64(&c.updated),
		Unchanged:        atomic.LoadInt64(&c.unchanged),
		ImagesDownloaded: atomic.LoadInt64(&c.imagesDownloaded),
		ImagesUpdated:    atomic.LoadInt64(&c.imagesUpdated),
		ImagesDeleted:    atomic.LoadInt64(&c.imagesDeleted),
		Errors:           atomic.LoadInt64(&c.errors),
		Start:            c.started,
		End:              end,
		Duration:         end.Sub(c.started),
	}
}
