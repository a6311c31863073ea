package models

import "time"

// Property is one real-estate listing kept in sync with the upstream feed.
// Ref is the stable business identifier from the feed and the canonical
// join key for upserts; SyncCode is an alternate identifier the feed
// sometimes carries, stored but never used for matching.
type Property struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Ref      string `gorm:"size:50;uniqueIndex;not null" json:"ref"`
	SyncCode string `gorm:"size:50;index" json:"sync_code"`

	Title            string `gorm:"size:255" json:"title"`
	Description      string `json:"description"`
	ShortDescription string `gorm:"size:255" json:"short_description"`
	Address          string `gorm:"size:255" json:"address"`
	Slug             string `gorm:"size:255;index" json:"slug"`

	SalePrice         int64 `json:"sale_price"`
	RentPrice         int64 `json:"rent_price"`
	AdministrationFee int64 `json:"administration_fee"`

	BuiltArea   float64 `json:"built_area"`
	PrivateArea float64 `json:"private_area"`
	TotalArea   float64 `json:"total_area"`
	LandArea    float64 `json:"land_area"`

	Bedrooms  int `json:"bedrooms"`
	Bathrooms int `json:"bathrooms"`
	Garages   int `json:"garages"`
	Stratum   int `json:"stratum"`
	Age       int `json:"age"`
	Floor     int `json:"floor"`

	HasElevator bool `json:"has_elevator"`
	IsFeatured  bool `json:"is_featured"`
	IsActive    bool `json:"is_active"`
	IsHot       bool `json:"is_hot"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	CityID            uint `gorm:"index" json:"city_id"`
	NeighborhoodID    uint `gorm:"index" json:"neighborhood_id"`
	PropertyTypeID    uint `json:"property_type_id"`
	PropertyUseID     uint `json:"property_use_id"`
	PropertyStatusID  uint `json:"property_status_id"`
	ConsignmentTypeID uint `json:"consignment_type_id"`
	AdvisorID         uint `json:"advisor_id"`

	// Content hash of the normalized listing, used for change detection.
	DataHash string `gorm:"size:32" json:"data_hash"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Images []Image `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Property) TableName() string {
	return "properties"
}

// TrackedFields returns the fields whose value changes are recorded in the
// change log, keyed by column name.
func (p *Property) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"title":               p.Title,
		"description":         p.Description,
		"address":             p.Address,
		"sale_price":          p.SalePrice,
		"rent_price":          p.RentPrice,
		"administration_fee":  p.AdministrationFee,
		"built_area":          p.BuiltArea,
		"private_area":        p.PrivateArea,
		"total_area":          p.TotalArea,
		"bedrooms":            p.Bedrooms,
		"bathrooms":           p.Bathrooms,
		"garages":             p.Garages,
		"stratum":             p.Stratum,
		"age":                 p.Age,
		"floor":               p.Floor,
		"has_elevator":        p.HasElevator,
		"latitude":            p.Latitude,
		"longitude":           p.Longitude,
		"city_id":             p.CityID,
		"neighborhood_id":     p.NeighborhoodID,
		"property_type_id":    p.PropertyTypeID,
		"property_use_id":     p.PropertyUseID,
		"property_status_id":  p.PropertyStatusID,
		"consignment_type_id": p.ConsignmentTypeID,
	}
}

// Image is one downloaded picture belonging to exactly one Property. The
// source URL is the natural key within a listing's image set; at most one
// image per listing has Featured set.
type Image struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PropertyID uint   `gorm:"index;not null" json:"property_id"`
	URL        string `gorm:"size:255;not null" json:"url"`
	LocalPath  string `gorm:"size:255" json:"local_path"`
	OrderNum   int    `gorm:"default:0" json:"order_num"`
	Downloaded bool   `json:"downloaded"`
	Featured   bool   `json:"featured"`

	// MD5 of the file contents, used to detect silent replacement at a
	// stable URL.
	Hash string `gorm:"size:32" json:"hash"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Image) TableName() string {
	return "images"
}

// PropertyChange is an append-only change-log entry written when a tracked
// field of an existing listing actually changes value.
type PropertyChange struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PropertyID uint      `gorm:"index;not null" json:"property_id"`
	Field      string    `gorm:"size:50;not null" json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PropertyChange) TableName() string {
	return "property_changes"
}

// Characteristic is a global named attribute ("Ascensor", "Piscina", ...).
type Characteristic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Characteristic) TableName() string {
	return "characteristics"
}

// PropertyCharacteristic pairs a listing with a characteristic value. The
// whole set is replaced on every sync pass of the listing.
type PropertyCharacteristic struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PropertyID       uint      `gorm:"index;not null" json:"property_id"`
	CharacteristicID uint      `gorm:"index;not null" json:"characteristic_id"`
	Value            string    `json:"value"`
	IsNumeric        bool      `json:"is_numeric"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (PropertyCharacteristic) TableName() string {
	return "property_characteristics"
}

// PropertyFlagState remembers owner-edited flags keyed by external identity
// so a delete-then-recreate cycle does not lose them.
type PropertyFlagState struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Ref        string    `gorm:"size:50;index;not null" json:"ref"`
	SyncCode   string    `gorm:"size:50;index" json:"sync_code"`
	IsActive   bool      `json:"is_active"`
	IsFeatured bool      `json:"is_featured"`
	IsHot      bool      `json:"is_hot"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (PropertyFlagState) TableName() string {
	return "property_flag_states"
}

// Exclusion identifier kinds.
const (
	ExcludeByID       = "id"
	ExcludeByRef      = "ref"
	ExcludeBySyncCode = "sync_code"
)

// ExcludedProperty marks a listing the sync must never import. A stored
// listing matching an exclusion is dropped outright on the next run.
type ExcludedProperty struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Identifier     string    `gorm:"size:50;not null;uniqueIndex:idx_excluded_identifier" json:"identifier"`
	IdentifierType string    `gorm:"size:20;not null;default:ref;uniqueIndex:idx_excluded_identifier" json:"identifier_type"`
	Reason         string    `gorm:"size:255" json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ExcludedProperty) TableName() string {
	return "excluded_properties"
}
