package feed

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawListing is one element of the feed payload, keyed by the source's own
// field names. Normalization into a typed Listing happens once, here at the
// boundary; nothing downstream ever touches the raw map.
type RawListing map[string]interface{}

// Characteristic is one free-form name/value attribute of a listing.
type Characteristic struct {
	Name  string
	Value string
}

// Listing is the normalized, typed representation of a feed record. Every
// numeric field defaults to 0 and every boolean to false when the source
// omits it; out-of-range numeric values are clamped rather than rejected.
type Listing struct {
	Ref      string
	SyncCode string

	Title       string
	Description string
	Address     string

	SalePrice         int64
	RentPrice         int64
	AdministrationFee int64

	BuiltArea   float64
	PrivateArea float64
	TotalArea   float64
	LandArea    float64

	Bedrooms  int
	Bathrooms int
	Garages   int
	Stratum   int
	Age       int
	Floor     int

	HasElevator bool

	Latitude  float64
	Longitude float64

	City            string
	Neighborhood    string
	PropertyType    string
	PropertyUse     string
	PropertyStatus  string
	ConsignmentType string

	ImageURLs       []string
	Characteristics []Characteristic

	// SourceID is the feed's own row id when present, used only for
	// exclusion matching.
	SourceID string
}

// Storage column caps inherited from the original schema.
const (
	maxTitleLen  = 255
	maxRentPrice = 999999999
	maxAdminFee  = 9999999
)

// Normalize maps a raw feed record onto the canonical Listing shape. The
// feed speaks Spanish field names; English aliases are accepted as a
// fallback because some deployments relabel the payload.
func Normalize(raw RawListing) Listing {
	l := Listing{
		Ref:      raw.str("ref", "referencia"),
		SyncCode: raw.str("codigo_consignacion_sincronizacion", "sync_code"),
		SourceID: raw.str("id"),

		Title:       truncate(raw.str("observacion", "title"), maxTitleLen),
		Description: raw.str("observacion_portales", "description"),
		Address:     raw.str("direccion", "address"),

		SalePrice:         clampInt64(raw.int64("valor_venta", "sale_price"), 0, -1),
		RentPrice:         clampInt64(raw.int64("valor_canon", "rent_price"), 0, maxRentPrice),
		AdministrationFee: clampInt64(raw.int64("valor_admon", "administration_fee"), 0, maxAdminFee),

		BuiltArea:   nonNegative(raw.float("area_construida", "built_area")),
		PrivateArea: nonNegative(raw.float("area_privada", "private_area")),
		TotalArea:   nonNegative(raw.float("area_total", "total_area")),
		LandArea:    nonNegative(raw.float("area_lote", "land_area")),

		Bedrooms:  int(clampInt64(raw.int64("alcobas", "bedrooms"), 0, -1)),
		Bathrooms: int(clampInt64(raw.int64("baños", "bathrooms"), 0, -1)),
		Garages:   int(clampInt64(raw.int64("garajes", "garages"), 0, -1)),
		Stratum:   int(clampInt64(raw.int64("estrato", "stratum"), 0, -1)),
		Age:       int(clampInt64(raw.int64("edad", "age"), 0, -1)),
		Floor:     int(clampInt64(raw.int64("piso", "floor"), 0, -1)),

		HasElevator: raw.boolean("ascensor", "has_elevator"),

		Latitude:  raw.float("latitud", "latitude"),
		Longitude: raw.float("longitud", "longitude"),

		City:            raw.str("ciudad", "city"),
		Neighborhood:    raw.str("barrio", "neighborhood"),
		PropertyType:    raw.str("tipo_inmueble", "property_type"),
		PropertyUse:     raw.str("uso", "property_use"),
		PropertyStatus:  raw.str("estado_actual", "property_status"),
		ConsignmentType: raw.str("tipo_consignacion", "consignment_type"),

		ImageURLs:       parseImageRefs(raw),
		Characteristics: parseCharacteristics(raw),
	}
	return l
}

// parseImageRefs normalizes the three image shapes the feed is known to
// produce (list of URL strings, list of {url: ...} objects, single URL
// string) into a plain URL slice, dropping empty entries.
func parseImageRefs(raw RawListing) []string {
	value, ok := raw["imagenes"]
	if !ok {
		value, ok = raw["images"]
	}
	if !ok {
		if single := raw.str("imagen", "image"); single != "" {
			return []string{single}
		}
		return nil
	}

	list, ok := value.([]interface{})
	if !ok {
		if s, ok := value.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}

	urls := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if v != "" {
				urls = append(urls, v)
			}
		case map[string]interface{}:
			if u, _ := v["url"].(string); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func parseCharacteristics(raw RawListing) []Characteristic {
	value, ok := raw["caracteristicas"]
	if !ok {
		value, ok = raw["characteristics"]
	}
	list, isList := value.([]interface{})
	if !ok || !isList {
		return nil
	}

	chars := make([]Characteristic, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name := stringify(entry["nombre"])
		if name == "" {
			name = stringify(entry["name"])
		}
		if name == "" {
			continue
		}
		val := stringify(entry["valor"])
		if val == "" {
			val = stringify(entry["value"])
		}
		chars = append(chars, Characteristic{Name: name, Value: val})
	}
	return chars
}

// ShortDescription derives the 150-character teaser shown in listing
// cards: the description truncated at the last whole word with an
// ellipsis, falling back to the title, then to a generic placeholder.
func (l Listing) ShortDescription() string {
	if l.Description != "" {
		runes := []rune(l.Description)
		if len(runes) <= 150 {
			return l.Description
		}
		short := string(runes[:150])
		if i := strings.LastIndex(short, " "); i > 100 {
			short = short[:i]
		}
		return short + "..."
	}
	if l.Title != "" {
		return l.Title
	}
	return "Propiedad inmobiliaria disponible"
}

func (r RawListing) str(keys ...string) string {
	for _, key := range keys {
		if v, ok := r[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func (r RawListing) float(keys ...string) float64 {
	for _, key := range keys {
		v, ok := r[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func (r RawListing) int64(keys ...string) int64 {
	return int64(r.float(keys...))
}

func (r RawListing) boolean(keys ...string) bool {
	for _, key := range keys {
		v, ok := r[key]
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case float64:
			return b != 0
		case string:
			s := strings.ToLower(strings.TrimSpace(b))
			return s == "1" || s == "true" || s == "si" || s == "sí"
		}
	}
	return false
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		// Feed ids and refs sometimes arrive as bare numbers.
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "1"
		}
		return "0"
	}
	return ""
}

// clampInt64 forces v into [min, max]; max < 0 means unbounded above.
func clampInt64(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if max >= 0 && v > max {
		return max
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
