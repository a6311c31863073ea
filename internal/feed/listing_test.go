package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBasicFields(t *testing.T) {
	raw := RawListing{
		"ref":                                 "REF-100",
		"codigo_consignacion_sincronizacion":  "SC-7",
		"id":                                  float64(42),
		"observacion":                         "Apartamento en El Poblado",
		"observacion_portales":                "Amplio apartamento con vista",
		"direccion":                           "Calle 10 # 43-12",
		"valor_venta":                         float64(350000000),
		"valor_canon":                         float64(2500000),
		"valor_admon":                         float64(450000),
		"area_construida":                     float64(95.5),
		"alcobas":                             float64(3),
		"baños":                               float64(2),
		"garajes":                             float64(1),
		"estrato":                             float64(5),
		"ascensor":                            "Si",
		"latitud":                             6.2088,
		"longitud":                            -75.5679,
		"ciudad":                              "Medellín",
		"barrio":                              "El Poblado",
		"tipo_inmueble":                       "Apartamento",
		"uso":                                 "Vivienda",
		"estado_actual":                       "Usado",
		"tipo_consignacion":                   "Venta",
	}

	l := Normalize(raw)

	assert.Equal(t, "REF-100", l.Ref)
	assert.Equal(t, "SC-7", l.SyncCode)
	assert.Equal(t, "42", l.SourceID)
	assert.Equal(t, "Apartamento en El Poblado", l.Title)
	assert.Equal(t, "Amplio apartamento con vista", l.Description)
	assert.Equal(t, "Calle 10 # 43-12", l.Address)
	assert.Equal(t, int64(350000000), l.SalePrice)
	assert.Equal(t, int64(2500000), l.RentPrice)
	assert.Equal(t, int64(450000), l.AdministrationFee)
	assert.Equal(t, 95.5, l.BuiltArea)
	assert.Equal(t, 3, l.Bedrooms)
	assert.Equal(t, 2, l.Bathrooms)
	assert.Equal(t, 1, l.Garages)
	assert.Equal(t, 5, l.Stratum)
	assert.True(t, l.HasElevator)
	assert.Equal(t, 6.2088, l.Latitude)
	assert.Equal(t, "Medellín", l.City)
	assert.Equal(t, "El Poblado", l.Neighborhood)
	assert.Equal(t, "Apartamento", l.PropertyType)
	assert.Equal(t, "Venta", l.ConsignmentType)
}

func TestNormalizeEnglishAliases(t *testing.T) {
	raw := RawListing{
		"referencia": "REF-200",
		"sync_code":  "SC-9",
		"title":      "Casa campestre",
		"city":       "Rionegro",
		"sale_price": "120000000",
	}

	l := Normalize(raw)

	assert.Equal(t, "REF-200", l.Ref)
	assert.Equal(t, "SC-9", l.SyncCode)
	assert.Equal(t, "Casa campestre", l.Title)
	assert.Equal(t, "Rionegro", l.City)
	assert.Equal(t, int64(120000000), l.SalePrice)
}

func TestNormalizeClamps(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawListing
		check    func(t *testing.T, l Listing)
	}{
		{
			name: "negative sale price floors at zero",
			raw:  RawListing{"valor_venta": float64(-5000)},
			check: func(t *testing.T, l Listing) {
				assert.Equal(t, int64(0), l.SalePrice)
			},
		},
		{
			name: "rent price caps at column maximum",
			raw:  RawListing{"valor_canon": float64(5000000000)},
			check: func(t *testing.T, l Listing) {
				assert.Equal(t, int64(999999999), l.RentPrice)
			},
		},
		{
			name: "administration fee caps at column maximum",
			raw:  RawListing{"valor_admon": float64(99999999)},
			check: func(t *testing.T, l Listing) {
				assert.Equal(t, int64(9999999), l.AdministrationFee)
			},
		},
		{
			name: "negative area floors at zero",
			raw:  RawListing{"area_construida": float64(-12.5)},
			check: func(t *testing.T, l Listing) {
				assert.Equal(t, 0.0, l.BuiltArea)
			},
		},
		{
			name: "title truncates to column size",
			raw:  RawListing{"observacion": strings.Repeat("a", 300)},
			check: func(t *testing.T, l Listing) {
				assert.Len(t, l.Title, 255)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Normalize(tt.raw))
		})
	}
}

func TestParseImageRefsVariants(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawListing
		expected []string
	}{
		{
			name:     "list of URL strings",
			raw:      RawListing{"imagenes": []interface{}{"http://img/1.jpg", "http://img/2.jpg"}},
			expected: []string{"http://img/1.jpg", "http://img/2.jpg"},
		},
		{
			name: "list of url objects",
			raw: RawListing{"imagenes": []interface{}{
				map[string]interface{}{"url": "http://img/a.jpg"},
				map[string]interface{}{"url": "http://img/b.jpg"},
			}},
			expected: []string{"http://img/a.jpg", "http://img/b.jpg"},
		},
		{
			name:     "single URL under imagen",
			raw:      RawListing{"imagen": "http://img/only.jpg"},
			expected: []string{"http://img/only.jpg"},
		},
		{
			name:     "empty entries dropped",
			raw:      RawListing{"imagenes": []interface{}{"", "http://img/kept.jpg", map[string]interface{}{"url": ""}}},
			expected: []string{"http://img/kept.jpg"},
		},
		{
			name:     "no image field",
			raw:      RawListing{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw).ImageURLs)
		})
	}
}

func TestParseCharacteristics(t *testing.T) {
	raw := RawListing{
		"caracteristicas": []interface{}{
			map[string]interface{}{"nombre": "Piscina", "valor": "Si"},
			map[string]interface{}{"nombre": "Pisos", "valor": float64(3)},
			map[string]interface{}{"valor": "huérfano"},
			map[string]interface{}{"name": "Balcony", "value": "yes"},
		},
	}

	l := Normalize(raw)

	assert.Equal(t, []Characteristic{
		{Name: "Piscina", Value: "Si"},
		{Name: "Pisos", Value: "3"},
		{Name: "Balcony", Value: "yes"},
	}, l.Characteristics)
}

func TestShortDescription(t *testing.T) {
	t.Run("short description passes through", func(t *testing.T) {
		l := Listing{Description: "Apartamento pequeño y bien ubicado"}
		assert.Equal(t, "Apartamento pequeño y bien ubicado", l.ShortDescription())
	})

	t.Run("long description cuts at last word and adds ellipsis", func(t *testing.T) {
		l := Listing{Description: strings.Repeat("palabra ", 40)}
		short := l.ShortDescription()
		assert.True(t, strings.HasSuffix(short, "..."))
		assert.LessOrEqual(t, len([]rune(short)), 153)
		assert.False(t, strings.HasSuffix(strings.TrimSuffix(short, "..."), " "))
	})

	t.Run("falls back to title", func(t *testing.T) {
		l := Listing{Title: "Casa en Laureles"}
		assert.Equal(t, "Casa en Laureles", l.ShortDescription())
	})

	t.Run("falls back to placeholder", func(t *testing.T) {
		assert.Equal(t, "Propiedad inmobiliaria disponible", Listing{}.ShortDescription())
	})
}

func TestBooleanVariants(t *testing.T) {
	tests := []struct {
		value    interface{}
		expected bool
	}{
		{true, true},
		{"Si", true},
		{"sí", true},
		{"1", true},
		{"true", true},
		{float64(1), true},
		{"no", false},
		{"0", false},
		{float64(0), false},
		{nil, false},
	}

	for _, tt := range tests {
		raw := RawListing{"ascensor": tt.value}
		assert.Equal(t, tt.expected, Normalize(raw).HasElevator, "value %v", tt.value)
	}
}
