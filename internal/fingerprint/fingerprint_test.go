package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIsStable(t *testing.T) {
	fields := map[string]interface{}{
		"ref":        "REF-1",
		"title":      "Apartamento",
		"sale_price": int64(350000000),
		"is_active":  true,
	}

	first, err := Compute(fields)
	require.NoError(t, err)
	second, err := Compute(fields)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestComputeIgnoresInsertionOrder(t *testing.T) {
	a := map[string]interface{}{}
	a["title"] = "Casa"
	a["ref"] = "REF-2"
	a["bedrooms"] = 3

	b := map[string]interface{}{}
	b["bedrooms"] = 3
	b["ref"] = "REF-2"
	b["title"] = "Casa"

	hashA, err := Compute(a)
	require.NoError(t, err)
	hashB, err := Compute(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestComputeDetectsChange(t *testing.T) {
	base := map[string]interface{}{"ref": "REF-3", "sale_price": int64(100)}
	changed := map[string]interface{}{"ref": "REF-3", "sale_price": int64(101)}

	hashBase, err := Compute(base)
	require.NoError(t, err)
	hashChanged, err := Compute(changed)
	require.NoError(t, err)

	assert.NotEqual(t, hashBase, hashChanged)
}
