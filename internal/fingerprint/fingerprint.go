// Package fingerprint computes the content hash used to decide whether a
// listing changed between two sync runs.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Compute returns the hex md5 of the canonical JSON serialization of the
// given normalized record. encoding/json marshals map keys in sorted order,
// which makes the digest independent of field insertion order. Callers must
// not include volatile housekeeping fields (storage id, timestamps, the
// previous digest) or the image list; images are reconciled independently.
func Compute(fields map[string]interface{}) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to serialize record for hashing: %w", err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
