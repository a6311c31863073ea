package images

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
)

// fetch downloads the image bytes. The client timeout bounds the call; a
// failure here is always downgraded to a per-image skip by the caller.
func (r *Reconciler) fetch(imageURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("User-Agent", "orbisync/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

func hashBytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// localFilename derives the deterministic on-disk name for the image at
// the given position: {ref}_{position+1}_{originalFilename}.
func localFilename(ref string, position int, imageURL string) string {
	base := "image"
	if u, err := url.Parse(imageURL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
	}
	if filepath.Ext(base) == "" {
		base += ".jpg"
	}
	return fmt.Sprintf("%s_%d_%s", ref, position+1, base)
}
