package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// FromURL derives the stable record identifier for a scraped page: the last
// non-empty path segment of its URL. The same URL always yields the same
// identifier, so retries of a page never mint a new record. When the path
// has no usable segment the whole URL is hashed instead, which keeps the
// result deterministic.
func FromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if segments[i] != "" {
				return segments[i]
			}
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8])
}
