// Package media stores listing images in an object store and maps object keys
// to the public URLs saved on listings.
package media

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix is the folder every listing image is uploaded under.
const KeyPrefix = "terrenos/"

// Store is an object store holding publicly readable listing images.
type Store interface {
	// Put uploads size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// PublicURL returns the URL clients use to fetch key.
	PublicURL(key string) string
	// KeyFromURL recovers the key of a URL produced by PublicURL. It reports
	// false for URLs that point elsewhere (e.g. external images).
	KeyFromURL(url string) (string, bool)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the key for an uploaded file: "terrenos/<unix-millis>_<name>".
// Only the base name of filename is kept. Two uploads of the same name in the
// same millisecond collide; the later one wins.
func ObjectKey(now time.Time, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return KeyPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + name
}

// KeyFromURL strips base (plus a slash) from url. It reports false when url
// does not start with base or names no object.
func KeyFromURL(base, url string) (string, bool) {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(url, base+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
