// Package caching keeps fetched HTML pages on disk between runs so repeated
// crawls of the same ids and listing pages do not hit the site again.
package caching

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const pageExt = ".html"

// PageCache stores page bodies under <dir>/<sha256 of URL>.html. Callers
// store only pages that were served directly with a 2xx status, and evict
// a page once its content turns out to be unusable.
type PageCache struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// NewPageCache opens dir, creating it if needed. A zero maxAge keeps pages
// until they are evicted.
func NewPageCache(dir string, maxAge time.Duration) (*PageCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &PageCache{dir: dir, maxAge: maxAge, now: time.Now}, nil
}

func (c *PageCache) pagePath(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+pageExt)
}

// Load returns the cached body of pageURL. Stale pages are removed and
// reported as misses.
func (c *PageCache) Load(pageURL string) ([]byte, bool) {
	p := c.pagePath(pageURL)

	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	if c.maxAge > 0 && c.now().Sub(info.ModTime()) > c.maxAge {
		_ = os.Remove(p)
		return nil, false
	}

	body, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return body, true
}

// Store saves body for pageURL. The file is written to a temporary name and
// renamed, so an interrupted run never leaves a truncated page behind.
func (c *PageCache) Store(pageURL string, body []byte) error {
	tmp, err := os.CreateTemp(c.dir, "page-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.pagePath(pageURL)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cached page: %w", err)
	}
	return nil
}

// Evict drops pageURL from the cache. Evicting a page that is not cached is
// not an error.
func (c *PageCache) Evict(pageURL string) error {
	err := os.Remove(c.pagePath(pageURL))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to evict cached page: %w", err)
	}
	return nil
}
