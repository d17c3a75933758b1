package caching

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCache_StoreLoad(t *testing.T) {
	c, err := NewPageCache(filepath.Join(t.TempDir(), "cache"), time.Hour)
	require.NoError(t, err)

	_, ok := c.Load("https://tululu.org/b1/")
	assert.False(t, ok)

	require.NoError(t, c.Store("https://tululu.org/b1/", []byte("<h1>x</h1>")))
	data, ok := c.Load("https://tululu.org/b1/")
	require.True(t, ok)
	assert.Equal(t, "<h1>x</h1>", string(data))

	_, ok = c.Load("https://tululu.org/b2/")
	assert.False(t, ok)
}

func TestPageCache_StoreReplaces(t *testing.T) {
	dir := t.TempDir()
	c, err := NewPageCache(dir, 0)
	require.NoError(t, err)

	require.NoError(t, c.Store("https://tululu.org/b1/", []byte("first, longer body")))
	require.NoError(t, c.Store("https://tululu.org/b1/", []byte("second")))

	data, ok := c.Load("https://tululu.org/b1/")
	require.True(t, ok)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestPageCache_Stale(t *testing.T) {
	dir := t.TempDir()
	c, err := NewPageCache(dir, time.Minute)
	require.NoError(t, err)

	url := "https://tululu.org/l55/"
	require.NoError(t, c.Store(url, []byte("listing")))

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := c.Load(url)
	assert.False(t, ok)

	_, err = os.Stat(c.pagePath(url))
	assert.True(t, os.IsNotExist(err), "stale page removed")
}

func TestPageCache_ZeroMaxAgeKeepsPages(t *testing.T) {
	c, err := NewPageCache(t.TempDir(), 0)
	require.NoError(t, err)

	url := "https://tululu.org/b3/"
	require.NoError(t, c.Store(url, []byte("page")))

	c.now = func() time.Time { return time.Now().Add(365 * 24 * time.Hour) }
	_, ok := c.Load(url)
	assert.True(t, ok)
}

func TestPageCache_Evict(t *testing.T) {
	c, err := NewPageCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	url := "https://tululu.org/b4/"
	require.NoError(t, c.Store(url, []byte("broken")))
	require.NoError(t, c.Evict(url))

	_, ok := c.Load(url)
	assert.False(t, ok)
	assert.NoError(t, c.Evict(url), "evicting a missing page is fine")
}
