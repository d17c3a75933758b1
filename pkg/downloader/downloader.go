// Package downloader saves book texts and cover images to disk.
package downloader

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"

	"github.com/dtnitsch/tululu-parser/internal/common"
	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/storage"
)

// Getter issues GET requests. *fetcher.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, params map[string]string) (*models.RawPage, error)
}

// Asset describes a file written by the downloader.
type Asset struct {
	Path        string
	SizeBytes   int64
	ContentHash string
}

type Downloader struct {
	getter Getter
	cfg    *models.Config
	store  *storage.Storage
}

func New(getter Getter, cfg *models.Config, store *storage.Storage) *Downloader {
	if store == nil {
		store = &storage.Storage{}
	}
	return &Downloader{getter: getter, cfg: cfg, store: store}
}

// DownloadText fetches the text of book id and writes it to
// destDir/<sanitized suggestedName>.txt, overwriting any existing file.
func (d *Downloader) DownloadText(ctx context.Context, id models.BookID, suggestedName, destDir string) (Asset, error) {
	textURL, err := d.cfg.TextURL()
	if err != nil {
		return Asset{}, err
	}

	if err := d.store.EnsureDir(destDir); err != nil {
		return Asset{}, err
	}

	resp, err := d.getter.Get(ctx, textURL, map[string]string{
		d.cfg.Site.TextParam: strconv.Itoa(int(id)),
	})
	if err != nil {
		return Asset{}, err
	}

	return d.write(storage.SafePath(destDir, suggestedName, ".txt"), resp.Body)
}

// DownloadCover fetches coverURL and writes it under destDir using the URL's
// last path segment as the filename.
func (d *Downloader) DownloadCover(ctx context.Context, coverURL, destDir string) (Asset, error) {
	name, err := CoverFilename(coverURL)
	if err != nil {
		return Asset{}, err
	}

	if err := d.store.EnsureDir(destDir); err != nil {
		return Asset{}, err
	}

	resp, err := d.getter.Get(ctx, coverURL, nil)
	if err != nil {
		return Asset{}, err
	}

	return d.write(filepath.Join(destDir, storage.SanitizeFilename(name)), resp.Body)
}

// CoverFilename derives a filename from the final path segment of rawURL.
func CoverFilename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid cover URL %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("cover URL %q has no file name", rawURL)
	}
	return name, nil
}

func (d *Downloader) write(filePath string, body []byte) (Asset, error) {
	if err := d.store.SaveFile(filePath, body); err != nil {
		return Asset{}, err
	}
	return Asset{
		Path:        filePath,
		SizeBytes:   int64(len(body)),
		ContentHash: common.ContentHash(body),
	}, nil
}
