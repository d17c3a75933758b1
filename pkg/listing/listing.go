// Package listing discovers book identifiers by scraping category listing
// pages.
package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/fetcher"
)

// PageGetter fetches HTML pages. *fetcher.Fetcher satisfies it.
type PageGetter interface {
	GetPage(ctx context.Context, url string) (*models.RawPage, error)
}

type Enumerator struct {
	getter  PageGetter
	cfg     *models.Config
	logger  *slog.Logger
	pattern *regexp.Regexp
}

func NewEnumerator(getter PageGetter, cfg *models.Config, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{getter: getter, cfg: cfg, logger: logger, pattern: BookPattern(cfg.Site.BookPath)}
}

// Enumerate lists the books on pages [startPage, endPage] of category in
// document order. A redirected listing page means the category has no more
// pages: scanning stops and what was collected so far is returned. Any other
// fetch failure is returned as is.
func (e *Enumerator) Enumerate(ctx context.Context, category string, startPage, endPage int) ([]models.BookID, error) {
	if startPage < 1 {
		startPage = 1
	}

	var ids []models.BookID
	for page := startPage; page <= endPage; page++ {
		pageURL, err := e.cfg.ListingURL(category, page)
		if err != nil {
			return ids, err
		}

		raw, err := e.getter.GetPage(ctx, pageURL)
		if err != nil {
			var nf *fetcher.NotFoundError
			if errors.As(err, &nf) {
				e.logger.Info("Listing ended before requested last page", "page", page, "url", pageURL)
				return ids, nil
			}
			return ids, fmt.Errorf("listing page %d: %w", page, err)
		}

		found, err := e.parse(raw)
		if err != nil {
			return ids, fmt.Errorf("listing page %d: %w", page, err)
		}
		e.logger.Info("Listing page scanned", "page", page, "books", len(found))
		ids = append(ids, found...)
	}
	return ids, nil
}

// BookLinks returns the absolute book URLs on a listing page.
func (e *Enumerator) BookLinks(raw *models.RawPage) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(raw.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", raw.FinalURL, err)
	}

	var links []string
	doc.Find(e.cfg.Selectors.ListingBook).Each(func(_ int, book *goquery.Selection) {
		href, ok := book.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			e.logger.Warn("Skipping malformed book link", "href", href, "error", err)
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, nil
}

func (e *Enumerator) parse(raw *models.RawPage) ([]models.BookID, error) {
	links, err := e.BookLinks(raw)
	if err != nil {
		return nil, err
	}

	ids := make([]models.BookID, 0, len(links))
	for _, link := range links {
		id, err := BookIDFromURL(e.pattern, link)
		if err != nil {
			e.logger.Warn("Skipping link without book id", "url", link, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BookPattern turns a detail-path template such as "b%d/" into a pattern
// matching the end of a URL path and capturing the id.
func BookPattern(bookPath string) *regexp.Regexp {
	parts := strings.SplitN(strings.TrimSuffix(bookPath, "/"), "%d", 2)
	expr := `(?:^|/)` + regexp.QuoteMeta(strings.TrimPrefix(parts[0], "/")) + `(\d+)`
	if len(parts) == 2 {
		expr += regexp.QuoteMeta(parts[1])
	}
	return regexp.MustCompile(expr + `/?$`)
}

// BookIDFromURL extracts the numeric id from a detail-page URL such as
// https://tululu.org/b239/.
func BookIDFromURL(pattern *regexp.Regexp, rawURL string) (models.BookID, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	m := pattern.FindStringSubmatch(u.Path)
	if m == nil {
		return 0, fmt.Errorf("no book id in %q", rawURL)
	}
	return models.ParseBookID(m[1])
}
