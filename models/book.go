package models

import (
	"fmt"
	"strconv"
)

// BookID identifies a book on the source site.
type BookID int

func (id BookID) String() string {
	return strconv.Itoa(int(id))
}

// ParseBookID parses a decimal book identifier.
func ParseBookID(s string) (BookID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid book id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid book id %q: must be positive", s)
	}
	return BookID(n), nil
}

// IDRange returns the identifiers in [start, end] inclusive. It counts
// offsets rather than incrementing ids, so end may be the largest BookID.
func IDRange(start, end BookID) []BookID {
	if end < start {
		return nil
	}
	span := int(end - start)
	ids := make([]BookID, 0, min(span, 1024)+1)
	for i := 0; ; i++ {
		ids = append(ids, start+BookID(i))
		if i == span {
			break
		}
	}
	return ids
}

// RawPage is a fetched HTML document together with the URL it was finally
// served from. Relative links on the page resolve against FinalURL.
type RawPage struct {
	URL      string
	FinalURL string
	Body     []byte
}

// BookRecord is the metadata extracted from one detail page.
type BookRecord struct {
	Title    string   `json:"title" yaml:"title"`
	Author   string   `json:"author" yaml:"author"`
	CoverURL string   `json:"cover_url" yaml:"cover_url"`
	Comments []string `json:"comments" yaml:"comments"`
	Genres   []string `json:"genres" yaml:"genres"`
}

// DownloadOutcome holds the local paths of downloaded assets. A path is empty
// when the corresponding download was skipped.
type DownloadOutcome struct {
	TextPath  string
	CoverPath string
}

// ManifestEntry is one book in the output manifest.
type ManifestEntry struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	ImageSrc string   `json:"img_src"`
	BookPath string   `json:"book_path"`
	Comments []string `json:"comments"`
	Genres   []string `json:"genres"`
}

// NewManifestEntry joins an extracted record with its download outcome.
func NewManifestEntry(rec BookRecord, out DownloadOutcome) ManifestEntry {
	comments := rec.Comments
	if comments == nil {
		comments = []string{}
	}
	genres := rec.Genres
	if genres == nil {
		genres = []string{}
	}
	return ManifestEntry{
		Title:    rec.Title,
		Author:   rec.Author,
		ImageSrc: out.CoverPath,
		BookPath: out.TextPath,
		Comments: comments,
		Genres:   genres,
	}
}
