package crawl

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/listing"
)

// MaxRangeSize bounds how many ids a single range source may request.
const MaxRangeSize = 1_000_000

// Source says where identifiers come from: a direct id range or a category
// listing scanned over a page range.
type Source struct {
	StartID   int
	EndID     int
	Category  string
	StartPage int
	EndPage   int
}

func (s Source) usesCategory() bool {
	return s.Category != ""
}

func (s Source) usesRange() bool {
	return s.StartID != 0 || s.EndID != 0
}

// Validate rejects empty, mixed, inverted, or oversized sources.
func (s Source) Validate() error {
	switch {
	case s.usesCategory() && s.usesRange():
		return errors.New("use either an id range or a category, not both")
	case s.usesCategory():
		if s.StartPage < 1 {
			return fmt.Errorf("start page must be at least 1, got %d", s.StartPage)
		}
		if s.EndPage < s.StartPage {
			return fmt.Errorf("end page %d is before start page %d", s.EndPage, s.StartPage)
		}
	case s.usesRange():
		if s.StartID < 1 {
			return fmt.Errorf("start id must be at least 1, got %d", s.StartID)
		}
		if s.EndID < s.StartID {
			return fmt.Errorf("end id %d is before start id %d", s.EndID, s.StartID)
		}
		if s.EndID-s.StartID >= MaxRangeSize {
			return fmt.Errorf("id range %d-%d is larger than %d books", s.StartID, s.EndID, MaxRangeSize)
		}
	default:
		return errors.New("no books requested: give an id range or a category")
	}
	return nil
}

func (s Source) String() string {
	if s.usesCategory() {
		return fmt.Sprintf("%s pages %d-%d", s.Category, s.StartPage, s.EndPage)
	}
	return fmt.Sprintf("ids %d-%d", s.StartID, s.EndID)
}

// Enumerator lists identifiers from category pages.
type Enumerator interface {
	Enumerate(ctx context.Context, category string, startPage, endPage int) ([]models.BookID, error)
}

var _ Enumerator = (*listing.Enumerator)(nil)

// ResolveIDs turns a source into the ordered identifier list.
func ResolveIDs(ctx context.Context, src Source, enum Enumerator) ([]models.BookID, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if !src.usesCategory() {
		return models.IDRange(models.BookID(src.StartID), models.BookID(src.EndID)), nil
	}
	ids, err := enum.Enumerate(ctx, src.Category, src.StartPage, src.EndPage)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", src, err)
	}
	return ids, nil
}
