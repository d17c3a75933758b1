package fetcher

import (
	"context"

	"github.com/dtnitsch/tululu-parser/models"
)

// FetchBookPage retrieves the detail page for id. A redirect means the book
// does not exist and yields a *NotFoundError.
func (f *Fetcher) FetchBookPage(ctx context.Context, cfg *models.Config, id models.BookID) (*models.RawPage, error) {
	bookURL, err := cfg.BookURL(id)
	if err != nil {
		return nil, err
	}
	return f.GetPage(ctx, bookURL)
}
