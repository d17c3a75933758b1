package extractor

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/tululu-parser/models"
)

// TitleDelimiter separates title and author in the page heading.
const TitleDelimiter = "::"

// ParseError reports that an expected element is missing from a page.
type ParseError struct {
	URL   string
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s: %s", e.URL, e.Field, e.Msg)
}

// Extract parses a detail page into a BookRecord. It performs no I/O.
func Extract(page *models.RawPage, sel models.Selectors) (models.BookRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return models.BookRecord{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	heading := doc.Find(sel.Heading).First()
	if heading.Length() == 0 {
		return models.BookRecord{}, &ParseError{URL: page.URL, Field: "heading", Msg: "not found"}
	}
	title, author, err := SplitHeading(heading.Text())
	if err != nil {
		return models.BookRecord{}, &ParseError{URL: page.URL, Field: "heading", Msg: err.Error()}
	}

	coverURL, err := coverURL(doc, page, sel.Cover)
	if err != nil {
		return models.BookRecord{}, err
	}

	return models.BookRecord{
		Title:    title,
		Author:   author,
		CoverURL: coverURL,
		Comments: texts(doc.Find(sel.Comments), strings.TrimSpace),
		Genres:   texts(doc.Find(sel.Genres), normalizeText),
	}, nil
}

// SplitHeading splits "Title :: Author" on the first delimiter and trims both
// halves.
func SplitHeading(text string) (string, string, error) {
	title, author, ok := strings.Cut(text, TitleDelimiter)
	if !ok {
		return "", "", fmt.Errorf("delimiter %q not found in %q", TitleDelimiter, normalizeText(text))
	}
	return normalizeText(title), normalizeText(author), nil
}

func coverURL(doc *goquery.Document, page *models.RawPage, selector string) (string, error) {
	src, ok := doc.Find(selector).First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", &ParseError{URL: page.URL, Field: "cover", Msg: "image source not found"}
	}

	base := page.FinalURL
	if base == "" {
		base = page.URL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", &ParseError{URL: page.URL, Field: "cover", Msg: fmt.Sprintf("invalid page URL: %v", err)}
	}
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return "", &ParseError{URL: page.URL, Field: "cover", Msg: fmt.Sprintf("invalid image source %q", src)}
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// texts returns the text of every node in document order, passed through
// clean. Comments keep their inner line breaks; genres are single words.
func texts(s *goquery.Selection, clean func(string) string) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, node *goquery.Selection) {
		out = append(out, clean(node.Text()))
	})
	return out
}

// normalizeText trims every line and joins the non-empty ones with a space.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}
