// Package models defines data structures for configuration and crawl results.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig describes the endpoints of the source site.
type SiteConfig struct {
	BaseURL string `yaml:"base_url"`
	// BookPath is a fmt template taking the numeric book id.
	BookPath string `yaml:"book_path"`
	// TextPath is the text-retrieval endpoint; the id is passed as TextParam.
	TextPath  string `yaml:"text_path"`
	TextParam string `yaml:"text_param"`
	// ListingPage is a fmt template taking the page number, appended to the
	// category URL for pages after the first.
	ListingPage string `yaml:"listing_page"`
}

// Selectors are the CSS selectors for the one page layout the crawler targets.
type Selectors struct {
	Heading     string `yaml:"heading"`
	Cover       string `yaml:"cover"`
	Comments    string `yaml:"comments"`
	Genres      string `yaml:"genres"`
	ListingBook string `yaml:"listing_book"`
}

// RetryConfig bounds the per-book attempt loop.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// OutputConfig controls where and how results land on disk.
type OutputConfig struct {
	DestDir      string          `yaml:"dest_dir"`
	TextsDir     string          `yaml:"texts_dir"`
	ImagesDir    string          `yaml:"images_dir"`
	ManifestPath string          `yaml:"manifest_path"`
	ManifestMode ManifestMode    `yaml:"manifest_mode"`
	Inclusion    InclusionPolicy `yaml:"inclusion"`
	SkipText     bool            `yaml:"skip_text"`
	SkipImages   bool            `yaml:"skip_images"`
}

// PolitenessConfig paces outbound requests.
type PolitenessConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
}

// Config holds runtime configuration for a crawl.
// Defaults come from DefaultConfig, an optional YAML file overlays them, and
// CLI flags overlay the file.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Selectors  Selectors        `yaml:"selectors"`
	Retry      RetryConfig      `yaml:"retry"`
	Output     OutputConfig     `yaml:"output"`
	Politeness PolitenessConfig `yaml:"politeness"`
}

// DefaultConfig returns the configuration for tululu.org.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:     "https://tululu.org/",
			BookPath:    "b%d/",
			TextPath:    "txt.php",
			TextParam:   "id",
			ListingPage: "%d/",
		},
		Selectors: Selectors{
			Heading:     "h1",
			Cover:       "div.bookimage img",
			Comments:    "div.texts span.black",
			Genres:      "span.d_book a",
			ListingBook: "table.d_book",
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			Backoff:     10 * time.Second,
		},
		Output: OutputConfig{
			DestDir:      ".",
			TextsDir:     "books",
			ImagesDir:    "images",
			ManifestPath: "books.json",
			ManifestMode: ManifestTruncate,
			Inclusion:    IncludeRequireText,
		},
		Politeness: PolitenessConfig{
			UserAgent: "tululu-parser/1.0",
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be absolute", c.Site.BaseURL)
	}
	if !strings.Contains(c.Site.BookPath, "%d") {
		return errors.New("book_path must contain %d")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("backoff must not be negative, got %s", c.Retry.Backoff)
	}
	if c.Politeness.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.Politeness.RequestsPerSecond)
	}
	if _, err := ParseInclusionPolicy(string(c.Output.Inclusion)); err != nil {
		return err
	}
	if _, err := ParseManifestMode(string(c.Output.ManifestMode)); err != nil {
		return err
	}
	return nil
}

// BookURL returns the canonical detail-page URL for id.
func (c *Config) BookURL(id BookID) (string, error) {
	return c.resolve(fmt.Sprintf(c.Site.BookPath, int(id)))
}

// TextURL returns the text-retrieval endpoint, without the id parameter.
func (c *Config) TextURL() (string, error) {
	return c.resolve(c.Site.TextPath)
}

// ListingURL returns the URL of page n of a category listing. Page 1 is the
// category URL itself.
func (c *Config) ListingURL(category string, page int) (string, error) {
	base, err := url.Parse(category)
	if err != nil {
		return "", fmt.Errorf("invalid category URL: %w", err)
	}
	if !base.IsAbs() {
		root, err := url.Parse(c.Site.BaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base_url: %w", err)
		}
		base = root.ResolveReference(base)
	}
	if page <= 1 {
		return base.String(), nil
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	next, err := url.Parse(fmt.Sprintf(c.Site.ListingPage, page))
	if err != nil {
		return "", fmt.Errorf("invalid listing_page template: %w", err)
	}
	return base.ResolveReference(next).String(), nil
}

func (c *Config) resolve(ref string) (string, error) {
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}
