package crawl

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/caching"
	"github.com/dtnitsch/tululu-parser/pkg/db"
	"github.com/dtnitsch/tululu-parser/pkg/downloader"
	"github.com/dtnitsch/tululu-parser/pkg/fetcher"
	"github.com/dtnitsch/tululu-parser/pkg/listing"
	"github.com/dtnitsch/tululu-parser/pkg/manifest"
	"github.com/dtnitsch/tululu-parser/pkg/storage"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// NewLogger builds the JSON stderr logger used by every command.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func CrawlAction(c *cli.Context) error {
	logger := NewLogger(c)
	slog.SetDefault(logger)

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	if err := ApplyFlags(cfg, c); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("Error: invalid configuration: %v", err), 1)
	}

	src, err := SourceFromFlags(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if err := src.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, `  tululu-parser crawl 20 30                                  # Books 20..30`)
		fmt.Fprintln(os.Stderr, `  tululu-parser crawl --category https://tululu.org/l55/ --start-page 1 --end-page 4`)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Need help? Run: tululu-parser crawl --help")
		return cli.Exit("", 1)
	}

	if cfg.Output.SkipText && cfg.Output.Inclusion == models.IncludeRequireText {
		logger.Warn("Text downloads are skipped but the inclusion policy requires a text file; the manifest will be empty",
			"inclusion", cfg.Output.Inclusion)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	fetchOpts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithTimeout(cfg.Politeness.Timeout),
		fetcher.WithRateLimit(cfg.Politeness.RequestsPerSecond),
		fetcher.WithUserAgent(cfg.Politeness.UserAgent),
	}
	if dir := c.String("cache-dir"); dir != "" {
		cache, err := caching.NewPageCache(dir, c.Duration("cache-ttl"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
		}
		fetchOpts = append(fetchOpts, fetcher.WithCache(cache))
	}
	f := fetcher.NewFetcher(fetchOpts...)

	driverOpts := []DriverOption{WithLogger(logger)}
	if !c.Bool("no-journal") {
		database, err := db.Open(db.JournalPath(c.String("journal"), cfg.Output.DestDir))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: failed to open journal: %v", err), 2)
		}
		defer database.Close()
		driverOpts = append(driverOpts, WithJournal(database))
		logger.Info("Journal opened", "path", database.Path())
	}

	ids, err := ResolveIDs(ctx, src, listing.NewEnumerator(f, cfg, logger))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	logger.Info("Starting crawl", "source", src.String(), "books", len(ids),
		"max_attempts", cfg.Retry.MaxAttempts, "backoff", cfg.Retry.Backoff)

	store := &storage.Storage{}
	driver := NewDriver(cfg, f, downloader.New(f, cfg, store), driverOpts...)
	summary, _, runErr := driver.Run(ctx, src.String(), ids)

	if err := printSummary(summary, c.String("format")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", runErr), 2)
	}
	if len(summary.Exhausted) > 0 || ctx.Err() != nil {
		return cli.Exit("", 1)
	}
	return nil
}

// SourceFromFlags reads the identifier source. Two positional arguments are
// a start and end id.
func SourceFromFlags(c *cli.Context) (Source, error) {
	src := Source{
		StartID:   c.Int("start-id"),
		EndID:     c.Int("end-id"),
		Category:  c.String("category"),
		StartPage: c.Int("start-page"),
		EndPage:   c.Int("end-page"),
	}

	switch c.NArg() {
	case 0:
	case 2:
		start, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return src, fmt.Errorf("invalid start id %q", c.Args().Get(0))
		}
		end, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return src, fmt.Errorf("invalid end id %q", c.Args().Get(1))
		}
		src.StartID, src.EndID = start, end
	default:
		return src, fmt.Errorf("expected 0 or 2 positional arguments, got %d", c.NArg())
	}

	if src.StartID != 0 && src.EndID == 0 {
		src.EndID = src.StartID
	}
	if src.Category != "" && !c.IsSet("end-page") {
		src.EndPage = src.StartPage
	}
	return src, nil
}

// ApplyFlags overlays explicitly set flags on cfg.
func ApplyFlags(cfg *models.Config, c *cli.Context) error {
	if c.IsSet("base-url") {
		cfg.Site.BaseURL = c.String("base-url")
	}
	if c.IsSet("dest-dir") {
		cfg.Output.DestDir = c.String("dest-dir")
	}
	if c.IsSet("manifest") {
		cfg.Output.ManifestPath = c.String("manifest")
	}
	if c.IsSet("manifest-mode") {
		mode, err := models.ParseManifestMode(c.String("manifest-mode"))
		if err != nil {
			return err
		}
		cfg.Output.ManifestMode = mode
	}
	if c.IsSet("include") {
		policy, err := models.ParseInclusionPolicy(c.String("include"))
		if err != nil {
			return err
		}
		cfg.Output.Inclusion = policy
	}
	if c.IsSet("skip-text") {
		cfg.Output.SkipText = c.Bool("skip-text")
	}
	if c.IsSet("skip-imgs") {
		cfg.Output.SkipImages = c.Bool("skip-imgs")
	}
	if c.IsSet("max-attempts") {
		cfg.Retry.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("backoff") {
		cfg.Retry.Backoff = c.Duration("backoff")
	}
	if c.IsSet("rate") {
		cfg.Politeness.RequestsPerSecond = c.Float64("rate")
	}
	if c.IsSet("timeout") {
		cfg.Politeness.Timeout = c.Duration("timeout")
	}
	if c.IsSet("user-agent") {
		cfg.Politeness.UserAgent = c.String("user-agent")
	}
	return nil
}

func printSummary(summary *manifest.RunSummary, format string) error {
	if summary == nil {
		return nil
	}
	var (
		out []byte
		err error
	)
	if strings.ToLower(format) == "yaml" {
		out, err = yaml.Marshal(summary)
	} else {
		out, err = json.MarshalIndent(summary, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
