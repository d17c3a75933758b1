package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dtnitsch/tululu-parser/internal/crawl"
	"github.com/dtnitsch/tululu-parser/internal/history"
	"github.com/dtnitsch/tululu-parser/pkg/db"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func newApp() *cli.App {
	logFlags := []cli.Flag{
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log debug details"},
	}

	crawlFlags := append([]cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML config file overlaying the built-in defaults"},
		&cli.IntFlag{Name: "start-id", Usage: "first book id of a direct range"},
		&cli.IntFlag{Name: "end-id", Usage: "last book id of a direct range (inclusive)"},
		&cli.StringFlag{Name: "category", Usage: "category listing URL, e.g. https://tululu.org/l55/"},
		&cli.IntFlag{Name: "start-page", Value: 1, Usage: "first listing page"},
		&cli.IntFlag{Name: "end-page", Usage: "last listing page (inclusive); defaults to start page"},
		&cli.StringFlag{Name: "base-url", Usage: "site root"},
		&cli.StringFlag{Name: "dest-dir", Usage: "destination root for texts, images and the manifest"},
		&cli.StringFlag{Name: "manifest", Usage: "manifest path, relative to dest-dir unless absolute"},
		&cli.StringFlag{Name: "manifest-mode", Usage: "truncate, merge or append"},
		&cli.StringFlag{Name: "include", Usage: "manifest inclusion policy: text, cover, any or none"},
		&cli.BoolFlag{Name: "skip-text", Usage: "do not download book texts"},
		&cli.BoolFlag{Name: "skip-imgs", Usage: "do not download cover images"},
		&cli.IntFlag{Name: "max-attempts", Usage: "attempts per book"},
		&cli.DurationFlag{Name: "backoff", Usage: "wait after repeated connection failures"},
		&cli.Float64Flag{Name: "rate", Usage: "max requests per second (0 = unlimited)"},
		&cli.DurationFlag{Name: "timeout", Usage: "per-request timeout (0 = none)"},
		&cli.StringFlag{Name: "user-agent", Usage: "User-Agent header"},
		&cli.StringFlag{Name: "cache-dir", Usage: "cache HTML pages in this directory"},
		&cli.DurationFlag{Name: "cache-ttl", Value: 24 * time.Hour, Usage: "max age of cached pages (0 = never expire)"},
		&cli.StringFlag{Name: "journal", Usage: "journal database path (default <dest-dir>/" + db.DefaultDBName + ")"},
		&cli.BoolFlag{Name: "no-journal", Usage: "do not record the run in the journal"},
		&cli.StringFlag{Name: "format", Value: "json", Usage: "summary format: json or yaml"},
	}, logFlags...)

	journalFlags := []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML config file the crawl used"},
		&cli.StringFlag{Name: "dest-dir", Usage: "destination root the crawl wrote to"},
		&cli.StringFlag{Name: "journal", Usage: "journal database path (default <dest-dir>/" + db.DefaultDBName + ")"},
	}

	return &cli.App{
		Name:  "tululu-parser",
		Usage: "download books, covers and metadata from tululu.org",
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "download a range of books or the books of a category",
				ArgsUsage: "[start_id end_id]",
				Flags:     crawlFlags,
				Action:    crawl.CrawlAction,
			},
			{
				Name:   "runs",
				Usage:  "list recorded crawl runs",
				Flags:  append([]cli.Flag{&cli.IntFlag{Name: "limit", Value: 20}}, journalFlags...),
				Action: history.RunsAction,
			},
			{
				Name:      "run",
				Usage:     "show one crawl run (latest when no id is given)",
				ArgsUsage: "[run_id]",
				Flags:     append([]cli.Flag{&cli.BoolFlag{Name: "all", Usage: "include books that made it into the manifest"}}, journalFlags...),
				Action:    history.RunAction,
			},
		},
	}
}
