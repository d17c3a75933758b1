package crawl

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type stubEnumerator struct {
	ids  []models.BookID
	err  error
	args []int
}

func (s *stubEnumerator) Enumerate(_ context.Context, category string, startPage, endPage int) ([]models.BookID, error) {
	s.args = []int{startPage, endPage}
	return s.ids, s.err
}

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantErr bool
	}{
		{"range", Source{StartID: 1, EndID: 10}, false},
		{"single id", Source{StartID: 5, EndID: 5}, false},
		{"category", Source{Category: "https://tululu.org/l55/", StartPage: 1, EndPage: 4}, false},
		{"empty", Source{}, true},
		{"both", Source{StartID: 1, EndID: 2, Category: "https://tululu.org/l55/", StartPage: 1, EndPage: 1}, true},
		{"inverted range", Source{StartID: 10, EndID: 1}, true},
		{"zero start", Source{StartID: 0, EndID: 3}, true},
		{"inverted pages", Source{Category: "https://tululu.org/l55/", StartPage: 3, EndPage: 2}, true},
		{"page zero", Source{Category: "https://tululu.org/l55/", StartPage: 0, EndPage: 2}, true},
		{"largest range", Source{StartID: 1, EndID: MaxRangeSize}, false},
		{"oversized range", Source{StartID: 1, EndID: MaxRangeSize + 1}, true},
		{"range up to max int", Source{StartID: 1, EndID: math.MaxInt}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveIDs_Range(t *testing.T) {
	enum := &stubEnumerator{}
	ids, err := ResolveIDs(context.Background(), Source{StartID: 20, EndID: 23}, enum)
	require.NoError(t, err)
	assert.Equal(t, []models.BookID{20, 21, 22, 23}, ids)
	assert.Nil(t, enum.args, "range sources never scan listings")
}

func TestResolveIDs_Category(t *testing.T) {
	enum := &stubEnumerator{ids: []models.BookID{239, 550}}
	src := Source{Category: "https://tululu.org/l55/", StartPage: 2, EndPage: 4}

	ids, err := ResolveIDs(context.Background(), src, enum)
	require.NoError(t, err)
	assert.Equal(t, []models.BookID{239, 550}, ids)
	assert.Equal(t, []int{2, 4}, enum.args)
}

func TestResolveIDs_EnumerateError(t *testing.T) {
	boom := errors.New("listing down")
	enum := &stubEnumerator{err: boom}
	src := Source{Category: "https://tululu.org/l55/", StartPage: 1, EndPage: 1}

	_, err := ResolveIDs(context.Background(), src, enum)
	assert.ErrorIs(t, err, boom)
}

// runCrawlFlags parses args through a throwaway app and hands the context
// to fn.
func runCrawlFlags(t *testing.T, args []string, fn func(c *cli.Context) error) {
	t.Helper()
	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start-id"},
			&cli.IntFlag{Name: "end-id"},
			&cli.StringFlag{Name: "category"},
			&cli.IntFlag{Name: "start-page", Value: 1},
			&cli.IntFlag{Name: "end-page"},
			&cli.StringFlag{Name: "base-url"},
			&cli.StringFlag{Name: "dest-dir"},
			&cli.StringFlag{Name: "manifest"},
			&cli.StringFlag{Name: "manifest-mode"},
			&cli.StringFlag{Name: "include"},
			&cli.BoolFlag{Name: "skip-text"},
			&cli.BoolFlag{Name: "skip-imgs"},
			&cli.IntFlag{Name: "max-attempts"},
			&cli.DurationFlag{Name: "backoff"},
			&cli.Float64Flag{Name: "rate"},
			&cli.DurationFlag{Name: "timeout"},
			&cli.StringFlag{Name: "user-agent"},
		},
		Action: fn,
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
}

func TestSourceFromFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Source
	}{
		{"positional", []string{"20", "30"}, Source{StartID: 20, EndID: 30, StartPage: 1}},
		{"flags", []string{"--start-id", "5", "--end-id", "9"}, Source{StartID: 5, EndID: 9, StartPage: 1}},
		{"single id", []string{"--start-id", "5"}, Source{StartID: 5, EndID: 5, StartPage: 1}},
		{"category one page", []string{"--category", "https://tululu.org/l55/", "--start-page", "3"},
			Source{Category: "https://tululu.org/l55/", StartPage: 3, EndPage: 3}},
		{"category range", []string{"--category", "https://tululu.org/l55/", "--end-page", "4"},
			Source{Category: "https://tululu.org/l55/", StartPage: 1, EndPage: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runCrawlFlags(t, tt.args, func(c *cli.Context) error {
				got, err := SourceFromFlags(c)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return nil
			})
		})
	}
}

func TestSourceFromFlags_BadPositional(t *testing.T) {
	for _, args := range [][]string{{"20"}, {"a", "b"}, {"1", "2", "3"}} {
		runCrawlFlags(t, args, func(c *cli.Context) error {
			_, err := SourceFromFlags(c)
			assert.Error(t, err, "%v", args)
			return nil
		})
	}
}

func TestApplyFlags(t *testing.T) {
	runCrawlFlags(t, []string{
		"--dest-dir", "out", "--include", "any", "--manifest-mode", "merge",
		"--skip-imgs", "--max-attempts", "2", "--backoff", "3s", "--rate", "1.5",
	}, func(c *cli.Context) error {
		cfg := models.DefaultConfig()
		require.NoError(t, ApplyFlags(cfg, c))

		assert.Equal(t, "out", cfg.Output.DestDir)
		assert.Equal(t, models.IncludeRequireAny, cfg.Output.Inclusion)
		assert.Equal(t, models.ManifestMerge, cfg.Output.ManifestMode)
		assert.True(t, cfg.Output.SkipImages)
		assert.False(t, cfg.Output.SkipText)
		assert.Equal(t, 2, cfg.Retry.MaxAttempts)
		assert.Equal(t, "3s", cfg.Retry.Backoff.String())
		assert.Equal(t, 1.5, cfg.Politeness.RequestsPerSecond)
		assert.Equal(t, "https://tululu.org/", cfg.Site.BaseURL, "unset flags keep config values")
		return nil
	})

	runCrawlFlags(t, []string{"--include", "sometimes"}, func(c *cli.Context) error {
		assert.Error(t, ApplyFlags(models.DefaultConfig(), c))
		return nil
	})
}
