package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dtnitsch/tululu-parser/internal/common"
	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/db"
	"github.com/dtnitsch/tululu-parser/pkg/downloader"
	"github.com/dtnitsch/tululu-parser/pkg/extractor"
	"github.com/dtnitsch/tululu-parser/pkg/fetcher"
	"github.com/dtnitsch/tululu-parser/pkg/manifest"
	"github.com/dtnitsch/tululu-parser/pkg/retry"
	"github.com/dtnitsch/tululu-parser/pkg/storage"
)

const (
	StepPage    = "page"
	StepExtract = "extract"
	StepText    = "text"
	StepCover   = "cover"
)

// StepError records which step of an attempt failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BookPageFetcher retrieves detail pages. *fetcher.Fetcher satisfies it.
type BookPageFetcher interface {
	FetchBookPage(ctx context.Context, cfg *models.Config, id models.BookID) (*models.RawPage, error)
}

// PageEvicter forgets a cached page. Fetchers that cache pages implement it
// so a page that failed extraction is fetched again on the next attempt.
type PageEvicter interface {
	EvictPage(url string)
}

// AssetDownloader saves texts and covers. *downloader.Downloader satisfies it.
type AssetDownloader interface {
	DownloadText(ctx context.Context, id models.BookID, suggestedName, destDir string) (downloader.Asset, error)
	DownloadCover(ctx context.Context, coverURL, destDir string) (downloader.Asset, error)
}

// BookResult is what happened to one identifier.
type BookResult struct {
	ID       models.BookID
	Outcome  retry.Outcome
	Record   models.BookRecord
	Download models.DownloadOutcome
	Included bool
}

// Driver walks identifiers one at a time and collects manifest entries.
type Driver struct {
	cfg     *models.Config
	pages   BookPageFetcher
	assets  AssetDownloader
	store   *storage.Storage
	journal *db.DB
	logger  *slog.Logger
	sleep   retry.SleepFunc
	runID   int64
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithJournal records runs, attempts and artifacts in database.
func WithJournal(database *db.DB) DriverOption {
	return func(d *Driver) {
		d.journal = database
	}
}

func WithLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithSleep replaces the orchestrator's backoff sleep.
func WithSleep(fn retry.SleepFunc) DriverOption {
	return func(d *Driver) {
		d.sleep = fn
	}
}

func NewDriver(cfg *models.Config, pages BookPageFetcher, assets AssetDownloader, opts ...DriverOption) *Driver {
	d := &Driver{
		cfg:    cfg,
		pages:  pages,
		assets: assets,
		store:  &storage.Storage{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TextsDir is where book texts are written.
func (d *Driver) TextsDir() string {
	return filepath.Join(d.cfg.Output.DestDir, d.cfg.Output.TextsDir)
}

// ImagesDir is where covers are written.
func (d *Driver) ImagesDir() string {
	return filepath.Join(d.cfg.Output.DestDir, d.cfg.Output.ImagesDir)
}

// ManifestPath resolves the manifest location; relative paths land under
// the destination root.
func (d *Driver) ManifestPath() string {
	p := d.cfg.Output.ManifestPath
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.cfg.Output.DestDir, p)
}

// Run processes ids in order, then writes the manifest once. The manifest is
// written even when ctx is cancelled part way through; a write failure is
// the only error returned.
func (d *Driver) Run(ctx context.Context, source string, ids []models.BookID) (*manifest.RunSummary, []BookResult, error) {
	start := time.Now()
	d.startRun(source, len(ids))

	orch := retry.NewOrchestrator(retry.PolicyFrom(d.cfg.Retry), d.orchestratorOptions()...)

	summary := &manifest.RunSummary{
		RunID:     d.runID,
		TotalIDs:  len(ids),
		NotFound:  []int{},
		Exhausted: []int{},
		Excluded:  []int{},
	}

	var entries []models.ManifestEntry
	results := make([]BookResult, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			d.logger.Warn("Run interrupted, writing collected entries", "next_book_id", int(id))
			break
		}

		res := d.processBook(ctx, orch, id)
		results = append(results, res)

		switch res.Outcome.State {
		case retry.StateSuccess:
			summary.Succeeded++
			if res.Included {
				entries = append(entries, models.NewManifestEntry(res.Record, res.Download))
			} else {
				summary.Excluded = append(summary.Excluded, int(id))
			}
		case retry.StatePermanentFailure:
			summary.NotFound = append(summary.NotFound, int(id))
		case retry.StateExhausted:
			summary.Exhausted = append(summary.Exhausted, int(id))
		}
	}

	summary.Included = len(entries)
	summary.ManifestPath = d.ManifestPath()
	summary.TopGenres = manifest.TopGenres(entries, 10)

	writeErr := manifest.Write(summary.ManifestPath, entries, d.cfg.Output.ManifestMode, d.store)
	if writeErr != nil {
		d.logger.Error("Failed to write manifest", "path", summary.ManifestPath, "error", writeErr)
	} else {
		d.logger.Info("Manifest written", "path", summary.ManifestPath, "entries", len(entries), "mode", d.cfg.Output.ManifestMode)
	}
	if len(summary.Exhausted) > 0 {
		d.logger.Warn("Books dropped after exhausting attempts", "book_ids", summary.Exhausted)
	}

	summary.GeneratedAt = time.Now().Format(time.RFC3339)
	summary.TotalTimeSeconds = time.Since(start).Seconds()
	switch {
	case writeErr != nil:
		summary.Status = "failed"
	case ctx.Err() != nil || len(summary.Exhausted) > 0:
		summary.Status = "partial_failure"
	default:
		summary.Status = "success"
	}

	d.finishRun(summary)

	if writeErr != nil {
		return summary, results, fmt.Errorf("failed to write manifest: %w", writeErr)
	}
	return summary, results, nil
}

func (d *Driver) orchestratorOptions() []retry.Option {
	opts := []retry.Option{
		retry.WithLogger(d.logger),
		retry.WithAttemptHook(d.recordAttempt),
	}
	if d.sleep != nil {
		opts = append(opts, retry.WithSleep(d.sleep))
	}
	return opts
}

func (d *Driver) processBook(ctx context.Context, orch *retry.Orchestrator, id models.BookID) BookResult {
	res := BookResult{ID: id}
	logger := d.logger.With("book_id", int(id))

	res.Outcome = orch.Do(ctx, id, func(ctx context.Context) error {
		page, err := d.pages.FetchBookPage(ctx, d.cfg, id)
		if err != nil {
			return &StepError{Step: StepPage, Err: err}
		}

		rec, err := extractor.Extract(page, d.cfg.Selectors)
		if err != nil {
			if ev, ok := d.pages.(PageEvicter); ok {
				ev.EvictPage(page.URL)
			}
			return &StepError{Step: StepExtract, Err: err}
		}
		logger.Debug("Book page parsed", "title", rec.Title, "author", rec.Author, "cover_url", rec.CoverURL,
			"genres", len(rec.Genres), "comments", len(rec.Comments))

		var out models.DownloadOutcome
		if !d.cfg.Output.SkipText {
			asset, err := d.assets.DownloadText(ctx, id, fmt.Sprintf("%d. %s", id, rec.Title), d.TextsDir())
			if err != nil {
				return &StepError{Step: StepText, Err: err}
			}
			out.TextPath = asset.Path
			d.recordArtifact(id, StepText, asset)
		}
		if !d.cfg.Output.SkipImages {
			asset, err := d.assets.DownloadCover(ctx, rec.CoverURL, d.ImagesDir())
			if err != nil {
				return &StepError{Step: StepCover, Err: err}
			}
			out.CoverPath = asset.Path
			d.recordArtifact(id, StepCover, asset)
		}

		res.Record = rec
		res.Download = out
		return nil
	})

	if res.Outcome.State == retry.StateSuccess {
		hasText := res.Download.TextPath != "" && d.store.HasFile(res.Download.TextPath)
		hasCover := res.Download.CoverPath != "" && d.store.HasFile(res.Download.CoverPath)
		res.Included = d.cfg.Output.Inclusion.Admits(hasText, hasCover)

		if len(res.Record.Genres) == 0 {
			logger.Info("There are no genres for this book")
		}
		if len(res.Record.Comments) == 0 {
			logger.Info("There are no comments for this book")
		}
		logger.Info("Book processed", "title", res.Record.Title, "attempts", res.Outcome.Attempts,
			"text_path", res.Download.TextPath, "cover_path", res.Download.CoverPath, "included", res.Included)
		d.recordBook(id, res.Record)
	}

	d.recordOutcome(res)
	return res
}

// --- journal ---

func (d *Driver) startRun(source string, idCount int) {
	if d.journal == nil {
		return
	}
	runID, err := d.journal.CreateRun(source, idCount)
	if err != nil {
		d.logger.Warn("Failed to create run in journal", "error", err)
		return
	}
	d.runID = runID
}

func (d *Driver) finishRun(s *manifest.RunSummary) {
	if d.journal == nil || d.runID == 0 {
		return
	}
	err := d.journal.FinishRun(d.runID, db.RunStats{
		Success:      s.Succeeded,
		Included:     s.Included,
		NotFound:     len(s.NotFound),
		Exhausted:    len(s.Exhausted),
		ManifestPath: s.ManifestPath,
	})
	if err != nil {
		d.logger.Warn("Failed to finish run in journal", "run_id", d.runID, "error", err)
	}
}

func (d *Driver) recordAttempt(r retry.AttemptReport) {
	var se *StepError
	if r.Err != nil && errors.As(r.Err, &se) {
		d.logger.Debug("Attempt failed", "book_id", int(r.BookID), "step", se.Step,
			"attempt", r.Attempt, "kind", r.Kind.String(), "error", se.Err)
	}
	if d.journal == nil || d.runID == 0 {
		return
	}
	a := db.Attempt{
		RunID:     d.runID,
		BookID:    int64(r.BookID),
		AttemptNo: r.Attempt,
		Success:   r.Err == nil,
	}
	if r.Err != nil {
		if se != nil {
			a.Step = se.Step
		}
		a.ErrorKind = r.Kind.String()
		a.ErrorMessage = common.TruncateMessage(r.Err.Error(), 500)
	}
	if err := d.journal.RecordAttempt(a); err != nil {
		d.logger.Warn("Failed to record attempt", "book_id", int(r.BookID), "error", err)
	}
}

func (d *Driver) recordArtifact(id models.BookID, kind string, asset downloader.Asset) {
	if d.journal == nil {
		return
	}
	if _, err := d.journal.InsertArtifact(int64(id), kind, asset.Path, asset.ContentHash, asset.SizeBytes); err != nil {
		d.logger.Warn("Failed to record artifact", "book_id", int(id), "kind", kind, "error", err)
	}
}

func (d *Driver) recordBook(id models.BookID, rec models.BookRecord) {
	if d.journal == nil {
		return
	}
	if err := d.journal.UpsertBook(int64(id), rec.Title, rec.Author, rec.CoverURL, rec.Genres, len(rec.Comments)); err != nil {
		d.logger.Warn("Failed to record book", "book_id", int(id), "error", err)
	}
}

func (d *Driver) recordOutcome(res BookResult) {
	if d.journal == nil || d.runID == 0 {
		return
	}
	o := db.Outcome{
		BookID:   int64(res.ID),
		State:    res.Outcome.State.String(),
		Attempts: res.Outcome.Attempts,
		Included: res.Included,
	}
	if res.Outcome.LastErr != nil {
		o.LastError = common.TruncateMessage(res.Outcome.LastErr.Error(), 500)
	}
	if err := d.journal.RecordOutcome(d.runID, o); err != nil {
		d.logger.Warn("Failed to record outcome", "book_id", int(res.ID), "error", err)
	}
}

var _ BookPageFetcher = (*fetcher.Fetcher)(nil)
var _ PageEvicter = (*fetcher.Fetcher)(nil)
var _ AssetDownloader = (*downloader.Downloader)(nil)
