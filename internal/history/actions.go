package history

import (
	"fmt"
	"strings"

	"github.com/dtnitsch/tululu-parser/models"
	dbpkg "github.com/dtnitsch/tululu-parser/pkg/db"
	"github.com/urfave/cli/v2"
)

// journalPath finds the journal the way crawl does: --journal, else the
// journal file inside the destination directory from --config and --dest-dir.
func journalPath(c *cli.Context) (string, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return "", err
	}
	if c.IsSet("dest-dir") {
		cfg.Output.DestDir = c.String("dest-dir")
	}
	return dbpkg.JournalPath(c.String("journal"), cfg.Output.DestDir), nil
}

func openJournal(c *cli.Context) (*dbpkg.DB, error) {
	path, err := journalPath(c)
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return database, nil
}

// RunsAction lists recent crawl runs.
func RunsAction(c *cli.Context) error {
	database, err := openJournal(c)
	if err != nil {
		return err
	}
	defer database.Close()
	w := c.App.Writer

	runs, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "%-6s %-20s %-6s %-8s %-9s %-9s %-9s %-30s\n",
		"ID", "Created", "IDs", "Success", "Included", "NotFound", "Exhausted", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range runs {
		fmt.Fprintf(w, "%-6d %-20s %-6d %-8d %-9d %-9d %-9d %-30s\n",
			r.RunID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.IDCount,
			r.SuccessCount,
			r.IncludedCount,
			r.NotFoundCount,
			r.ExhaustedCount,
			r.Source,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	fmt.Fprintf(w, "\nTip: Use 'tululu-parser run <id>' to see details\n")
	return nil
}

// RunAction shows one run with every book that did not make it into the
// manifest.
func RunAction(c *cli.Context) error {
	database, err := openJournal(c)
	if err != nil {
		return err
	}
	defer database.Close()
	w := c.App.Writer

	runID, err := RunIDOrLatest(c, database)
	if err != nil {
		return err
	}

	run, err := database.GetRunByID(runID)
	if err != nil {
		return err
	}
	outcomes, err := database.GetRunOutcomes(runID, !c.Bool("all"))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %d\n", run.RunID)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Created:     %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt.Valid {
		fmt.Fprintf(w, "Finished:    %s\n", run.FinishedAt.Time.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(w, "Finished:    (interrupted)\n")
	}
	fmt.Fprintf(w, "Source:      %s\n", run.Source)
	fmt.Fprintf(w, "Books:       %d requested, %d succeeded, %d included\n", run.IDCount, run.SuccessCount, run.IncludedCount)
	fmt.Fprintf(w, "Failures:    %d not found, %d exhausted\n", run.NotFoundCount, run.ExhaustedCount)
	fmt.Fprintf(w, "Manifest:    %s\n", run.ManifestPath)

	if len(outcomes) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nBooks (%d):\n", len(outcomes))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, o := range outcomes {
		included := ""
		if o.State == "success" && !o.Included {
			included = " (excluded by policy)"
		}
		fmt.Fprintf(w, "%6d  %-10s attempts=%d%s\n", o.BookID, o.State, o.Attempts, included)
		if o.LastError != "" {
			fmt.Fprintf(w, "        %s\n", o.LastError)
		}
	}
	return nil
}

// RunIDOrLatest returns the run ID from args, or the latest run if not provided
func RunIDOrLatest(c *cli.Context, database *dbpkg.DB) (int64, error) {
	if c.NArg() == 0 {
		runs, err := database.ListRuns(1)
		if err != nil {
			return 0, fmt.Errorf("failed to get latest run: %w", err)
		}
		if len(runs) == 0 {
			return 0, fmt.Errorf("no runs found. Run 'tululu-parser crawl' first")
		}
		return runs[0].RunID, nil
	}

	var runID int64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &runID); err != nil {
		return 0, fmt.Errorf("invalid run ID: %s", c.Args().First())
	}
	return runID, nil
}
