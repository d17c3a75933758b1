package db

import (
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Use in-memory database for tests
	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func TestCreateRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	runID, err := db.CreateRun("ids 1-10", 10)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if runID == 0 {
		t.Fatal("CreateRun() returned 0 run ID")
	}

	run, err := db.GetRunByID(runID)
	if err != nil {
		t.Fatalf("GetRunByID() error = %v", err)
	}
	if run.Source != "ids 1-10" {
		t.Errorf("run.Source = %q, want %q", run.Source, "ids 1-10")
	}
	if run.IDCount != 10 {
		t.Errorf("run.IDCount = %d, want 10", run.IDCount)
	}
	if run.FinishedAt.Valid {
		t.Error("run.FinishedAt is set before FinishRun")
	}
}

func TestFinishRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	runID, err := db.CreateRun("ids 1-4", 4)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	stats := RunStats{Success: 3, Included: 2, NotFound: 1, Exhausted: 0, ManifestPath: "out/books.json"}
	if err := db.FinishRun(runID, stats); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	run, err := db.GetRunByID(runID)
	if err != nil {
		t.Fatalf("GetRunByID() error = %v", err)
	}
	if !run.FinishedAt.Valid {
		t.Error("run.FinishedAt not set after FinishRun")
	}
	if run.SuccessCount != 3 || run.IncludedCount != 2 || run.NotFoundCount != 1 || run.ExhaustedCount != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want 3/2/1/0",
			run.SuccessCount, run.IncludedCount, run.NotFoundCount, run.ExhaustedCount)
	}
	if run.ManifestPath != "out/books.json" {
		t.Errorf("run.ManifestPath = %q, want %q", run.ManifestPath, "out/books.json")
	}
}

func TestFinishRun_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.FinishRun(999, RunStats{}); err == nil {
		t.Error("FinishRun() on unknown run should fail")
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	var ids []int64
	for _, src := range []string{"ids 1-1", "ids 2-2", "ids 3-3"} {
		id, err := db.CreateRun(src, 1)
		if err != nil {
			t.Fatalf("CreateRun(%q) error = %v", src, err)
		}
		ids = append(ids, id)
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(2) returned %d runs, want 2", len(runs))
	}
	if runs[0].RunID != ids[2] || runs[1].RunID != ids[1] {
		t.Errorf("ListRuns order = [%d %d], want [%d %d]", runs[0].RunID, runs[1].RunID, ids[2], ids[1])
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}
}

func TestGetRunByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := db.GetRunByID(42); err == nil {
		t.Error("GetRunByID() on unknown run should fail")
	}
}
