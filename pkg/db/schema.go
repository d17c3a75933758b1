package db

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per crawl invocation
CREATE TABLE IF NOT EXISTS runs (
    run_id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP,
    source TEXT NOT NULL,           -- "ids 1-10" or a category URL with page range
    id_count INTEGER NOT NULL,
    success_count INTEGER DEFAULT 0,
    included_count INTEGER DEFAULT 0,
    not_found_count INTEGER DEFAULT 0,
    exhausted_count INTEGER DEFAULT 0,
    manifest_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

-- Books: latest extracted metadata per book id
CREATE TABLE IF NOT EXISTS books (
    book_id INTEGER PRIMARY KEY,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    cover_url TEXT,
    genres TEXT,                    -- JSON array
    comment_count INTEGER DEFAULT 0,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Attempts: every attempt the retry loop makes
CREATE TABLE IF NOT EXISTS attempts (
    attempt_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL,
    book_id INTEGER NOT NULL,
    attempt_no INTEGER NOT NULL,
    step TEXT,                      -- page, extract, text, cover
    error_kind TEXT,                -- connectivity, not_found, other
    error_message TEXT,
    success BOOLEAN NOT NULL,
    attempted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
CREATE INDEX IF NOT EXISTS idx_attempts_book ON attempts(book_id);

-- Outcomes: final state per book within a run
CREATE TABLE IF NOT EXISTS outcomes (
    run_id INTEGER NOT NULL,
    book_id INTEGER NOT NULL,
    state TEXT NOT NULL,            -- success, not_found, exhausted
    attempts INTEGER NOT NULL,
    included BOOLEAN DEFAULT 0,
    last_error TEXT,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    UNIQUE(run_id, book_id)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);

-- Artifacts: files written to disk
CREATE TABLE IF NOT EXISTS artifacts (
    artifact_id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL,
    kind TEXT NOT NULL,             -- text, cover
    file_path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    size_bytes INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(book_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_hash ON artifacts(content_hash);
`
