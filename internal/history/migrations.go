package history

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    run_id TEXT PRIMARY KEY,
    generated_at TIMESTAMP NOT NULL,
    job_path TEXT,
    preset_name TEXT NOT NULL,
    mode TEXT NOT NULL,
    remote TEXT,
    gpu_state TEXT NOT NULL,
    total INTEGER NOT NULL,
    published INTEGER NOT NULL,
    rendered INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_generated_at ON batches(generated_at);

CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES batches(run_id),
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT,
    error_kind TEXT,
    last_error TEXT,
    images INTEGER NOT NULL DEFAULT 0,
    videos INTEGER NOT NULL DEFAULT 0,
    output_path TEXT,
    output_bytes INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_projects_run_id ON projects(run_id);
CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);
`
