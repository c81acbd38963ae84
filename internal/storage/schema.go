package storage

const sqliteSchema = `
-- One row per question ever reviewed. Times are unix seconds.
CREATE TABLE IF NOT EXISTS review_records (
    question_id TEXT PRIMARY KEY,
    last_reviewed INTEGER NOT NULL,
    next_review INTEGER NOT NULL,
    repetition_count INTEGER NOT NULL DEFAULT 0 CHECK (repetition_count >= 0),
    ease_factor REAL NOT NULL,
    last_interval_seconds INTEGER NOT NULL DEFAULT 0,
    CHECK (next_review >= last_reviewed)
);

CREATE INDEX IF NOT EXISTS idx_review_records_next_review ON review_records(next_review);

-- Append-only answer history.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question_id TEXT NOT NULL,
    reviewed_at INTEGER NOT NULL,
    quality INTEGER NOT NULL,
    correct INTEGER NOT NULL,
    interval_seconds INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_question ON review_logs(question_id);

-- The 'sources' table tracks the origin of the questions, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned INTEGER
);

-- The question corpus. Choices are stored as a JSON array.
CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    sentence TEXT NOT NULL,
    choices TEXT NOT NULL,
    answer TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT '',
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_source ON questions(source_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS review_records (
    question_id TEXT PRIMARY KEY,
    last_reviewed BIGINT NOT NULL,
    next_review BIGINT NOT NULL,
    repetition_count INTEGER NOT NULL DEFAULT 0 CHECK (repetition_count >= 0),
    ease_factor DOUBLE PRECISION NOT NULL,
    last_interval_seconds BIGINT NOT NULL DEFAULT 0,
    CHECK (next_review >= last_reviewed)
);

CREATE INDEX IF NOT EXISTS idx_review_records_next_review ON review_records(next_review);

CREATE TABLE IF NOT EXISTS review_logs (
    id BIGSERIAL PRIMARY KEY,
    question_id TEXT NOT NULL,
    reviewed_at BIGINT NOT NULL,
    quality INTEGER NOT NULL,
    correct BOOLEAN NOT NULL,
    interval_seconds BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_question ON review_logs(question_id);

CREATE TABLE IF NOT EXISTS sources (
    id BIGSERIAL PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned BIGINT
);

CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    sentence TEXT NOT NULL,
    choices TEXT NOT NULL,
    answer TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT '',
    source_id BIGINT REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_source ON questions(source_id);
`
