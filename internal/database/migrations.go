package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    body TEXT,
    community TEXT,
    engagement_score INTEGER DEFAULT 0,
    comment_count INTEGER DEFAULT 0,
    link_url TEXT,
    link_expanded INTEGER DEFAULT 0,
    created_at TEXT,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS concepts (
    concept_id TEXT PRIMARY KEY,
    fingerprint TEXT UNIQUE NOT NULL,
    representative_post_id TEXT NOT NULL,
    member_count INTEGER DEFAULT 1,
    has_enrichment INTEGER DEFAULT 0,
    last_enriched_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunities (
    opportunity_id TEXT PRIMARY KEY,
    concept_id TEXT NOT NULL REFERENCES concepts(concept_id),
    title TEXT NOT NULL,
    app_concept TEXT,
    core_functions TEXT,
    final_score REAL DEFAULT 0,
    market_demand REAL DEFAULT 0,
    pain_intensity REAL DEFAULT 0,
    monetization_potential REAL DEFAULT 0,
    market_gap REAL DEFAULT 0,
    technical_feasibility REAL DEFAULT 0,
    simplicity REAL DEFAULT 0,
    trust_level TEXT,
    copied_from_primary INTEGER DEFAULT 0,
    primary_opportunity_id TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at TEXT,
    finished_at TEXT,
    total INTEGER DEFAULT 0,
    enriched INTEGER DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    rejected INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    skipped INTEGER DEFAULT 0,
    total_cost REAL DEFAULT 0,
    avg_score REAL DEFAULT 0,
    cost_ceiling INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_opportunities_concept ON opportunities(concept_id);
CREATE INDEX IF NOT EXISTS idx_posts_community ON posts(community);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
