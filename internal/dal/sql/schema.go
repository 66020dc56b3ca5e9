package sql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS voca_db (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_word TEXT NOT NULL UNIQUE,
		meaning TEXT NOT NULL,
		level INTEGER NOT NULL,
		example_en TEXT NOT NULL DEFAULT '',
		example_native TEXT NOT NULL DEFAULT '',
		root_word TEXT NOT NULL DEFAULT '',
		total_try INTEGER NOT NULL DEFAULT 0,
		total_wrong INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_voca_db_level ON voca_db (level)`,
	`CREATE TABLE IF NOT EXISTS user_progress (
		username TEXT NOT NULL,
		word_id INTEGER NOT NULL,
		last_reviewed TEXT,
		next_review TEXT NOT NULL,
		interval INTEGER NOT NULL,
		fail_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (username, word_id)
	)`,
	`CREATE TABLE IF NOT EXISTS study_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		date TEXT NOT NULL,
		username TEXT NOT NULL,
		word_id INTEGER NOT NULL,
		level INTEGER NOT NULL,
		correct INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_study_log_username ON study_log (username, id)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		level INTEGER,
		fail_streak INTEGER NOT NULL DEFAULT 0,
		level_shield INTEGER NOT NULL DEFAULT 3,
		qs_count INTEGER NOT NULL DEFAULT 0,
		pending_wrongs TEXT NOT NULL DEFAULT '',
		pending_session TEXT NOT NULL DEFAULT ''
	)`,
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
